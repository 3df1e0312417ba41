package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/meonBot/master-vesta-2/internal/domain/group"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGN SUITE COMMAND
// Suite-selection input: records the suite a finalizing or locked group
// picked. The group's membership structure is frozen by that point; this
// only writes the suite column.
// ══════════════════════════════════════════════════════════════════════════════

// AssignSuiteCommand contains the data to assign a suite.
type AssignSuiteCommand struct {
	// GroupID is the group taking the suite.
	GroupID string

	// SuiteID is the suite being assigned.
	SuiteID string
}

// Validate validates the command.
func (c AssignSuiteCommand) Validate() error {
	if c.GroupID == "" {
		return errors.New("assign_suite: group_id is required")
	}
	if c.SuiteID == "" {
		return errors.New("assign_suite: suite_id is required")
	}
	return nil
}

// AssignSuiteResult contains the result of assigning a suite.
type AssignSuiteResult struct {
	// Group is the group with the suite recorded.
	Group *group.Group
}

// AssignSuiteHandler handles the AssignSuiteCommand.
type AssignSuiteHandler struct {
	groupRepo group.Repository
}

// NewAssignSuiteHandler creates a new AssignSuiteHandler.
func NewAssignSuiteHandler(groupRepo group.Repository) *AssignSuiteHandler {
	return &AssignSuiteHandler{groupRepo: groupRepo}
}

// Handle executes the assign suite command.
func (h *AssignSuiteHandler) Handle(ctx context.Context, cmd AssignSuiteCommand) (*AssignSuiteResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("assign_suite: validation failed: %w", err)
	}

	g, err := h.groupRepo.GetByID(ctx, cmd.GroupID)
	if err != nil {
		return nil, err
	}
	status := g.Status.Normalize()
	if status != group.StatusFinalizing && status != group.StatusLocked {
		return nil, group.ErrNotSelectingSuite
	}

	if err := h.groupRepo.UpdateSuite(ctx, cmd.GroupID, cmd.SuiteID); err != nil {
		return nil, fmt.Errorf("assign_suite: persisting suite failed: %w", err)
	}
	g.SuiteID = cmd.SuiteID
	return &AssignSuiteResult{Group: g}, nil
}

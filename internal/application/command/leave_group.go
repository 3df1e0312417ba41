package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/membership"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEAVE GROUP COMMAND
// Covers the normal destroy paths: a student withdrawing a request, an
// invitee declining, an accepted member leaving, or the leader removing a
// pending row. A leaving leader dissolves the whole group; locked rows
// reject the operation.
// ══════════════════════════════════════════════════════════════════════════════

// LeaveGroupCommand contains the data to remove a membership.
type LeaveGroupCommand struct {
	// GroupID is the group being left.
	GroupID string

	// UserID is the student whose membership is removed.
	UserID string

	// ActorID is the acting user: the student themselves, or the leader
	// removing a pending row.
	ActorID string
}

// Validate validates the command.
func (c LeaveGroupCommand) Validate() error {
	if c.GroupID == "" {
		return errors.New("leave_group: group_id is required")
	}
	if c.UserID == "" {
		return errors.New("leave_group: user_id is required")
	}
	if c.ActorID == "" {
		return errors.New("leave_group: actor_id is required")
	}
	return nil
}

// LeaveGroupResult contains the result of leaving a group.
type LeaveGroupResult struct {
	// Group is the group after the removal; nil when the leader left and
	// the group was disbanded.
	Group *group.Group

	// Disbanded reports that the whole group was dissolved.
	Disbanded bool

	// Events contains the domain events the operation produced.
	Events []shared.Event
}

// LeaveGroupHandler handles the LeaveGroupCommand.
type LeaveGroupHandler struct {
	engine         *membership.Engine
	groupRepo      group.Repository
	eventPublisher shared.EventPublisher
}

// NewLeaveGroupHandler creates a new LeaveGroupHandler.
func NewLeaveGroupHandler(
	engine *membership.Engine,
	groupRepo group.Repository,
	eventPublisher shared.EventPublisher,
) *LeaveGroupHandler {
	return &LeaveGroupHandler{
		engine:         engine,
		groupRepo:      groupRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the leave group command.
func (h *LeaveGroupHandler) Handle(ctx context.Context, cmd LeaveGroupCommand) (*LeaveGroupResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("leave_group: validation failed: %w", err)
	}

	g, err := h.groupRepo.GetByID(ctx, cmd.GroupID)
	if err != nil {
		return nil, fmt.Errorf("leave_group: group lookup failed: %w", err)
	}
	if cmd.ActorID != cmd.UserID && cmd.ActorID != g.LeaderID {
		return nil, shared.NewDomainError("membership", "Destroy", shared.ErrPermissionDenied,
			"only the student or the group leader can remove a membership")
	}

	// The leader has no group without themselves in it.
	if cmd.UserID == g.LeaderID {
		res, err := h.engine.DisbandGroup(ctx, cmd.GroupID)
		if err != nil {
			return nil, err
		}
		_ = h.eventPublisher.PublishBatch(res.Events)
		return &LeaveGroupResult{Disbanded: true, Events: res.Events}, nil
	}

	res, err := h.engine.Destroy(ctx, cmd.GroupID, cmd.UserID)
	if err != nil {
		return nil, err
	}

	_ = h.eventPublisher.PublishBatch(res.Events)
	return &LeaveGroupResult{Group: res.Group, Events: res.Events}, nil
}

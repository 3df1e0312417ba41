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
// LOCK MEMBERSHIP COMMAND
// During finalization each accepted member confirms their commitment; the
// confirmation sets the locked flag, freezing the row permanently. When the
// last accepted membership locks, the group itself moves to locked.
// ══════════════════════════════════════════════════════════════════════════════

// LockMembershipCommand contains the data to lock a membership.
type LockMembershipCommand struct {
	// GroupID is the finalizing group.
	GroupID string

	// UserID is the confirming student.
	UserID string
}

// Validate validates the command.
func (c LockMembershipCommand) Validate() error {
	if c.GroupID == "" {
		return errors.New("lock_membership: group_id is required")
	}
	if c.UserID == "" {
		return errors.New("lock_membership: user_id is required")
	}
	return nil
}

// LockMembershipResult contains the result of locking a membership.
type LockMembershipResult struct {
	// Membership is the locked row.
	Membership *membership.Membership

	// GroupLocked reports that this confirmation was the last one and
	// the group is now locked.
	GroupLocked bool

	// Events contains the domain events the operation produced.
	Events []shared.Event
}

// LockMembershipHandler handles the LockMembershipCommand.
type LockMembershipHandler struct {
	engine         *membership.Engine
	eventPublisher shared.EventPublisher
}

// NewLockMembershipHandler creates a new LockMembershipHandler.
func NewLockMembershipHandler(
	engine *membership.Engine,
	eventPublisher shared.EventPublisher,
) *LockMembershipHandler {
	return &LockMembershipHandler{engine: engine, eventPublisher: eventPublisher}
}

// Handle executes the lock membership command.
func (h *LockMembershipHandler) Handle(ctx context.Context, cmd LockMembershipCommand) (*LockMembershipResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("lock_membership: validation failed: %w", err)
	}

	res, err := h.engine.SetLocked(ctx, cmd.GroupID, cmd.UserID, true)
	if err != nil {
		return nil, err
	}

	result := &LockMembershipResult{
		Membership:  res.Membership,
		GroupLocked: res.Group != nil && res.Group.Status == group.StatusLocked,
		Events:      res.Events,
	}

	_ = h.eventPublisher.PublishBatch(res.Events)
	return result, nil
}

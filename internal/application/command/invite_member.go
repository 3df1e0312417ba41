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
// INVITE MEMBER COMMAND
// A group leader invites a student into their group. Only the leader may
// invite; the invitation sits in the invited state until the student
// accepts or the leader withdraws it.
// ══════════════════════════════════════════════════════════════════════════════

// InviteMemberCommand contains the data to invite a student.
type InviteMemberCommand struct {
	// GroupID is the inviting group.
	GroupID string

	// InviterID is the acting user; must be the group's leader.
	InviterID string

	// UserID is the student being invited.
	UserID string
}

// Validate validates the command.
func (c InviteMemberCommand) Validate() error {
	if c.GroupID == "" {
		return errors.New("invite_member: group_id is required")
	}
	if c.InviterID == "" {
		return errors.New("invite_member: inviter_id is required")
	}
	if c.UserID == "" {
		return errors.New("invite_member: user_id is required")
	}
	if c.InviterID == c.UserID {
		return errors.New("invite_member: cannot invite self")
	}
	return nil
}

// InviteMemberResult contains the result of an invitation.
type InviteMemberResult struct {
	// Membership is the created row.
	Membership *membership.Membership

	// Events contains the domain events the operation produced.
	Events []shared.Event
}

// InviteMemberHandler handles the InviteMemberCommand.
type InviteMemberHandler struct {
	engine         *membership.Engine
	groupRepo      group.Repository
	eventPublisher shared.EventPublisher
}

// NewInviteMemberHandler creates a new InviteMemberHandler.
func NewInviteMemberHandler(
	engine *membership.Engine,
	groupRepo group.Repository,
	eventPublisher shared.EventPublisher,
) *InviteMemberHandler {
	return &InviteMemberHandler{
		engine:         engine,
		groupRepo:      groupRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the invite member command.
func (h *InviteMemberHandler) Handle(ctx context.Context, cmd InviteMemberCommand) (*InviteMemberResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invite_member: validation failed: %w", err)
	}

	g, err := h.groupRepo.GetByID(ctx, cmd.GroupID)
	if err != nil {
		return nil, fmt.Errorf("invite_member: group lookup failed: %w", err)
	}
	if g.LeaderID != cmd.InviterID {
		return nil, shared.NewDomainError("membership", "Invite", shared.ErrPermissionDenied,
			"only the group leader can invite members")
	}

	res, err := h.engine.Create(ctx, membership.CreateParams{
		GroupID: cmd.GroupID,
		UserID:  cmd.UserID,
		Status:  membership.StatusInvited,
	})
	if err != nil {
		return nil, err
	}

	_ = h.eventPublisher.PublishBatch(res.Events)
	return &InviteMemberResult{Membership: res.Membership, Events: res.Events}, nil
}

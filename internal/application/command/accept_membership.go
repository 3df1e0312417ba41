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
// ACCEPT MEMBERSHIP COMMAND
// The pivotal write of the whole system. A student accepts their invitation
// (or a leader approves a request); the row becomes accepted, the group's
// counter moves, the group may close, and the student's competing pending
// memberships across the draw are destroyed, all in one transaction.
// ══════════════════════════════════════════════════════════════════════════════

// AcceptMembershipCommand contains the data to accept a membership.
type AcceptMembershipCommand struct {
	// GroupID is the group whose membership is being accepted.
	GroupID string

	// UserID is the student the membership belongs to.
	UserID string

	// ActorID is the acting user: the student themselves for an
	// invitation, the leader for a join request.
	ActorID string
}

// Validate validates the command.
func (c AcceptMembershipCommand) Validate() error {
	if c.GroupID == "" {
		return errors.New("accept_membership: group_id is required")
	}
	if c.UserID == "" {
		return errors.New("accept_membership: user_id is required")
	}
	if c.ActorID == "" {
		return errors.New("accept_membership: actor_id is required")
	}
	return nil
}

// AcceptMembershipResult contains the result of an acceptance.
type AcceptMembershipResult struct {
	// Membership is the accepted row.
	Membership *membership.Membership

	// Group is the owning group after the acceptance.
	Group *group.Group

	// CascadedFrom lists group IDs whose pending rows for the user were
	// destroyed by the acceptance.
	CascadedFrom []string

	// Events contains the domain events the operation produced.
	Events []shared.Event
}

// AcceptMembershipHandler handles the AcceptMembershipCommand.
type AcceptMembershipHandler struct {
	engine         *membership.Engine
	groupRepo      group.Repository
	memberships    membership.Reader
	eventPublisher shared.EventPublisher
}

// NewAcceptMembershipHandler creates a new AcceptMembershipHandler.
func NewAcceptMembershipHandler(
	engine *membership.Engine,
	groupRepo group.Repository,
	memberships membership.Reader,
	eventPublisher shared.EventPublisher,
) *AcceptMembershipHandler {
	return &AcceptMembershipHandler{
		engine:         engine,
		groupRepo:      groupRepo,
		memberships:    memberships,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the accept membership command.
func (h *AcceptMembershipHandler) Handle(ctx context.Context, cmd AcceptMembershipCommand) (*AcceptMembershipResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("accept_membership: validation failed: %w", err)
	}
	if err := h.authorize(ctx, cmd); err != nil {
		return nil, err
	}

	res, err := h.engine.Accept(ctx, cmd.GroupID, cmd.UserID)
	if err != nil {
		return nil, err
	}

	result := &AcceptMembershipResult{
		Membership: res.Membership,
		Group:      res.Group,
		Events:     res.Events,
	}
	for _, m := range res.Cascaded {
		result.CascadedFrom = append(result.CascadedFrom, m.GroupID)
	}

	_ = h.eventPublisher.PublishBatch(res.Events)
	return result, nil
}

// authorize checks who may flip the row: the student accepts invitations,
// the leader approves requests.
func (h *AcceptMembershipHandler) authorize(ctx context.Context, cmd AcceptMembershipCommand) error {
	m, err := h.memberships.Get(ctx, cmd.GroupID, cmd.UserID)
	if err != nil {
		return fmt.Errorf("accept_membership: membership lookup failed: %w", err)
	}

	switch m.Status {
	case membership.StatusInvited:
		if cmd.ActorID != cmd.UserID {
			return shared.NewDomainError("membership", "Accept", shared.ErrPermissionDenied,
				"only the invited student can accept an invitation")
		}
	case membership.StatusRequested:
		g, err := h.groupRepo.GetByID(ctx, cmd.GroupID)
		if err != nil {
			return fmt.Errorf("accept_membership: group lookup failed: %w", err)
		}
		if g.LeaderID != cmd.ActorID {
			return shared.NewDomainError("membership", "Accept", shared.ErrPermissionDenied,
				"only the group leader can approve a join request")
		}
	}
	return nil
}

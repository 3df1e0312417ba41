package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/meonBot/master-vesta-2/internal/domain/membership"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST MEMBERSHIP COMMAND
// A student asks to join an open group in their draw. The row is created in
// the requested state; it carries no counter weight until the student
// accepts an invitation or the leader's approval flow flips it.
// ══════════════════════════════════════════════════════════════════════════════

// RequestMembershipCommand contains the data for a join request.
type RequestMembershipCommand struct {
	// GroupID is the group being asked to join.
	GroupID string

	// UserID is the requesting student.
	UserID string
}

// Validate validates the command.
func (c RequestMembershipCommand) Validate() error {
	if c.GroupID == "" {
		return errors.New("request_membership: group_id is required")
	}
	if c.UserID == "" {
		return errors.New("request_membership: user_id is required")
	}
	return nil
}

// RequestMembershipResult contains the result of a join request.
type RequestMembershipResult struct {
	// Membership is the created row.
	Membership *membership.Membership

	// Events contains the domain events the operation produced.
	Events []shared.Event
}

// RequestMembershipHandler handles the RequestMembershipCommand.
type RequestMembershipHandler struct {
	engine         *membership.Engine
	eventPublisher shared.EventPublisher
}

// NewRequestMembershipHandler creates a new RequestMembershipHandler.
func NewRequestMembershipHandler(
	engine *membership.Engine,
	eventPublisher shared.EventPublisher,
) *RequestMembershipHandler {
	return &RequestMembershipHandler{engine: engine, eventPublisher: eventPublisher}
}

// Handle executes the request membership command.
func (h *RequestMembershipHandler) Handle(ctx context.Context, cmd RequestMembershipCommand) (*RequestMembershipResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("request_membership: validation failed: %w", err)
	}

	res, err := h.engine.Create(ctx, membership.CreateParams{
		GroupID: cmd.GroupID,
		UserID:  cmd.UserID,
		Status:  membership.StatusRequested,
	})
	if err != nil {
		return nil, err
	}

	_ = h.eventPublisher.PublishBatch(res.Events)
	return &RequestMembershipResult{Membership: res.Membership, Events: res.Events}, nil
}

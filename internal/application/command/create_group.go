// Package command contains write operations (CQRS - Commands).
//
// Every command that touches memberships delegates the write itself to the
// membership engine so that validation, counter maintenance, status
// recomputation, and cascading all commit as one transaction. Handlers add
// the use-case plumbing around that: permission checks, lookups, and
// publishing the committed events.
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/membership"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE GROUP COMMAND
// A student with on-campus intent founds a group in their draw. The group
// row and the leader's accepted membership commit together; the leader's
// pending requests and invitations elsewhere cascade away in the same
// transaction.
// ══════════════════════════════════════════════════════════════════════════════

// CreateGroupCommand contains the data to create a group.
type CreateGroupCommand struct {
	// DrawID is the draw the group forms in.
	DrawID string

	// LeaderID is the founding student; they become the group's first
	// accepted member.
	LeaderID string

	// Size is the target member count.
	Size int
}

// Validate validates the command.
func (c CreateGroupCommand) Validate() error {
	if c.DrawID == "" {
		return errors.New("create_group: draw_id is required")
	}
	if c.LeaderID == "" {
		return errors.New("create_group: leader_id is required")
	}
	if c.Size < 1 {
		return errors.New("create_group: size must be positive")
	}
	return nil
}

// CreateGroupResult contains the result of creating a group.
type CreateGroupResult struct {
	// Group is the created group.
	Group *group.Group

	// LeaderMembership is the leader's accepted membership row.
	LeaderMembership *membership.Membership

	// CascadedFrom lists group IDs whose pending rows for the leader
	// were destroyed by the creation.
	CascadedFrom []string

	// Events contains the domain events the operation produced.
	Events []shared.Event
}

// CreateGroupHandler handles the CreateGroupCommand.
type CreateGroupHandler struct {
	engine         *membership.Engine
	groupRepo      group.Repository
	eventPublisher shared.EventPublisher
}

// NewCreateGroupHandler creates a new CreateGroupHandler.
func NewCreateGroupHandler(
	engine *membership.Engine,
	groupRepo group.Repository,
	eventPublisher shared.EventPublisher,
) *CreateGroupHandler {
	return &CreateGroupHandler{
		engine:         engine,
		groupRepo:      groupRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the create group command.
func (h *CreateGroupHandler) Handle(ctx context.Context, cmd CreateGroupCommand) (*CreateGroupResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_group: validation failed: %w", err)
	}

	// One group per leader per draw.
	if existing, err := h.groupRepo.GetByLeader(ctx, cmd.DrawID, cmd.LeaderID); err == nil && existing != nil {
		return nil, shared.NewDomainError("group", "Create", shared.ErrAlreadyExists,
			"user already leads a group in this draw")
	} else if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("create_group: leader lookup failed: %w", err)
	}

	g, err := group.NewGroup(group.NewGroupParams{
		ID:       uuid.NewString(),
		DrawID:   cmd.DrawID,
		LeaderID: cmd.LeaderID,
		Size:     cmd.Size,
	})
	if err != nil {
		return nil, err
	}

	res, err := h.engine.CreateGroup(ctx, g)
	if err != nil {
		return nil, err
	}

	result := &CreateGroupResult{
		Group:            res.Group,
		LeaderMembership: res.Membership,
		Events: append([]shared.Event{membership.GroupCreatedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventGroupCreated, g.ID),
			GroupID:   g.ID,
			DrawID:    g.DrawID,
			LeaderID:  g.LeaderID,
			Size:      g.Size,
		}}, res.Events...),
	}
	for _, m := range res.Cascaded {
		result.CascadedFrom = append(result.CascadedFrom, m.GroupID)
	}

	_ = h.eventPublisher.PublishBatch(result.Events)
	return result, nil
}

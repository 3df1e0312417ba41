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
// BEGIN FINALIZING COMMAND
// The leader of a closed group enters the suite-selection phase. From here
// members confirm (lock) one by one until the group locks terminally.
// ══════════════════════════════════════════════════════════════════════════════

// BeginFinalizingCommand contains the data to start finalizing a group.
type BeginFinalizingCommand struct {
	// GroupID is the group entering suite selection.
	GroupID string

	// ActorID is the acting user; must be the group's leader.
	ActorID string
}

// Validate validates the command.
func (c BeginFinalizingCommand) Validate() error {
	if c.GroupID == "" {
		return errors.New("begin_finalizing: group_id is required")
	}
	if c.ActorID == "" {
		return errors.New("begin_finalizing: actor_id is required")
	}
	return nil
}

// BeginFinalizingResult contains the result of entering finalization.
type BeginFinalizingResult struct {
	// Group is the group in the finalizing state.
	Group *group.Group

	// Events contains the domain events the operation produced.
	Events []shared.Event
}

// BeginFinalizingHandler handles the BeginFinalizingCommand.
type BeginFinalizingHandler struct {
	engine         *membership.Engine
	groupRepo      group.Repository
	eventPublisher shared.EventPublisher
}

// NewBeginFinalizingHandler creates a new BeginFinalizingHandler.
func NewBeginFinalizingHandler(
	engine *membership.Engine,
	groupRepo group.Repository,
	eventPublisher shared.EventPublisher,
) *BeginFinalizingHandler {
	return &BeginFinalizingHandler{
		engine:         engine,
		groupRepo:      groupRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the begin finalizing command.
func (h *BeginFinalizingHandler) Handle(ctx context.Context, cmd BeginFinalizingCommand) (*BeginFinalizingResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("begin_finalizing: validation failed: %w", err)
	}

	g, err := h.groupRepo.GetByID(ctx, cmd.GroupID)
	if err != nil {
		return nil, fmt.Errorf("begin_finalizing: group lookup failed: %w", err)
	}
	if g.LeaderID != cmd.ActorID {
		return nil, shared.NewDomainError("group", "Finalize", shared.ErrPermissionDenied,
			"only the group leader can begin finalizing")
	}

	res, err := h.engine.BeginFinalizing(ctx, cmd.GroupID)
	if err != nil {
		return nil, err
	}

	_ = h.eventPublisher.PublishBatch(res.Events)
	return &BeginFinalizingResult{Group: res.Group, Events: res.Events}, nil
}

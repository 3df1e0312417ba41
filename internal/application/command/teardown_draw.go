package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meonBot/master-vesta-2/internal/domain/draw"
	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/membership"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEARDOWN DRAW COMMAND
// Administrative dismantling of a draw's entire group structure: every
// group is disbanded through the engine's force path, locked rows
// included. Counters and cleanup hooks still run for each destroyed row,
// so the system never passes through an inconsistent state even mid-sweep.
// ══════════════════════════════════════════════════════════════════════════════

// TeardownDrawCommand contains the data to tear down a draw.
type TeardownDrawCommand struct {
	// DrawID is the draw being dismantled.
	DrawID string
}

// Validate validates the command.
func (c TeardownDrawCommand) Validate() error {
	if c.DrawID == "" {
		return errors.New("teardown_draw: draw_id is required")
	}
	return nil
}

// TeardownDrawResult contains the result of a teardown.
type TeardownDrawResult struct {
	// GroupsRemoved is how many groups were disbanded.
	GroupsRemoved int

	// MembersRemoved is how many membership rows were destroyed.
	MembersRemoved int

	// Events contains the domain events the operation produced.
	Events []shared.Event
}

// TeardownDrawHandler handles the TeardownDrawCommand.
type TeardownDrawHandler struct {
	engine         *membership.Engine
	groupRepo      group.Repository
	drawRepo       draw.Repository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewTeardownDrawHandler creates a new TeardownDrawHandler.
func NewTeardownDrawHandler(
	engine *membership.Engine,
	groupRepo group.Repository,
	drawRepo draw.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *TeardownDrawHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TeardownDrawHandler{
		engine:         engine,
		groupRepo:      groupRepo,
		drawRepo:       drawRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the teardown draw command. Each group disbands in its own
// transaction; a failure stops the sweep but leaves already-disbanded
// groups fully consistent.
func (h *TeardownDrawHandler) Handle(ctx context.Context, cmd TeardownDrawCommand) (*TeardownDrawResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("teardown_draw: validation failed: %w", err)
	}

	if _, err := h.drawRepo.GetByID(ctx, cmd.DrawID); err != nil {
		return nil, fmt.Errorf("teardown_draw: draw lookup failed: %w", err)
	}
	groups, err := h.groupRepo.GetByDraw(ctx, cmd.DrawID)
	if err != nil {
		return nil, fmt.Errorf("teardown_draw: group listing failed: %w", err)
	}

	result := &TeardownDrawResult{}
	for _, g := range groups {
		res, err := h.engine.ForceDisbandGroup(ctx, g.ID)
		if err != nil {
			return result, fmt.Errorf("teardown_draw: disbanding group %s failed: %w", g.ID, err)
		}
		result.GroupsRemoved++
		for _, ev := range res.Events {
			if _, ok := ev.(membership.DestroyedEvent); ok {
				result.MembersRemoved++
			}
		}
		result.Events = append(result.Events, res.Events...)

		h.logger.Info("group disbanded during draw teardown",
			"draw_id", cmd.DrawID,
			"group_id", g.ID,
		)
	}

	tornDown := draw.TornDownEvent{
		BaseEvent:      shared.NewBaseEvent(shared.EventDrawTornDown, cmd.DrawID),
		DrawID:         cmd.DrawID,
		GroupsRemoved:  result.GroupsRemoved,
		MembersRemoved: result.MembersRemoved,
	}
	result.Events = append(result.Events, tornDown)

	_ = h.eventPublisher.PublishBatch(result.Events)
	return result, nil
}

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/meonBot/master-vesta-2/internal/domain/draw"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADVANCE DRAW COMMAND
// Administrative lifecycle transition: drives a draw through draft →
// pre_lottery → lottery → suite_selection → results. The stale-group sweep
// keys off these phases, so advancing past the formation phase is what
// arms it.
// ══════════════════════════════════════════════════════════════════════════════

// AdvanceDrawCommand contains the data to advance a draw.
type AdvanceDrawCommand struct {
	// DrawID is the draw being advanced.
	DrawID string

	// Status is the target lifecycle phase.
	Status string
}

// Validate validates the command.
func (c AdvanceDrawCommand) Validate() error {
	if c.DrawID == "" {
		return errors.New("advance_draw: draw_id is required")
	}
	if c.Status == "" {
		return errors.New("advance_draw: status is required")
	}
	return nil
}

// AdvanceDrawResult contains the result of advancing a draw.
type AdvanceDrawResult struct {
	// Draw is the draw in its new phase.
	Draw *draw.Draw
}

// AdvanceDrawHandler handles the AdvanceDrawCommand.
type AdvanceDrawHandler struct {
	drawRepo draw.Repository
}

// NewAdvanceDrawHandler creates a new AdvanceDrawHandler.
func NewAdvanceDrawHandler(drawRepo draw.Repository) *AdvanceDrawHandler {
	return &AdvanceDrawHandler{drawRepo: drawRepo}
}

// Handle executes the advance draw command.
func (h *AdvanceDrawHandler) Handle(ctx context.Context, cmd AdvanceDrawCommand) (*AdvanceDrawResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("advance_draw: validation failed: %w", err)
	}

	d, err := h.drawRepo.GetByID(ctx, cmd.DrawID)
	if err != nil {
		return nil, err
	}
	if err := d.Advance(draw.Status(cmd.Status)); err != nil {
		return nil, err
	}
	if err := h.drawRepo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("advance_draw: persisting draw failed: %w", err)
	}
	return &AdvanceDrawResult{Draw: d}, nil
}

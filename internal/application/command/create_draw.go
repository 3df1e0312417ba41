package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/meonBot/master-vesta-2/internal/domain/draw"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE DRAW COMMAND
// Administrative provisioning of a new housing-allocation cycle. The draw
// starts in the draft phase; students and groups attach to it later.
// ══════════════════════════════════════════════════════════════════════════════

// CreateDrawCommand contains the data to create a draw.
type CreateDrawCommand struct {
	// Name is the display name, e.g. "Sophomore Draw 2026".
	Name string
}

// Validate validates the command.
func (c CreateDrawCommand) Validate() error {
	if c.Name == "" {
		return errors.New("create_draw: name is required")
	}
	return nil
}

// CreateDrawResult contains the result of creating a draw.
type CreateDrawResult struct {
	// Draw is the created draw.
	Draw *draw.Draw
}

// CreateDrawHandler handles the CreateDrawCommand.
type CreateDrawHandler struct {
	drawRepo draw.Repository
}

// NewCreateDrawHandler creates a new CreateDrawHandler.
func NewCreateDrawHandler(drawRepo draw.Repository) *CreateDrawHandler {
	return &CreateDrawHandler{drawRepo: drawRepo}
}

// Handle executes the create draw command.
func (h *CreateDrawHandler) Handle(ctx context.Context, cmd CreateDrawCommand) (*CreateDrawResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_draw: validation failed: %w", err)
	}

	d, err := draw.NewDraw(uuid.NewString(), cmd.Name)
	if err != nil {
		return nil, err
	}
	if err := h.drawRepo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create_draw: persisting draw failed: %w", err)
	}
	return &CreateDrawResult{Draw: d}, nil
}

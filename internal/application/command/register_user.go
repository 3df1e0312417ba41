package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/meonBot/master-vesta-2/internal/domain/draw"
	"github.com/meonBot/master-vesta-2/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER USER COMMAND
// Administrative provisioning of a student into a draw. Housing intent is
// declared here; the membership engine rejects writes for anyone who is
// not on_campus.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterUserCommand contains the data to register a user.
type RegisterUserCommand struct {
	// DrawID is the draw the user belongs to.
	DrawID string

	// DisplayName is the user's display name.
	DisplayName string

	// Email is the user's email; unique across users.
	Email string

	// Intent is the declared housing intent; defaults to undeclared.
	Intent string
}

// Validate validates the command.
func (c RegisterUserCommand) Validate() error {
	if c.DrawID == "" {
		return errors.New("register_user: draw_id is required")
	}
	if c.DisplayName == "" {
		return errors.New("register_user: display_name is required")
	}
	if c.Email == "" {
		return errors.New("register_user: email is required")
	}
	return nil
}

// RegisterUserResult contains the result of registering a user.
type RegisterUserResult struct {
	// User is the created user.
	User *user.User
}

// RegisterUserHandler handles the RegisterUserCommand.
type RegisterUserHandler struct {
	drawRepo draw.Repository
	userRepo user.Repository
}

// NewRegisterUserHandler creates a new RegisterUserHandler.
func NewRegisterUserHandler(drawRepo draw.Repository, userRepo user.Repository) *RegisterUserHandler {
	return &RegisterUserHandler{drawRepo: drawRepo, userRepo: userRepo}
}

// Handle executes the register user command.
func (h *RegisterUserHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (*RegisterUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("register_user: validation failed: %w", err)
	}

	if _, err := h.drawRepo.GetByID(ctx, cmd.DrawID); err != nil {
		return nil, err
	}

	u, err := user.NewUser(user.NewUserParams{
		ID:          uuid.NewString(),
		DrawID:      cmd.DrawID,
		DisplayName: cmd.DisplayName,
		Email:       cmd.Email,
		Intent:      user.Intent(cmd.Intent),
	})
	if err != nil {
		return nil, err
	}
	if err := h.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}
	return &RegisterUserResult{User: u}, nil
}

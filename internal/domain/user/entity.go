// Package user contains the domain model for draw participants.
// Users are read-only collaborators for the membership engine: the engine
// consults a user's draw and housing intent but never mutates the user.
package user

import (
	"strings"
	"time"

	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// Intent represents a user's declared housing intent for the draw.
type Intent string

const (
	// IntentOnCampus - the user intends to live on campus and may hold
	// group memberships.
	IntentOnCampus Intent = "on_campus"

	// IntentOther - the user has made other housing arrangements.
	IntentOther Intent = "other"

	// IntentUndeclared - the user has not declared an intent yet.
	IntentUndeclared Intent = "undeclared"
)

// IsValid reports whether the intent is one of the known values.
func (i Intent) IsValid() bool {
	switch i {
	case IntentOnCampus, IntentOther, IntentUndeclared:
		return true
	}
	return false
}

// String returns the string representation of the intent.
func (i Intent) String() string { return string(i) }

// ParseIntent parses a string into an Intent, defaulting to undeclared.
func ParseIntent(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentOnCampus:
		return IntentOnCampus
	case IntentOther:
		return IntentOther
	default:
		return IntentUndeclared
	}
}

// Domain errors.
var (
	ErrUserNotFound      = shared.NewDomainError("user", "Find", shared.ErrNotFound, "user not found")
	ErrUserAlreadyExists = shared.NewDomainError("user", "Create", shared.ErrAlreadyExists, "user already exists")
	ErrInvalidIntent     = shared.NewDomainError("user", "Validate", shared.ErrInvalidInput, "invalid housing intent")
	ErrInvalidName       = shared.NewDomainError("user", "Validate", shared.ErrInvalidInput, "display name must be 1-100 chars")
)

// User represents a draw participant.
type User struct {
	// ID is the unique identifier (UUID string).
	ID string

	// DrawID is the draw the user belongs to. Empty until the user is
	// assigned to a draw.
	DrawID string

	// DisplayName is the user's display name.
	DisplayName string

	// Email is the user's email address (unique).
	Email string

	// Intent is the user's declared housing intent.
	Intent Intent

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUserParams contains the data required to create a user.
type NewUserParams struct {
	ID          string
	DrawID      string
	DisplayName string
	Email       string
	Intent      Intent
}

// NewUser creates a validated User.
func NewUser(params NewUserParams) (*User, error) {
	if params.DisplayName == "" || len(params.DisplayName) > 100 {
		return nil, ErrInvalidName
	}
	if params.Intent == "" {
		params.Intent = IntentUndeclared
	}
	if !params.Intent.IsValid() {
		return nil, ErrInvalidIntent
	}

	now := time.Now().UTC()
	return &User{
		ID:          params.ID,
		DrawID:      params.DrawID,
		DisplayName: params.DisplayName,
		Email:       params.Email,
		Intent:      params.Intent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// OnCampus reports whether the user may hold group memberships.
func (u *User) OnCampus() bool {
	return u.Intent == IntentOnCampus
}

// InDraw reports whether the user belongs to the given draw.
func (u *User) InDraw(drawID string) bool {
	return u.DrawID != "" && u.DrawID == drawID
}

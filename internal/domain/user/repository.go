package user

import "context"

// Repository defines persistence operations for users.
type Repository interface {
	// Create persists a new user.
	// Returns ErrUserAlreadyExists if the email is taken.
	Create(ctx context.Context, u *User) error

	// GetByID returns a user by ID.
	// Returns ErrUserNotFound if no user exists.
	GetByID(ctx context.Context, id string) (*User, error)
}

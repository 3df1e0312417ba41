package draw

import "context"

// Repository defines persistence operations for draws.
type Repository interface {
	// Create persists a new draw.
	Create(ctx context.Context, d *Draw) error

	// GetByID returns a draw by ID.
	// Returns ErrDrawNotFound if no draw exists.
	GetByID(ctx context.Context, id string) (*Draw, error)

	// GetAll returns all draws.
	GetAll(ctx context.Context) ([]*Draw, error)

	// Update persists changes to a draw.
	// Returns ErrDrawNotFound if no draw exists.
	Update(ctx context.Context, d *Draw) error
}

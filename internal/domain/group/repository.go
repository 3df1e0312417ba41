package group

import "context"

// Repository defines persistence operations for groups outside the
// membership engine's transactional store. Group rows, status, and
// MembershipsCount are written only through the engine; this interface
// covers reads plus the suite-selection column.
type Repository interface {
	// GetByID returns a group by ID.
	// Returns ErrGroupNotFound if no group exists.
	GetByID(ctx context.Context, id string) (*Group, error)

	// GetByDraw returns all groups in a draw.
	GetByDraw(ctx context.Context, drawID string) ([]*Group, error)

	// GetByLeader returns the group led by the given user in a draw, if any.
	// Returns ErrGroupNotFound if the user leads no group.
	GetByLeader(ctx context.Context, drawID, leaderID string) (*Group, error)

	// UpdateSuite assigns a suite to a group (suite-selection flow input).
	UpdateSuite(ctx context.Context, groupID, suiteID string) error
}

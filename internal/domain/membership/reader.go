package membership

import "context"

// Reader is the non-transactional query surface over membership rows. The
// engine never uses it; queries and event handlers do. Reads are plain
// committed-snapshot reads, no locks.
type Reader interface {
	// Get returns the membership for the pair.
	// Returns ErrMembershipNotFound if no row exists.
	Get(ctx context.Context, groupID, userID string) (*Membership, error)

	// ListByGroup returns all memberships of a group.
	ListByGroup(ctx context.Context, groupID string) ([]*Membership, error)

	// ListByUser returns all of a user's memberships within a draw.
	ListByUser(ctx context.Context, drawID, userID string) ([]*Membership, error)

	// CountAcceptedByDraw returns the number of accepted memberships per
	// group for a draw. Used by the stale-group sweep.
	CountAcceptedByDraw(ctx context.Context, drawID string) (map[string]int, error)
}

package membership

import (
	"context"

	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/user"
)

// TxStore is the storage surface the engine uses inside one transaction.
// Implementations must guarantee that the *ForUpdate reads take row-level
// locks (or that the whole transaction runs serializable), so that the
// single-commitment and counter invariants hold under concurrent writers.
type TxStore interface {
	// GetForUpdate returns the committed membership row for the pair,
	// locked for the remainder of the transaction.
	// Returns ErrMembershipNotFound if no row exists.
	GetForUpdate(ctx context.Context, groupID, userID string) (*Membership, error)

	// ListByUserForUpdate returns all of a user's memberships within a
	// draw, locked for the remainder of the transaction.
	ListByUserForUpdate(ctx context.Context, drawID, userID string) ([]*Membership, error)

	// ListByGroup returns all memberships of a group.
	ListByGroup(ctx context.Context, groupID string) ([]*Membership, error)

	// Insert persists a new membership row.
	Insert(ctx context.Context, m *Membership) error

	// Update persists changes to an existing row.
	Update(ctx context.Context, m *Membership) error

	// Delete removes a row.
	Delete(ctx context.Context, groupID, userID string) error

	// GroupForUpdate returns the group row locked for the remainder of
	// the transaction. Returns group.ErrGroupNotFound if no row exists.
	GroupForUpdate(ctx context.Context, groupID string) (*group.Group, error)

	// InsertGroup persists a new group row (leader-creation flow: the
	// group and the leader's accepted membership commit together).
	InsertGroup(ctx context.Context, g *group.Group) error

	// SetGroupAggregates writes the group's derived columns: the cached
	// accepted counter and the status.
	SetGroupAggregates(ctx context.Context, groupID string, count int, status group.Status) error

	// DeleteGroup removes a group row whose memberships are cleared.
	DeleteGroup(ctx context.Context, groupID string) error

	// GetUser returns a user snapshot.
	// Returns user.ErrUserNotFound if no user exists.
	GetUser(ctx context.Context, userID string) (*user.User, error)
}

// Store opens engine transactions. The postgres implementation retries the
// whole function on serialization conflicts, so fn must be safe to re-run.
type Store interface {
	InTx(ctx context.Context, fn func(tx TxStore) error) error
}

// CleanupFunc is the group's external reconciliation hook, invoked exactly
// once per membership destroy, inside the same transaction. It is an
// injected capability rather than a method on Group, which keeps the engine
// decoupled from the Group implementation. Implementations should be
// idempotent: a best-effort recount, not a second source of truth.
type CleanupFunc func(ctx context.Context, tx TxStore, g *group.Group) error

// DefaultCleanup recounts the group's accepted memberships and rederives
// the capacity status. It can only converge toward the state the engine
// already computed, so running it after an engine write is a no-op unless
// some drift slipped in.
func DefaultCleanup(ctx context.Context, tx TxStore, g *group.Group) error {
	members, err := tx.ListByGroup(ctx, g.ID)
	if err != nil {
		return err
	}

	count := 0
	for _, m := range members {
		if m.Status.Accepted() {
			count++
		}
	}

	status, _ := g.CapacityTransition(count)
	if count == g.MembershipsCount && status == g.Status {
		return nil
	}

	g.MembershipsCount = count
	g.Status = status
	return tx.SetGroupAggregates(ctx, g.ID, count, status)
}

package group

import (
	"context"
	"time"
)

// RosterEntry is one member line of a cached group roster.
type RosterEntry struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
	Locked      bool   `json:"locked"`
}

// Roster is the cached read model of a group: the group row plus its
// member lines. Rebuilt from postgres on a cache miss and invalidated by
// the membership event handlers on every write that touches the group.
type Roster struct {
	Group    *Group        `json:"group"`
	Members  []RosterEntry `json:"members"`
	CachedAt time.Time     `json:"cached_at"`
}

// Cache defines caching operations for group read models.
type Cache interface {
	// GetRoster returns the cached roster for a group.
	// Returns shared.ErrNotFound on a cache miss.
	GetRoster(ctx context.Context, groupID string) (*Roster, error)

	// SetRoster stores a roster with a TTL.
	SetRoster(ctx context.Context, roster *Roster, ttl time.Duration) error

	// Invalidate drops the cached roster for a group.
	Invalidate(ctx context.Context, groupID string) error

	// InvalidateDraw drops every cached roster belonging to a draw.
	InvalidateDraw(ctx context.Context, drawID string) error
}

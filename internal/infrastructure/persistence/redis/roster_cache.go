package redis

import (
	"context"
	"errors"
	"time"

	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// Key prefixes for namespacing Redis keys.
const (
	// prefixRoster holds serialized group rosters.
	prefixRoster = "roster:"

	// prefixDrawRosters holds the set of roster keys per draw, so a
	// draw teardown can invalidate them in one sweep.
	prefixDrawRosters = "draw:rosters:"
)

// RosterCache implements group.Cache on Redis.
type RosterCache struct {
	cache *Cache
}

// NewRosterCache creates a new RosterCache.
func NewRosterCache(cache *Cache) *RosterCache {
	return &RosterCache{cache: cache}
}

func rosterKey(groupID string) string {
	return prefixRoster + groupID
}

func drawRostersKey(drawID string) string {
	return prefixDrawRosters + drawID
}

// GetRoster returns the cached roster for a group.
func (r *RosterCache) GetRoster(ctx context.Context, groupID string) (*group.Roster, error) {
	var roster group.Roster
	err := r.cache.Get(ctx, rosterKey(groupID), &roster)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.WrapError("group", "GetRoster", shared.ErrNotFound, "roster not cached", err)
		}
		return nil, err
	}
	return &roster, nil
}

// SetRoster stores a roster and indexes it under its draw.
func (r *RosterCache) SetRoster(ctx context.Context, roster *group.Roster, ttl time.Duration) error {
	if err := r.cache.Set(ctx, rosterKey(roster.Group.ID), roster, ttl); err != nil {
		return err
	}

	// Track the key per draw; the index lives slightly longer than its
	// members so InvalidateDraw sees them all.
	client := r.cache.Client()
	pipe := client.Pipeline()
	pipe.SAdd(ctx, drawRostersKey(roster.Group.DrawID), roster.Group.ID)
	pipe.Expire(ctx, drawRostersKey(roster.Group.DrawID), ttl+time.Minute)
	_, err := pipe.Exec(ctx)
	return err
}

// Invalidate drops the cached roster for a group.
func (r *RosterCache) Invalidate(ctx context.Context, groupID string) error {
	return r.cache.Delete(ctx, rosterKey(groupID))
}

// InvalidateDraw drops every cached roster belonging to a draw.
func (r *RosterCache) InvalidateDraw(ctx context.Context, drawID string) error {
	client := r.cache.Client()

	groupIDs, err := client.SMembers(ctx, drawRostersKey(drawID)).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(groupIDs)+1)
	for _, id := range groupIDs {
		keys = append(keys, rosterKey(id))
	}
	keys = append(keys, drawRostersKey(drawID))
	return r.cache.Delete(ctx, keys...)
}

// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/membership"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
	"github.com/meonBot/master-vesta-2/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET GROUP QUERY
// Returns the group read model: the group row plus its member roster.
// Reads through the roster cache; on a miss the roster is rebuilt from
// postgres and cached. The membership event handlers invalidate the cache
// on every write that touches the group.
// ══════════════════════════════════════════════════════════════════════════════

// rosterTTL bounds staleness if an invalidation is lost.
const rosterTTL = 5 * time.Minute

// GetGroupQuery contains the parameters of a group lookup.
type GetGroupQuery struct {
	// GroupID is the group to fetch.
	GroupID string
}

// Validate validates the query.
func (q GetGroupQuery) Validate() error {
	if q.GroupID == "" {
		return errors.New("get_group: group_id is required")
	}
	return nil
}

// GetGroupResult contains the group read model.
type GetGroupResult struct {
	// Roster is the group plus its member lines.
	Roster *group.Roster

	// FromCache reports whether the roster was served from cache.
	FromCache bool
}

// GetGroupHandler handles the GetGroupQuery.
type GetGroupHandler struct {
	groupRepo   group.Repository
	userRepo    user.Repository
	memberships membership.Reader
	cache       group.Cache
	logger      *slog.Logger
}

// NewGetGroupHandler creates a new GetGroupHandler. cache may be nil; the
// query then always reads from postgres.
func NewGetGroupHandler(
	groupRepo group.Repository,
	userRepo user.Repository,
	memberships membership.Reader,
	cache group.Cache,
	logger *slog.Logger,
) *GetGroupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetGroupHandler{
		groupRepo:   groupRepo,
		userRepo:    userRepo,
		memberships: memberships,
		cache:       cache,
		logger:      logger,
	}
}

// Handle executes the get group query.
func (h *GetGroupHandler) Handle(ctx context.Context, q GetGroupQuery) (*GetGroupResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_group: validation failed: %w", err)
	}

	if h.cache != nil {
		roster, err := h.cache.GetRoster(ctx, q.GroupID)
		if err == nil {
			return &GetGroupResult{Roster: roster, FromCache: true}, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			// Cache trouble degrades to a postgres read.
			h.logger.Warn("roster cache read failed", "group_id", q.GroupID, "error", err)
		}
	}

	roster, err := h.buildRoster(ctx, q.GroupID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.SetRoster(ctx, roster, rosterTTL); err != nil {
			h.logger.Warn("roster cache write failed", "group_id", q.GroupID, "error", err)
		}
	}
	return &GetGroupResult{Roster: roster}, nil
}

// buildRoster assembles the read model from postgres.
func (h *GetGroupHandler) buildRoster(ctx context.Context, groupID string) (*group.Roster, error) {
	g, err := h.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members, err := h.memberships.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get_group: member listing failed: %w", err)
	}

	roster := &group.Roster{
		Group:    g,
		Members:  make([]group.RosterEntry, 0, len(members)),
		CachedAt: time.Now().UTC(),
	}
	for _, m := range members {
		entry := group.RosterEntry{
			UserID: m.UserID,
			Status: m.Status.String(),
			Locked: m.Locked,
		}
		if u, err := h.userRepo.GetByID(ctx, m.UserID); err == nil {
			entry.DisplayName = u.DisplayName
		}
		roster.Members = append(roster.Members, entry)
	}
	return roster, nil
}

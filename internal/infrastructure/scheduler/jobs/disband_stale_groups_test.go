package jobs

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meonBot/master-vesta-2/internal/domain/draw"
	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/membership"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
	"github.com/meonBot/master-vesta-2/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type stubDrawRepo struct {
	draws []*draw.Draw
}

func (r *stubDrawRepo) Create(_ context.Context, d *draw.Draw) error {
	r.draws = append(r.draws, d)
	return nil
}

func (r *stubDrawRepo) GetByID(_ context.Context, id string) (*draw.Draw, error) {
	for _, d := range r.draws {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, draw.ErrDrawNotFound
}

func (r *stubDrawRepo) GetAll(_ context.Context) ([]*draw.Draw, error) { return r.draws, nil }

func (r *stubDrawRepo) Update(_ context.Context, _ *draw.Draw) error { return nil }

type stubGroupRepo struct {
	store *sweepStore
}

func (r *stubGroupRepo) GetByID(_ context.Context, id string) (*group.Group, error) {
	if g, ok := r.store.groups[id]; ok {
		return g, nil
	}
	return nil, group.ErrGroupNotFound
}

func (r *stubGroupRepo) GetByDraw(_ context.Context, drawID string) ([]*group.Group, error) {
	var out []*group.Group
	for _, g := range r.store.groups {
		if g.DrawID == drawID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubGroupRepo) GetByLeader(_ context.Context, drawID, leaderID string) (*group.Group, error) {
	for _, g := range r.store.groups {
		if g.DrawID == drawID && g.LeaderID == leaderID {
			return g, nil
		}
	}
	return nil, group.ErrGroupNotFound
}

func (r *stubGroupRepo) UpdateSuite(_ context.Context, _, _ string) error { return nil }

// sweepStore backs the engine with in-process maps. The sweep only drives
// the happy disband path, so writes apply directly without rollback.
type sweepStore struct {
	groups  map[string]*group.Group
	members map[string]*membership.Membership
}

func newSweepStore() *sweepStore {
	return &sweepStore{
		groups:  make(map[string]*group.Group),
		members: make(map[string]*membership.Membership),
	}
}

func sweepKey(groupID, userID string) string { return groupID + "|" + userID }

func (s *sweepStore) InTx(_ context.Context, fn func(tx membership.TxStore) error) error {
	return fn(s)
}

func (s *sweepStore) GetForUpdate(_ context.Context, groupID, userID string) (*membership.Membership, error) {
	if m, ok := s.members[sweepKey(groupID, userID)]; ok {
		return m.Clone(), nil
	}
	return nil, membership.ErrMembershipNotFound
}

func (s *sweepStore) ListByUserForUpdate(_ context.Context, drawID, userID string) ([]*membership.Membership, error) {
	var out []*membership.Membership
	for _, m := range s.members {
		if m.DrawID == drawID && m.UserID == userID {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}

func (s *sweepStore) ListByGroup(_ context.Context, groupID string) ([]*membership.Membership, error) {
	var out []*membership.Membership
	for _, m := range s.members {
		if m.GroupID == groupID {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *sweepStore) Insert(_ context.Context, m *membership.Membership) error {
	s.members[sweepKey(m.GroupID, m.UserID)] = m.Clone()
	return nil
}

func (s *sweepStore) Update(_ context.Context, m *membership.Membership) error {
	s.members[sweepKey(m.GroupID, m.UserID)] = m.Clone()
	return nil
}

func (s *sweepStore) Delete(_ context.Context, groupID, userID string) error {
	delete(s.members, sweepKey(groupID, userID))
	return nil
}

func (s *sweepStore) GroupForUpdate(_ context.Context, groupID string) (*group.Group, error) {
	if g, ok := s.groups[groupID]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, group.ErrGroupNotFound
}

func (s *sweepStore) InsertGroup(_ context.Context, g *group.Group) error {
	cp := *g
	s.groups[g.ID] = &cp
	return nil
}

func (s *sweepStore) SetGroupAggregates(_ context.Context, groupID string, count int, status group.Status) error {
	g, ok := s.groups[groupID]
	if !ok {
		return group.ErrGroupNotFound
	}
	g.MembershipsCount = count
	g.Status = status
	return nil
}

func (s *sweepStore) DeleteGroup(_ context.Context, groupID string) error {
	delete(s.groups, groupID)
	return nil
}

func (s *sweepStore) GetUser(_ context.Context, userID string) (*user.User, error) {
	return nil, user.ErrUserNotFound
}

type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) PublishBatch(events []shared.Event) error {
	p.events = append(p.events, events...)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP
// ══════════════════════════════════════════════════════════════════════════════

func TestStaleSweepDisbandsAndPublishes(t *testing.T) {
	store := newSweepStore()
	stale := time.Now().UTC().Add(-48 * time.Hour)

	store.groups["g1"] = &group.Group{
		ID:               "g1",
		DrawID:           "d1",
		LeaderID:         "u1",
		Size:             4,
		Status:           group.StatusOpen,
		MembershipsCount: 1,
		UpdatedAt:        stale,
	}
	store.members[sweepKey("g1", "u1")] = &membership.Membership{
		ID: "m1", GroupID: "g1", UserID: "u1", DrawID: "d1",
		Status: membership.StatusAccepted,
	}
	store.members[sweepKey("g1", "u2")] = &membership.Membership{
		ID: "m2", GroupID: "g1", UserID: "u2", DrawID: "d1",
		Status: membership.StatusRequested,
	}

	draws := &stubDrawRepo{draws: []*draw.Draw{
		{ID: "d1", Name: "Spring Draw", Status: draw.StatusLottery},
	}}
	engine := membership.NewEngine(store, membership.DefaultCleanup, nil)
	pub := &recordingPublisher{}

	job := NewDisbandStaleGroupsJob(draws, &stubGroupRepo{store: store}, engine, pub, 24*time.Hour, nil)

	require.NoError(t, job.Run(context.Background()))

	assert.NotContains(t, store.groups, "g1")
	assert.Empty(t, store.members)

	// The sweep publishes what the engine emitted so the cached rosters
	// get dropped like any other write.
	require.NotEmpty(t, pub.events)
	var destroyed, disbanded int
	for _, ev := range pub.events {
		switch ev.EventType() {
		case shared.EventMembershipDestroyed:
			destroyed++
		case shared.EventGroupDisbanded:
			disbanded++
		}
	}
	assert.Equal(t, 2, destroyed)
	assert.Equal(t, 1, disbanded)
}

func TestStaleSweepSkipsFreshAndNonLotteryDraws(t *testing.T) {
	store := newSweepStore()

	// Fresh open group in a lottery draw stays.
	store.groups["g1"] = &group.Group{
		ID: "g1", DrawID: "d1", LeaderID: "u1", Size: 4,
		Status:    group.StatusOpen,
		UpdatedAt: time.Now().UTC(),
	}
	// Stale group, but its draw is still forming.
	store.groups["g2"] = &group.Group{
		ID: "g2", DrawID: "d2", LeaderID: "u2", Size: 4,
		Status:    group.StatusOpen,
		UpdatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}

	draws := &stubDrawRepo{draws: []*draw.Draw{
		{ID: "d1", Name: "One", Status: draw.StatusLottery},
		{ID: "d2", Name: "Two", Status: draw.StatusPreLottery},
	}}
	engine := membership.NewEngine(store, membership.DefaultCleanup, nil)
	pub := &recordingPublisher{}

	job := NewDisbandStaleGroupsJob(draws, &stubGroupRepo{store: store}, engine, pub, 24*time.Hour, nil)

	require.NoError(t, job.Run(context.Background()))

	assert.Contains(t, store.groups, "g1")
	assert.Contains(t, store.groups, "g2")
	assert.Empty(t, pub.events)
}

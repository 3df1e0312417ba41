package membership

import (
	"context"
	"sort"
	"sync"

	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/user"
)

// memStore is an in-memory Store for exercising the engine without
// Postgres. InTx snapshots the whole state and restores it on error, which
// mirrors the all-or-nothing semantics of the real transaction.
type memStore struct {
	mu      sync.Mutex
	users   map[string]*user.User
	groups  map[string]*group.Group
	members map[string]*Membership // key: groupID + "|" + userID
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[string]*user.User),
		groups:  make(map[string]*group.Group),
		members: make(map[string]*Membership),
	}
}

func memberKey(groupID, userID string) string {
	return groupID + "|" + userID
}

func (s *memStore) seedUser(u *user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

func (s *memStore) seedGroup(g *group.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.groups[g.ID] = &cp
}

func (s *memStore) seedMembership(m *Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey(m.GroupID, m.UserID)] = m.Clone()
}

func (s *memStore) group(id string) *group.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[id]; ok {
		cp := *g
		return &cp
	}
	return nil
}

func (s *memStore) membership(groupID, userID string) *Membership {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[memberKey(groupID, userID)]; ok {
		return m.Clone()
	}
	return nil
}

func (s *memStore) acceptedCount(groupID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.members {
		if m.GroupID == groupID && m.Status.Accepted() {
			n++
		}
	}
	return n
}

// InTx implements Store.
func (s *memStore) InTx(_ context.Context, fn func(tx TxStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapGroups := make(map[string]*group.Group, len(s.groups))
	for k, v := range s.groups {
		cp := *v
		snapGroups[k] = &cp
	}
	snapMembers := make(map[string]*Membership, len(s.members))
	for k, v := range s.members {
		snapMembers[k] = v.Clone()
	}

	if err := fn(&memTx{store: s}); err != nil {
		s.groups = snapGroups
		s.members = snapMembers
		return err
	}
	return nil
}

// memTx implements TxStore over the locked store. Reads return copies so
// the engine's local mutations only land through explicit writes, like a
// real database round trip.
type memTx struct {
	store *memStore
}

func (t *memTx) GetForUpdate(_ context.Context, groupID, userID string) (*Membership, error) {
	if m, ok := t.store.members[memberKey(groupID, userID)]; ok {
		return m.Clone(), nil
	}
	return nil, ErrMembershipNotFound
}

func (t *memTx) ListByUserForUpdate(_ context.Context, drawID, userID string) ([]*Membership, error) {
	var out []*Membership
	for _, m := range t.store.members {
		if m.UserID == userID && m.DrawID == drawID {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}

func (t *memTx) ListByGroup(_ context.Context, groupID string) ([]*Membership, error) {
	var out []*Membership
	for _, m := range t.store.members {
		if m.GroupID == groupID {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (t *memTx) Insert(_ context.Context, m *Membership) error {
	key := memberKey(m.GroupID, m.UserID)
	if _, exists := t.store.members[key]; exists {
		return &ValidationError{Messages: []string{MsgDuplicateMembership}}
	}
	t.store.members[key] = m.Clone()
	return nil
}

func (t *memTx) Update(_ context.Context, m *Membership) error {
	key := memberKey(m.GroupID, m.UserID)
	if _, exists := t.store.members[key]; !exists {
		return ErrMembershipNotFound
	}
	t.store.members[key] = m.Clone()
	return nil
}

func (t *memTx) Delete(_ context.Context, groupID, userID string) error {
	key := memberKey(groupID, userID)
	if _, exists := t.store.members[key]; !exists {
		return ErrMembershipNotFound
	}
	delete(t.store.members, key)
	return nil
}

func (t *memTx) GroupForUpdate(_ context.Context, groupID string) (*group.Group, error) {
	if g, ok := t.store.groups[groupID]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, group.ErrGroupNotFound
}

func (t *memTx) InsertGroup(_ context.Context, g *group.Group) error {
	cp := *g
	t.store.groups[g.ID] = &cp
	return nil
}

func (t *memTx) SetGroupAggregates(_ context.Context, groupID string, count int, status group.Status) error {
	g, ok := t.store.groups[groupID]
	if !ok {
		return group.ErrGroupNotFound
	}
	g.MembershipsCount = count
	g.Status = status
	return nil
}

func (t *memTx) DeleteGroup(_ context.Context, groupID string) error {
	if _, ok := t.store.groups[groupID]; !ok {
		return group.ErrGroupNotFound
	}
	delete(t.store.groups, groupID)
	return nil
}

func (t *memTx) GetUser(_ context.Context, userID string) (*user.User, error) {
	if u, ok := t.store.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, user.ErrUserNotFound
}

package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meonBot/master-vesta-2/internal/domain/draw"
	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeDrawRepo struct {
	draws map[string]*draw.Draw
}

func newFakeDrawRepo() *fakeDrawRepo {
	return &fakeDrawRepo{draws: make(map[string]*draw.Draw)}
}

func (r *fakeDrawRepo) Create(_ context.Context, d *draw.Draw) error {
	r.draws[d.ID] = d
	return nil
}

func (r *fakeDrawRepo) GetByID(_ context.Context, id string) (*draw.Draw, error) {
	d, ok := r.draws[id]
	if !ok {
		return nil, draw.ErrDrawNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDrawRepo) GetAll(_ context.Context) ([]*draw.Draw, error) {
	out := make([]*draw.Draw, 0, len(r.draws))
	for _, d := range r.draws {
		out = append(out, d)
	}
	return out, nil
}

func (r *fakeDrawRepo) Update(_ context.Context, d *draw.Draw) error {
	if _, ok := r.draws[d.ID]; !ok {
		return draw.ErrDrawNotFound
	}
	cp := *d
	r.draws[d.ID] = &cp
	return nil
}

type fakeUserRepo struct {
	users  map[string]*user.User
	emails map[string]bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*user.User), emails: make(map[string]bool)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *user.User) error {
	if r.emails[u.Email] {
		return user.ErrUserAlreadyExists
	}
	r.users[u.ID] = u
	r.emails[u.Email] = true
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

type fakeGroupRepo struct {
	groups map[string]*group.Group
	suites map[string]string
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{groups: make(map[string]*group.Group), suites: make(map[string]string)}
}

func (r *fakeGroupRepo) GetByID(_ context.Context, id string) (*group.Group, error) {
	g, ok := r.groups[id]
	if !ok {
		return nil, group.ErrGroupNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *fakeGroupRepo) GetByDraw(_ context.Context, drawID string) ([]*group.Group, error) {
	var out []*group.Group
	for _, g := range r.groups {
		if g.DrawID == drawID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *fakeGroupRepo) GetByLeader(_ context.Context, drawID, leaderID string) (*group.Group, error) {
	for _, g := range r.groups {
		if g.DrawID == drawID && g.LeaderID == leaderID {
			return g, nil
		}
	}
	return nil, group.ErrGroupNotFound
}

func (r *fakeGroupRepo) UpdateSuite(_ context.Context, groupID, suiteID string) error {
	if _, ok := r.groups[groupID]; !ok {
		return group.ErrGroupNotFound
	}
	r.suites[groupID] = suiteID
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CREATE DRAW
// ══════════════════════════════════════════════════════════════════════════════

func TestCreateDrawStartsInDraft(t *testing.T) {
	repo := newFakeDrawRepo()
	h := NewCreateDrawHandler(repo)

	res, err := h.Handle(context.Background(), CreateDrawCommand{Name: "Sophomore Draw 2026"})
	require.NoError(t, err)
	require.NotNil(t, res.Draw)

	assert.Equal(t, draw.StatusDraft, res.Draw.Status)
	assert.NotEmpty(t, res.Draw.ID)

	stored, err := repo.GetByID(context.Background(), res.Draw.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sophomore Draw 2026", stored.Name)
}

func TestCreateDrawRequiresName(t *testing.T) {
	h := NewCreateDrawHandler(newFakeDrawRepo())

	_, err := h.Handle(context.Background(), CreateDrawCommand{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

// ══════════════════════════════════════════════════════════════════════════════
// ADVANCE DRAW
// ══════════════════════════════════════════════════════════════════════════════

func TestAdvanceDrawMovesForward(t *testing.T) {
	repo := newFakeDrawRepo()
	d, err := draw.NewDraw("d1", "Spring Draw")
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), d))

	h := NewAdvanceDrawHandler(repo)

	res, err := h.Handle(context.Background(), AdvanceDrawCommand{DrawID: "d1", Status: "pre_lottery"})
	require.NoError(t, err)
	assert.Equal(t, draw.StatusPreLottery, res.Draw.Status)

	stored, err := repo.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, draw.StatusPreLottery, stored.Status)
}

func TestAdvanceDrawRejectsBackwardTransition(t *testing.T) {
	repo := newFakeDrawRepo()
	d, err := draw.NewDraw("d1", "Spring Draw")
	require.NoError(t, err)
	d.Status = draw.StatusLottery
	require.NoError(t, repo.Create(context.Background(), d))

	h := NewAdvanceDrawHandler(repo)

	_, err = h.Handle(context.Background(), AdvanceDrawCommand{DrawID: "d1", Status: "pre_lottery"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, draw.ErrInvalidTransition))

	// Same phase is not an advance either.
	_, err = h.Handle(context.Background(), AdvanceDrawCommand{DrawID: "d1", Status: "lottery"})
	assert.True(t, errors.Is(err, draw.ErrInvalidTransition))

	stored, err := repo.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, draw.StatusLottery, stored.Status)
}

func TestAdvanceDrawRejectsUnknownStatus(t *testing.T) {
	repo := newFakeDrawRepo()
	d, err := draw.NewDraw("d1", "Spring Draw")
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), d))

	h := NewAdvanceDrawHandler(repo)

	_, err = h.Handle(context.Background(), AdvanceDrawCommand{DrawID: "d1", Status: "intermission"})
	require.Error(t, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER USER
// ══════════════════════════════════════════════════════════════════════════════

func TestRegisterUserCreatesUserInDraw(t *testing.T) {
	draws := newFakeDrawRepo()
	users := newFakeUserRepo()
	d, err := draw.NewDraw("d1", "Spring Draw")
	require.NoError(t, err)
	require.NoError(t, draws.Create(context.Background(), d))

	h := NewRegisterUserHandler(draws, users)

	res, err := h.Handle(context.Background(), RegisterUserCommand{
		DrawID:      "d1",
		DisplayName: "Alice",
		Email:       "alice@example.edu",
		Intent:      "on_campus",
	})
	require.NoError(t, err)
	assert.Equal(t, "d1", res.User.DrawID)
	assert.Equal(t, user.IntentOnCampus, res.User.Intent)

	stored, err := users.GetByID(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.edu", stored.Email)
}

func TestRegisterUserRequiresExistingDraw(t *testing.T) {
	h := NewRegisterUserHandler(newFakeDrawRepo(), newFakeUserRepo())

	_, err := h.Handle(context.Background(), RegisterUserCommand{
		DrawID:      "missing",
		DisplayName: "Alice",
		Email:       "alice@example.edu",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, draw.ErrDrawNotFound))
}

func TestRegisterUserRejectsDuplicateEmail(t *testing.T) {
	draws := newFakeDrawRepo()
	users := newFakeUserRepo()
	d, err := draw.NewDraw("d1", "Spring Draw")
	require.NoError(t, err)
	require.NoError(t, draws.Create(context.Background(), d))

	h := NewRegisterUserHandler(draws, users)

	cmd := RegisterUserCommand{DrawID: "d1", DisplayName: "Alice", Email: "alice@example.edu"}
	_, err = h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	cmd.DisplayName = "Alice Again"
	_, err = h.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, user.ErrUserAlreadyExists))
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGN SUITE
// ══════════════════════════════════════════════════════════════════════════════

func TestAssignSuiteToFinalizingGroup(t *testing.T) {
	groups := newFakeGroupRepo()
	groups.groups["g1"] = &group.Group{
		ID:       "g1",
		DrawID:   "d1",
		LeaderID: "u1",
		Size:     2,
		Status:   group.StatusFinalizing,
	}

	h := NewAssignSuiteHandler(groups)

	res, err := h.Handle(context.Background(), AssignSuiteCommand{GroupID: "g1", SuiteID: "suite-14b"})
	require.NoError(t, err)
	assert.Equal(t, "suite-14b", res.Group.SuiteID)
	assert.Equal(t, "suite-14b", groups.suites["g1"])
}

func TestAssignSuiteAcceptsLegacyFullAsClosed(t *testing.T) {
	// "full" normalizes to closed, which is still before finalizing, so the
	// assignment is rejected the same way open is.
	groups := newFakeGroupRepo()
	groups.groups["g1"] = &group.Group{
		ID:       "g1",
		DrawID:   "d1",
		LeaderID: "u1",
		Size:     2,
		Status:   group.StatusFull,
	}

	h := NewAssignSuiteHandler(groups)

	_, err := h.Handle(context.Background(), AssignSuiteCommand{GroupID: "g1", SuiteID: "suite-14b"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, group.ErrNotSelectingSuite))
}

func TestAssignSuiteRejectsOpenGroup(t *testing.T) {
	groups := newFakeGroupRepo()
	groups.groups["g1"] = &group.Group{
		ID:       "g1",
		DrawID:   "d1",
		LeaderID: "u1",
		Size:     3,
		Status:   group.StatusOpen,
	}

	h := NewAssignSuiteHandler(groups)

	_, err := h.Handle(context.Background(), AssignSuiteCommand{GroupID: "g1", SuiteID: "suite-2a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, group.ErrNotSelectingSuite))
	assert.Empty(t, groups.suites["g1"])
}

func TestAssignSuiteToLockedGroup(t *testing.T) {
	groups := newFakeGroupRepo()
	groups.groups["g1"] = &group.Group{
		ID:       "g1",
		DrawID:   "d1",
		LeaderID: "u1",
		Size:     2,
		Status:   group.StatusLocked,
	}

	h := NewAssignSuiteHandler(groups)

	res, err := h.Handle(context.Background(), AssignSuiteCommand{GroupID: "g1", SuiteID: "suite-9"})
	require.NoError(t, err)
	assert.Equal(t, "suite-9", res.Group.SuiteID)
}

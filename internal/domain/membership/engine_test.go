package membership

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
	"github.com/meonBot/master-vesta-2/internal/domain/user"
)

const testDraw = "draw-1"

func newFixture() (*memStore, *Engine) {
	store := newMemStore()
	return store, NewEngine(store, nil, nil)
}

func seedUser(s *memStore, id string, intent user.Intent) {
	s.seedUser(&user.User{
		ID:          id,
		DrawID:      testDraw,
		DisplayName: id,
		Email:       id + "@example.edu",
		Intent:      intent,
	})
}

func seedGroup(s *memStore, id, leaderID string, size, count int, status group.Status) {
	s.seedGroup(&group.Group{
		ID:               id,
		DrawID:           testDraw,
		LeaderID:         leaderID,
		Size:             size,
		Status:           status,
		MembershipsCount: count,
	})
}

func seedMember(s *memStore, groupID, userID string, status Status, locked bool) {
	s.seedMembership(&Membership{
		ID:      groupID + "-" + userID,
		GroupID: groupID,
		UserID:  userID,
		DrawID:  testDraw,
		Status:  status,
		Locked:  locked,
	})
}

func asValidation(t *testing.T, err error) *ValidationError {
	t.Helper()
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
	return verr
}

// ─────────────────────────────────────────────────────────────────────────────
// Scenario walkthroughs
// ─────────────────────────────────────────────────────────────────────────────

func TestCreateGroupThenFillClosesGroup(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "leader", user.IntentOnCampus)
	seedUser(store, "second", user.IntentOnCampus)

	g, err := group.NewGroup(group.NewGroupParams{ID: "g1", DrawID: testDraw, LeaderID: "leader", Size: 2})
	require.NoError(t, err)

	res, err := engine.CreateGroup(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, res.Membership.Status)
	assert.Equal(t, 1, store.group("g1").MembershipsCount)
	assert.Equal(t, group.StatusOpen, store.group("g1").Status)

	res, err = engine.Create(ctx, CreateParams{GroupID: "g1", UserID: "second", Status: StatusAccepted})
	require.NoError(t, err)
	assert.Equal(t, 2, store.group("g1").MembershipsCount)
	assert.Equal(t, group.StatusClosed, store.group("g1").Status)
	assert.Equal(t, 2, store.acceptedCount("g1"))

	var sawClose bool
	for _, ev := range res.Events {
		if sc, ok := ev.(GroupStatusChangedEvent); ok {
			sawClose = sc.From == group.StatusOpen && sc.To == group.StatusClosed
		}
	}
	assert.True(t, sawClose, "expected open->closed status event")
}

func TestDestroyFromFullGroupReopens(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "u1", user.IntentOnCampus)
	seedUser(store, "u2", user.IntentOnCampus)
	seedGroup(store, "g1", "u1", 2, 2, group.StatusClosed)
	seedMember(store, "g1", "u1", StatusAccepted, false)
	seedMember(store, "g1", "u2", StatusAccepted, false)

	_, err := engine.Destroy(ctx, "g1", "u2")
	require.NoError(t, err)

	assert.Equal(t, 1, store.group("g1").MembershipsCount)
	assert.Equal(t, group.StatusOpen, store.group("g1").Status)
	assert.Nil(t, store.membership("g1", "u2"))
}

func TestLockingLastMembershipLocksGroup(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "u1", user.IntentOnCampus)
	seedGroup(store, "g1", "u1", 1, 1, group.StatusFinalizing)
	seedMember(store, "g1", "u1", StatusAccepted, false)

	res, err := engine.SetLocked(ctx, "g1", "u1", true)
	require.NoError(t, err)

	assert.True(t, res.Membership.Locked)
	assert.Equal(t, group.StatusLocked, store.group("g1").Status)
}

func TestCreatingOwnGroupCascadesInvitation(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "leader-x", user.IntentOnCampus)
	seedUser(store, "u1", user.IntentOnCampus)
	seedGroup(store, "x", "leader-x", 2, 1, group.StatusOpen)
	seedMember(store, "x", "leader-x", StatusAccepted, false)
	seedMember(store, "x", "u1", StatusInvited, false)

	g, err := group.NewGroup(group.NewGroupParams{ID: "own", DrawID: testDraw, LeaderID: "u1", Size: 2})
	require.NoError(t, err)

	res, err := engine.CreateGroup(ctx, g)
	require.NoError(t, err)

	// The invitation in x is gone and unreachable on reload.
	assert.Nil(t, store.membership("x", "u1"))
	require.Len(t, res.Cascaded, 1)
	assert.Equal(t, "x", res.Cascaded[0].GroupID)

	err = store.InTx(ctx, func(tx TxStore) error {
		_, err := tx.GetForUpdate(ctx, "x", "u1")
		return err
	})
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	// x keeps its accepted leader and its counter.
	assert.Equal(t, 1, store.group("x").MembershipsCount)
}

func TestAcceptingInvitationDestroysCompetingRequest(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "leader-r", user.IntentOnCampus)
	seedUser(store, "leader-i", user.IntentOnCampus)
	seedUser(store, "u1", user.IntentOnCampus)
	seedGroup(store, "r", "leader-r", 3, 1, group.StatusOpen)
	seedGroup(store, "i", "leader-i", 3, 1, group.StatusOpen)
	seedMember(store, "r", "leader-r", StatusAccepted, false)
	seedMember(store, "i", "leader-i", StatusAccepted, false)
	seedMember(store, "r", "u1", StatusRequested, false)
	seedMember(store, "i", "u1", StatusInvited, false)

	res, err := engine.Accept(ctx, "i", "u1")
	require.NoError(t, err)

	assert.Equal(t, StatusAccepted, res.Membership.Status)
	assert.Nil(t, store.membership("r", "u1"), "competing request must be destroyed in the same operation")
	assert.Equal(t, 2, store.group("i").MembershipsCount)
	assert.Equal(t, 1, store.group("r").MembershipsCount)

	var destroyed *DestroyedEvent
	for _, ev := range res.Events {
		if d, ok := ev.(DestroyedEvent); ok {
			destroyed = &d
		}
	}
	require.NotNil(t, destroyed)
	assert.True(t, destroyed.Cascaded)
	assert.Equal(t, "r", destroyed.GroupID)
}

func TestCreateAgainstNonOpenGroupRejected(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "u1", user.IntentOnCampus)
	seedGroup(store, "g1", "other", 2, 2, group.StatusFinalizing)

	_, err := engine.Create(ctx, CreateParams{GroupID: "g1", UserID: "u1"})
	verr := asValidation(t, err)
	assert.Contains(t, verr.Messages, MsgGroupNotOpen)
	assert.Nil(t, store.membership("g1", "u1"))
}

// ─────────────────────────────────────────────────────────────────────────────
// Validator behavior through the engine
// ─────────────────────────────────────────────────────────────────────────────

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		seed    func(s *memStore)
		params  CreateParams
		wantMsg string
	}{
		{
			name: "duplicate pair",
			seed: func(s *memStore) {
				seedUser(s, "u1", user.IntentOnCampus)
				seedGroup(s, "g1", "ldr", 4, 0, group.StatusOpen)
				seedMember(s, "g1", "u1", StatusRequested, false)
			},
			params:  CreateParams{GroupID: "g1", UserID: "u1"},
			wantMsg: MsgDuplicateMembership,
		},
		{
			name: "draw mismatch",
			seed: func(s *memStore) {
				s.seedUser(&user.User{ID: "u1", DrawID: "other-draw", DisplayName: "u1", Intent: user.IntentOnCampus})
				seedGroup(s, "g1", "ldr", 4, 0, group.StatusOpen)
			},
			params:  CreateParams{GroupID: "g1", UserID: "u1"},
			wantMsg: MsgDrawMismatch,
		},
		{
			name: "intent not on campus",
			seed: func(s *memStore) {
				seedUser(s, "u1", user.IntentOther)
				seedGroup(s, "g1", "ldr", 4, 0, group.StatusOpen)
			},
			params:  CreateParams{GroupID: "g1", UserID: "u1"},
			wantMsg: MsgIntentRequired,
		},
		{
			name: "undeclared intent",
			seed: func(s *memStore) {
				seedUser(s, "u1", user.IntentUndeclared)
				seedGroup(s, "g1", "ldr", 4, 0, group.StatusOpen)
			},
			params:  CreateParams{GroupID: "g1", UserID: "u1"},
			wantMsg: MsgIntentRequired,
		},
		{
			name: "second accepted commitment",
			seed: func(s *memStore) {
				seedUser(s, "u1", user.IntentOnCampus)
				seedGroup(s, "g1", "ldr1", 4, 1, group.StatusOpen)
				seedGroup(s, "g2", "ldr2", 4, 0, group.StatusOpen)
				seedMember(s, "g1", "u1", StatusAccepted, false)
			},
			params:  CreateParams{GroupID: "g2", UserID: "u1", Status: StatusAccepted},
			wantMsg: MsgAlreadyCommitted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, engine := newFixture()
			tt.seed(store)

			_, err := engine.Create(context.Background(), tt.params)
			verr := asValidation(t, err)
			assert.Contains(t, verr.Messages, tt.wantMsg)
		})
	}
}

func TestStatusImmutableAfterAcceptance(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "u1", user.IntentOnCampus)
	seedGroup(store, "g1", "u1", 2, 1, group.StatusOpen)
	seedMember(store, "g1", "u1", StatusAccepted, false)

	// Re-saving the same status is idempotent.
	st := StatusAccepted
	_, err := engine.Update(ctx, "g1", "u1", Changes{Status: &st})
	require.NoError(t, err)

	// Any other status is rejected.
	st = StatusRequested
	_, err = engine.Update(ctx, "g1", "u1", Changes{Status: &st})
	verr := asValidation(t, err)
	assert.Contains(t, verr.Messages, MsgCannotChangeStatus)
	assert.Equal(t, StatusAccepted, store.membership("g1", "u1").Status)
}

func TestAssociationImmutable(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "u1", user.IntentOnCampus)
	seedGroup(store, "g1", "ldr", 4, 0, group.StatusOpen)
	seedGroup(store, "g2", "ldr2", 4, 0, group.StatusOpen)
	seedMember(store, "g1", "u1", StatusRequested, false)

	other := "g2"
	_, err := engine.Update(ctx, "g1", "u1", Changes{GroupID: &other})
	verr := asValidation(t, err)
	assert.Contains(t, verr.Messages, MsgCannotChangeAssociation)

	otherUser := "u2"
	_, err = engine.Update(ctx, "g1", "u1", Changes{UserID: &otherUser})
	verr = asValidation(t, err)
	assert.Contains(t, verr.Messages, MsgCannotChangeAssociation)
}

func TestLockedRowIsFrozen(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "u1", user.IntentOnCampus)
	seedGroup(store, "g1", "u1", 1, 1, group.StatusFinalizing)
	seedMember(store, "g1", "u1", StatusAccepted, true)

	// Even a no-op write of an already-correct value fails.
	st := StatusAccepted
	_, err := engine.Update(ctx, "g1", "u1", Changes{Status: &st})
	verr := asValidation(t, err)
	assert.Equal(t, []string{MsgCannotEditLocked}, verr.Messages)

	locked := true
	_, err = engine.Update(ctx, "g1", "u1", Changes{Locked: &locked})
	verr = asValidation(t, err)
	assert.Equal(t, []string{MsgCannotEditLocked}, verr.Messages)

	_, err = engine.Destroy(ctx, "g1", "u1")
	verr = asValidation(t, err)
	assert.Equal(t, []string{MsgCannotDestroyLocked}, verr.Messages)

	require.NotNil(t, store.membership("g1", "u1"))
}

func TestLockedRequiresAcceptedAndFinalizing(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "u1", user.IntentOnCampus)
	seedGroup(store, "g1", "ldr", 2, 1, group.StatusOpen)
	seedMember(store, "g1", "u1", StatusAccepted, false)

	// Group is open, not finalizing.
	_, err := engine.SetLocked(ctx, "g1", "u1", true)
	verr := asValidation(t, err)
	assert.Contains(t, verr.Messages, MsgLockedInvalid)

	// Non-accepted membership in a finalizing group cannot lock either.
	seedGroup(store, "g2", "ldr2", 2, 1, group.StatusFinalizing)
	seedMember(store, "g2", "u1", StatusInvited, false)
	_, err = engine.SetLocked(ctx, "g2", "u1", true)
	verr = asValidation(t, err)
	assert.Contains(t, verr.Messages, MsgLockedInvalid)
}

// ─────────────────────────────────────────────────────────────────────────────
// Cascade atomicity and cleanup
// ─────────────────────────────────────────────────────────────────────────────

func TestCascadeFailureAbortsAcceptance(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "u1", user.IntentOnCampus)
	seedGroup(store, "a", "ldr-a", 3, 0, group.StatusOpen)
	seedGroup(store, "b", "ldr-b", 3, 0, group.StatusFinalizing)
	seedMember(store, "a", "u1", StatusInvited, false)
	// A locked competing row should be impossible, but if a race produces
	// one the acceptance must fail atomically rather than half-cascade.
	seedMember(store, "b", "u1", StatusRequested, true)

	_, err := engine.Accept(ctx, "a", "u1")
	require.Error(t, err)

	// Nothing committed: the trigger row is still invited, the competing
	// row still exists.
	assert.Equal(t, StatusInvited, store.membership("a", "u1").Status)
	require.NotNil(t, store.membership("b", "u1"))
	assert.Equal(t, 0, store.group("a").MembershipsCount)
}

func TestCleanupInvokedOncePerDestroy(t *testing.T) {
	store := newMemStore()
	calls := 0
	engine := NewEngine(store, func(ctx context.Context, tx TxStore, g *group.Group) error {
		calls++
		return DefaultCleanup(ctx, tx, g)
	}, nil)
	ctx := context.Background()

	seedUser(store, "u1", user.IntentOnCampus)
	seedUser(store, "u2", user.IntentOnCampus)
	seedGroup(store, "g1", "u1", 3, 2, group.StatusOpen)
	seedMember(store, "g1", "u1", StatusAccepted, false)
	seedMember(store, "g1", "u2", StatusAccepted, false)

	_, err := engine.Destroy(ctx, "g1", "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// A destroy with no status transition still invokes cleanup.
	seedMember(store, "g1", "u2", StatusRequested, false)
	_, err = engine.Destroy(ctx, "g1", "u2")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestAcceptanceCascadeInvokesCleanupPerAffectedGroup(t *testing.T) {
	store := newMemStore()
	cleaned := make(map[string]int)
	engine := NewEngine(store, func(ctx context.Context, tx TxStore, g *group.Group) error {
		cleaned[g.ID]++
		return nil
	}, nil)
	ctx := context.Background()

	seedUser(store, "u1", user.IntentOnCampus)
	seedGroup(store, "a", "ldr-a", 3, 0, group.StatusOpen)
	seedGroup(store, "b", "ldr-b", 3, 0, group.StatusOpen)
	seedGroup(store, "c", "ldr-c", 3, 0, group.StatusOpen)
	seedMember(store, "a", "u1", StatusInvited, false)
	seedMember(store, "b", "u1", StatusRequested, false)
	seedMember(store, "c", "u1", StatusRequested, false)

	_, err := engine.Accept(ctx, "a", "u1")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"b": 1, "c": 1}, cleaned)
	assert.Nil(t, store.membership("b", "u1"))
	assert.Nil(t, store.membership("c", "u1"))
	assert.Equal(t, StatusAccepted, store.membership("a", "u1").Status)
}

// ─────────────────────────────────────────────────────────────────────────────
// Force path and disband
// ─────────────────────────────────────────────────────────────────────────────

func TestForceDestroyBypassesLockGuard(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "u1", user.IntentOnCampus)
	seedGroup(store, "g1", "u1", 1, 1, group.StatusFinalizing)
	seedMember(store, "g1", "u1", StatusAccepted, true)

	_, err := engine.ForceDestroy(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Nil(t, store.membership("g1", "u1"))
	assert.Equal(t, 0, store.group("g1").MembershipsCount)
}

func TestDisbandGroupRemovesEverything(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "u1", user.IntentOnCampus)
	seedUser(store, "u2", user.IntentOnCampus)
	seedGroup(store, "g1", "u1", 2, 2, group.StatusClosed)
	seedMember(store, "g1", "u1", StatusAccepted, false)
	seedMember(store, "g1", "u2", StatusAccepted, false)

	res, err := engine.DisbandGroup(ctx, "g1")
	require.NoError(t, err)

	assert.Nil(t, store.group("g1"))
	assert.Nil(t, store.membership("g1", "u1"))
	assert.Nil(t, store.membership("g1", "u2"))

	var disbanded bool
	for _, ev := range res.Events {
		if _, ok := ev.(GroupDisbandedEvent); ok {
			disbanded = true
		}
	}
	assert.True(t, disbanded)
}

func TestDisbandGroupRejectsLockedRows(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "u1", user.IntentOnCampus)
	seedUser(store, "u2", user.IntentOnCampus)
	seedGroup(store, "g1", "u1", 2, 2, group.StatusFinalizing)
	seedMember(store, "g1", "u1", StatusAccepted, true)
	seedMember(store, "g1", "u2", StatusAccepted, true)

	_, err := engine.DisbandGroup(ctx, "g1")
	verr := asValidation(t, err)
	assert.Equal(t, []string{MsgCannotDestroyLocked}, verr.Messages)

	// The whole disband rolled back: group and both rows survive.
	require.NotNil(t, store.group("g1"))
	assert.NotNil(t, store.membership("g1", "u1"))
	assert.NotNil(t, store.membership("g1", "u2"))
	assert.Equal(t, 2, store.group("g1").MembershipsCount)
}

func TestForceDisbandGroupDestroysLockedRows(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	seedUser(store, "u1", user.IntentOnCampus)
	seedUser(store, "u2", user.IntentOnCampus)
	seedGroup(store, "g1", "u1", 2, 2, group.StatusFinalizing)
	seedMember(store, "g1", "u1", StatusAccepted, true)
	seedMember(store, "g1", "u2", StatusAccepted, true)

	res, err := engine.ForceDisbandGroup(ctx, "g1")
	require.NoError(t, err)

	assert.Nil(t, store.group("g1"))
	assert.Nil(t, store.membership("g1", "u1"))
	assert.Nil(t, store.membership("g1", "u2"))
	for _, ev := range res.Events {
		if de, ok := ev.(DestroyedEvent); ok {
			assert.True(t, de.Forced)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Counter invariant
// ─────────────────────────────────────────────────────────────────────────────

func TestCounterAlwaysMatchesAcceptedRows(t *testing.T) {
	store, engine := newFixture()
	ctx := context.Background()
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		seedUser(store, id, user.IntentOnCampus)
	}

	g, err := group.NewGroup(group.NewGroupParams{ID: "g1", DrawID: testDraw, LeaderID: "u1", Size: 3})
	require.NoError(t, err)
	_, err = engine.CreateGroup(ctx, g)
	require.NoError(t, err)

	check := func() {
		gg := store.group("g1")
		assert.Equal(t, store.acceptedCount("g1"), gg.MembershipsCount)
	}

	_, err = engine.Create(ctx, CreateParams{GroupID: "g1", UserID: "u2"})
	require.NoError(t, err)
	check() // requested rows do not move the counter

	_, err = engine.Accept(ctx, "g1", "u2")
	require.NoError(t, err)
	check()

	_, err = engine.Create(ctx, CreateParams{GroupID: "g1", UserID: "u3", Status: StatusInvited})
	require.NoError(t, err)
	check()

	_, err = engine.Destroy(ctx, "g1", "u3")
	require.NoError(t, err)
	check()

	_, err = engine.Create(ctx, CreateParams{GroupID: "g1", UserID: "u4", Status: StatusAccepted})
	require.NoError(t, err)
	check()
	assert.Equal(t, group.StatusClosed, store.group("g1").Status)
}

func TestDefaultCleanupRepairsDrift(t *testing.T) {
	store, _ := newFixture()
	ctx := context.Background()
	seedUser(store, "u1", user.IntentOnCampus)
	seedGroup(store, "g1", "u1", 2, 5, group.StatusClosed) // counter drifted
	seedMember(store, "g1", "u1", StatusAccepted, false)

	err := store.InTx(ctx, func(tx TxStore) error {
		g, err := tx.GroupForUpdate(ctx, "g1")
		if err != nil {
			return err
		}
		return DefaultCleanup(ctx, tx, g)
	})
	require.NoError(t, err)

	assert.Equal(t, 1, store.group("g1").MembershipsCount)
	assert.Equal(t, group.StatusOpen, store.group("g1").Status)
}

package membership

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// Engine executes membership writes as single atomic units of work:
// validate, persist, maintain the group counter, recompute the group
// status, cascade, and invoke the group cleanup hook. Each public operation
// opens exactly one transaction and either commits every effect or none.
type Engine struct {
	store   Store
	cleanup CleanupFunc
	logger  *slog.Logger
}

// NewEngine creates an Engine. A nil cleanup falls back to DefaultCleanup.
func NewEngine(store Store, cleanup CleanupFunc, logger *slog.Logger) *Engine {
	if cleanup == nil {
		cleanup = DefaultCleanup
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, cleanup: cleanup, logger: logger}
}

// Result describes a committed engine operation.
type Result struct {
	// Membership is the row after the operation (nil for destroys).
	Membership *Membership

	// Group is the owning group after the operation (nil when the group
	// was deleted).
	Group *group.Group

	// Cascaded lists competing memberships destroyed by the operation.
	Cascaded []*Membership

	// Events are the domain events the operation produced, in order.
	// The caller publishes them after the transaction has committed.
	Events []shared.Event
}

// CreateParams contains the data to create a membership.
type CreateParams struct {
	GroupID string
	UserID  string

	// Status defaults to requested.
	Status Status
}

// Create persists a new membership: a user's join request, a leader's
// invitation, or (via CreateGroup) the leader's own pre-accepted row.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*Result, error) {
	if p.Status == "" {
		p.Status = StatusRequested
	}

	var res *Result
	err := e.store.InTx(ctx, func(tx TxStore) error {
		run := e.newRun()

		g, err := tx.GroupForUpdate(ctx, p.GroupID)
		if err != nil {
			return err
		}
		u, err := tx.GetUser(ctx, p.UserID)
		if err != nil {
			return err
		}
		siblings, err := tx.ListByUserForUpdate(ctx, u.DrawID, p.UserID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		m := &Membership{
			ID:        uuid.NewString(),
			GroupID:   p.GroupID,
			UserID:    p.UserID,
			DrawID:    g.DrawID,
			Status:    p.Status,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := ValidateNew(m, u, g, siblings); err != nil {
			return err
		}
		if err := tx.Insert(ctx, m); err != nil {
			return err
		}

		run.events = append(run.events, CreatedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventMembershipCreated, m.ID),
			GroupID:   m.GroupID,
			UserID:    m.UserID,
			DrawID:    m.DrawID,
			Status:    m.Status,
		})

		plan := PlanChange(nil, m, g)
		if err := run.applyAggregates(ctx, tx, g, plan); err != nil {
			return err
		}
		if plan.Cascade {
			run.events = append(run.events, AcceptedEvent{
				BaseEvent: shared.NewBaseEvent(shared.EventMembershipAccepted, m.ID),
				GroupID:   m.GroupID,
				UserID:    m.UserID,
				DrawID:    m.DrawID,
			})
			if err := run.cascade(ctx, tx, siblings, m.GroupID); err != nil {
				return err
			}
		}

		res = run.result(m, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Update applies a mutation to a persisted membership. The previously
// committed row is re-read under lock inside the transaction and diffed
// against the immutability rules; stale caller snapshots cannot slip
// through.
func (e *Engine) Update(ctx context.Context, groupID, userID string, ch Changes) (*Result, error) {
	var res *Result
	err := e.store.InTx(ctx, func(tx TxStore) error {
		run := e.newRun()

		g, err := tx.GroupForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		persisted, err := tx.GetForUpdate(ctx, groupID, userID)
		if err != nil {
			return err
		}
		siblings, err := tx.ListByUserForUpdate(ctx, persisted.DrawID, userID)
		if err != nil {
			return err
		}

		updated := ch.apply(persisted)
		if err := ValidateUpdate(persisted, updated, g, siblings); err != nil {
			return err
		}
		if err := tx.Update(ctx, updated); err != nil {
			return err
		}

		plan := PlanChange(persisted, updated, g)
		if err := run.applyAggregates(ctx, tx, g, plan); err != nil {
			return err
		}

		if plan.Cascade {
			run.events = append(run.events, AcceptedEvent{
				BaseEvent: shared.NewBaseEvent(shared.EventMembershipAccepted, updated.ID),
				GroupID:   updated.GroupID,
				UserID:    updated.UserID,
				DrawID:    updated.DrawID,
			})
			if err := run.cascade(ctx, tx, siblings, groupID); err != nil {
				return err
			}
		}

		if plan.LockApplied {
			run.events = append(run.events, LockedEvent{
				BaseEvent: shared.NewBaseEvent(shared.EventMembershipLocked, updated.ID),
				GroupID:   updated.GroupID,
				UserID:    updated.UserID,
			})
			if err := run.maybeLockGroup(ctx, tx, g); err != nil {
				return err
			}
		}

		res = run.result(updated, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Accept transitions a requested/invited membership into accepted.
func (e *Engine) Accept(ctx context.Context, groupID, userID string) (*Result, error) {
	st := StatusAccepted
	return e.Update(ctx, groupID, userID, Changes{Status: &st})
}

// SetLocked sets the membership's locked flag (finalization phase).
func (e *Engine) SetLocked(ctx context.Context, groupID, userID string, locked bool) (*Result, error) {
	return e.Update(ctx, groupID, userID, Changes{Locked: &locked})
}

// Destroy removes a membership through the normal path: withdrawal,
// rejection, or a leader removing a pending request.
func (e *Engine) Destroy(ctx context.Context, groupID, userID string) (*Result, error) {
	return e.destroy(ctx, groupID, userID, false)
}

// ForceDestroy removes a membership bypassing validation. Reserved for
// trusted lifecycle code such as draw teardown; counters, status, and the
// cleanup hook are still maintained.
func (e *Engine) ForceDestroy(ctx context.Context, groupID, userID string) (*Result, error) {
	return e.destroy(ctx, groupID, userID, true)
}

func (e *Engine) destroy(ctx context.Context, groupID, userID string, forced bool) (*Result, error) {
	var res *Result
	err := e.store.InTx(ctx, func(tx TxStore) error {
		run := e.newRun()

		g, err := tx.GroupForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		persisted, err := tx.GetForUpdate(ctx, groupID, userID)
		if err != nil {
			return err
		}

		if !forced {
			if err := ValidateDestroy(persisted); err != nil {
				return err
			}
		}
		if err := run.destroyRow(ctx, tx, g, persisted, false, forced); err != nil {
			return err
		}

		res = run.result(nil, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CreateGroup persists a new group together with the leader's pre-accepted
// membership as one unit. The leader's pending requests and invitations
// elsewhere in the draw cascade away like any other acceptance.
func (e *Engine) CreateGroup(ctx context.Context, g *group.Group) (*Result, error) {
	var res *Result
	err := e.store.InTx(ctx, func(tx TxStore) error {
		run := e.newRun()

		u, err := tx.GetUser(ctx, g.LeaderID)
		if err != nil {
			return err
		}
		siblings, err := tx.ListByUserForUpdate(ctx, u.DrawID, g.LeaderID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		m := &Membership{
			ID:        uuid.NewString(),
			GroupID:   g.ID,
			UserID:    g.LeaderID,
			DrawID:    g.DrawID,
			Status:    StatusAccepted,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := ValidateNew(m, u, g, siblings); err != nil {
			return err
		}
		if err := tx.InsertGroup(ctx, g); err != nil {
			return err
		}
		if err := tx.Insert(ctx, m); err != nil {
			return err
		}

		run.events = append(run.events,
			CreatedEvent{
				BaseEvent: shared.NewBaseEvent(shared.EventMembershipCreated, m.ID),
				GroupID:   m.GroupID,
				UserID:    m.UserID,
				DrawID:    m.DrawID,
				Status:    m.Status,
			},
			AcceptedEvent{
				BaseEvent: shared.NewBaseEvent(shared.EventMembershipAccepted, m.ID),
				GroupID:   m.GroupID,
				UserID:    m.UserID,
				DrawID:    m.DrawID,
			},
		)

		plan := PlanChange(nil, m, g)
		if err := run.applyAggregates(ctx, tx, g, plan); err != nil {
			return err
		}
		if err := run.cascade(ctx, tx, siblings, g.ID); err != nil {
			return err
		}

		res = run.result(m, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// BeginFinalizing moves a closed group into the suite-selection phase.
// This is an input from the external suite-selection flow, recorded here so
// the lock invariants can reference it.
func (e *Engine) BeginFinalizing(ctx context.Context, groupID string) (*Result, error) {
	var res *Result
	err := e.store.InTx(ctx, func(tx TxStore) error {
		run := e.newRun()

		g, err := tx.GroupForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		from := g.Status
		if err := g.BeginFinalizing(); err != nil {
			return err
		}
		if err := tx.SetGroupAggregates(ctx, g.ID, g.MembershipsCount, g.Status); err != nil {
			return err
		}

		run.events = append(run.events, GroupStatusChangedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventGroupStatusChanged, g.ID),
			GroupID:   g.ID,
			DrawID:    g.DrawID,
			From:      from,
			To:        g.Status,
			Count:     g.MembershipsCount,
		})

		res = run.result(nil, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DisbandGroup destroys every membership of a group through the normal
// destroy pipeline and removes the group row. Used when a leader dissolves
// their own group; a locked row rejects the whole disband, so a group that
// has entered finalization cannot be dissolved this way.
func (e *Engine) DisbandGroup(ctx context.Context, groupID string) (*Result, error) {
	return e.disband(ctx, groupID, false)
}

// ForceDisbandGroup destroys every membership of a group bypassing the
// destroy guard and removes the group row. Reserved for trusted lifecycle
// code (draw teardown, the stale-group sweep); locked rows go too, which
// is the only sanctioned way they are destroyed.
func (e *Engine) ForceDisbandGroup(ctx context.Context, groupID string) (*Result, error) {
	return e.disband(ctx, groupID, true)
}

func (e *Engine) disband(ctx context.Context, groupID string, forced bool) (*Result, error) {
	var res *Result
	err := e.store.InTx(ctx, func(tx TxStore) error {
		run := e.newRun()

		g, err := tx.GroupForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		members, err := tx.ListByGroup(ctx, groupID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if !forced {
				if err := ValidateDestroy(m); err != nil {
					return err
				}
			}
			if err := run.destroyRow(ctx, tx, g, m, false, forced); err != nil {
				return err
			}
		}
		if err := tx.DeleteGroup(ctx, groupID); err != nil {
			return err
		}

		run.events = append(run.events, GroupDisbandedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventGroupDisbanded, g.ID),
			GroupID:   g.ID,
			DrawID:    g.DrawID,
		})

		res = &Result{Cascaded: run.cascaded, Events: run.events}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Per-transaction run state
// ─────────────────────────────────────────────────────────────────────────────

// txRun accumulates the effects of one transaction attempt. A fresh run is
// built on every attempt so that serialization retries start clean.
type txRun struct {
	engine   *Engine
	events   []shared.Event
	cascaded []*Membership
}

func (e *Engine) newRun() *txRun {
	return &txRun{engine: e}
}

func (r *txRun) result(m *Membership, g *group.Group) *Result {
	return &Result{
		Membership: m,
		Group:      g,
		Cascaded:   r.cascaded,
		Events:     r.events,
	}
}

// applyAggregates writes the plan's counter and status effects and keeps
// the in-memory group snapshot in sync with the row.
func (r *txRun) applyAggregates(ctx context.Context, tx TxStore, g *group.Group, plan Plan) error {
	if plan.CounterDelta == 0 && !plan.StatusChanged {
		return nil
	}

	from := g.Status
	if err := tx.SetGroupAggregates(ctx, g.ID, plan.NewCount, plan.GroupStatus); err != nil {
		return fmt.Errorf("failed to update group aggregates: %w", err)
	}
	g.MembershipsCount = plan.NewCount
	g.Status = plan.GroupStatus

	if plan.StatusChanged {
		r.events = append(r.events, GroupStatusChangedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventGroupStatusChanged, g.ID),
			GroupID:   g.ID,
			DrawID:    g.DrawID,
			From:      from,
			To:        g.Status,
			Count:     g.MembershipsCount,
		})
	}
	return nil
}

// cascade destroys the user's competing non-accepted memberships in the
// draw. Each destruction re-enters the normal destroy pipeline for its own
// group: validator destroy guard, counter decrement, status recompute, and
// cleanup. No bypass; a failure aborts the whole transaction so the
// triggering acceptance fails atomically.
func (r *txRun) cascade(ctx context.Context, tx TxStore, siblings []*Membership, triggerGroupID string) error {
	for _, s := range siblings {
		if s.GroupID == triggerGroupID || s.Status.Accepted() {
			continue
		}

		og, err := tx.GroupForUpdate(ctx, s.GroupID)
		if err != nil {
			return fmt.Errorf("cascade: failed to lock group %s: %w", s.GroupID, err)
		}
		if err := ValidateDestroy(s); err != nil {
			return fmt.Errorf("cascade: cannot destroy competing membership in group %s: %w", s.GroupID, err)
		}
		if err := r.destroyRow(ctx, tx, og, s, true, false); err != nil {
			return err
		}

		r.engine.logger.Info("cascaded competing membership destroyed",
			"group_id", s.GroupID,
			"user_id", s.UserID,
			"status", string(s.Status),
		)
	}
	return nil
}

// destroyRow removes one membership row and applies the full destroy
// pipeline: counter, status, cleanup hook (exactly once, synchronously,
// whether or not a status transition occurred), and the destroyed event.
func (r *txRun) destroyRow(ctx context.Context, tx TxStore, g *group.Group, m *Membership, cascaded, forced bool) error {
	if err := tx.Delete(ctx, m.GroupID, m.UserID); err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}

	plan := PlanChange(m, nil, g)
	if err := r.applyAggregates(ctx, tx, g, plan); err != nil {
		return err
	}

	if err := r.engine.cleanup(ctx, tx, g); err != nil {
		return fmt.Errorf("group cleanup hook failed: %w", err)
	}

	if cascaded {
		r.cascaded = append(r.cascaded, m)
	}
	r.events = append(r.events, DestroyedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventMembershipDestroyed, m.ID),
		GroupID:   m.GroupID,
		UserID:    m.UserID,
		DrawID:    m.DrawID,
		Status:    m.Status,
		Cascaded:  cascaded,
		Forced:    forced,
	})
	return nil
}

// maybeLockGroup checks whether the group's last unlocked accepted
// membership has just locked and, if so, moves the group to its terminal
// state.
func (r *txRun) maybeLockGroup(ctx context.Context, tx TxStore, g *group.Group) error {
	if g.Status != group.StatusFinalizing {
		return nil
	}

	members, err := tx.ListByGroup(ctx, g.ID)
	if err != nil {
		return err
	}

	accepted, locked := 0, 0
	for _, m := range members {
		if m.Status.Accepted() {
			accepted++
			if m.Locked {
				locked++
			}
		}
	}
	if accepted != g.Size || locked != accepted {
		return nil
	}

	from := g.Status
	if err := g.Lock(); err != nil {
		return err
	}
	if err := tx.SetGroupAggregates(ctx, g.ID, g.MembershipsCount, g.Status); err != nil {
		return err
	}

	r.events = append(r.events, GroupStatusChangedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventGroupStatusChanged, g.ID),
		GroupID:   g.ID,
		DrawID:    g.DrawID,
		From:      from,
		To:        g.Status,
		Count:     g.MembershipsCount,
	})
	return nil
}

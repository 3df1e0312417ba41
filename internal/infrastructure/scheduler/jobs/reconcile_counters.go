package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meonBot/master-vesta-2/internal/domain/draw"
	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/membership"
)

// ReconcileCountersJob detects and repairs counter drift. The engine keeps
// memberships_count in sync transactionally, so any drift this job finds
// means an out-of-band write happened; it is logged loudly before being
// repaired.
type ReconcileCountersJob struct {
	draws       draw.Repository
	groups      group.Repository
	memberships membership.Reader
	store       membership.Store
	logger      *slog.Logger
}

// NewReconcileCountersJob creates the job.
func NewReconcileCountersJob(
	draws draw.Repository,
	groups group.Repository,
	memberships membership.Reader,
	store membership.Store,
	logger *slog.Logger,
) *ReconcileCountersJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileCountersJob{
		draws:       draws,
		groups:      groups,
		memberships: memberships,
		store:       store,
		logger:      logger,
	}
}

// Name returns the unique job name.
func (j *ReconcileCountersJob) Name() string { return "reconcile_counters" }

// Description returns a human-readable description.
func (j *ReconcileCountersJob) Description() string {
	return "Repairs memberships_count drift against the accepted rows"
}

// Run recounts accepted memberships per group across all draws and repairs
// any group whose cached counter disagrees.
func (j *ReconcileCountersJob) Run(ctx context.Context) error {
	draws, err := j.draws.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("listing draws: %w", err)
	}

	repaired := 0
	for _, d := range draws {
		counts, err := j.memberships.CountAcceptedByDraw(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("counting accepted rows for draw %s: %w", d.ID, err)
		}

		groups, err := j.groups.GetByDraw(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("listing groups for draw %s: %w", d.ID, err)
		}

		for _, g := range groups {
			if counts[g.ID] == g.MembershipsCount {
				continue
			}

			j.logger.Warn("counter drift detected",
				"group_id", g.ID,
				"draw_id", d.ID,
				"cached", g.MembershipsCount,
				"actual", counts[g.ID],
			)

			err := j.store.InTx(ctx, func(tx membership.TxStore) error {
				locked, err := tx.GroupForUpdate(ctx, g.ID)
				if err != nil {
					return err
				}
				return membership.DefaultCleanup(ctx, tx, locked)
			})
			if err != nil {
				j.logger.Error("counter repair failed", "group_id", g.ID, "error", err)
				continue
			}
			repaired++
		}
	}

	if repaired > 0 {
		j.logger.Info("counter reconciliation finished", "repaired", repaired)
	}
	return nil
}

// Package jobs contains scheduled background jobs for draw housekeeping.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meonBot/master-vesta-2/internal/domain/draw"
	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/membership"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// DisbandStaleGroupsJob disbands groups that never filled. Once a draw
// leaves the formation phase, any group still open cannot take part in the
// lottery; its pending members should be freed to join other groups.
type DisbandStaleGroupsJob struct {
	draws     draw.Repository
	groups    group.Repository
	engine    *membership.Engine
	publisher shared.EventPublisher
	maxAge    time.Duration
	logger    *slog.Logger
}

// NewDisbandStaleGroupsJob creates the job. maxAge is the grace period an
// open group gets after its last change before it is swept.
func NewDisbandStaleGroupsJob(
	draws draw.Repository,
	groups group.Repository,
	engine *membership.Engine,
	publisher shared.EventPublisher,
	maxAge time.Duration,
	logger *slog.Logger,
) *DisbandStaleGroupsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DisbandStaleGroupsJob{
		draws:     draws,
		groups:    groups,
		engine:    engine,
		publisher: publisher,
		maxAge:    maxAge,
		logger:    logger,
	}
}

// Name returns the unique job name.
func (j *DisbandStaleGroupsJob) Name() string { return "disband_stale_groups" }

// Description returns a human-readable description.
func (j *DisbandStaleGroupsJob) Description() string {
	return "Disbands open groups that never filled after the formation phase"
}

// Run sweeps every draw past the formation phase.
func (j *DisbandStaleGroupsJob) Run(ctx context.Context) error {
	draws, err := j.draws.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("listing draws: %w", err)
	}

	cutoff := time.Now().UTC().Add(-j.maxAge)
	disbanded := 0

	for _, d := range draws {
		if d.Status != draw.StatusLottery && d.Status != draw.StatusSuiteSelection {
			continue
		}

		groups, err := j.groups.GetByDraw(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("listing groups for draw %s: %w", d.ID, err)
		}

		for _, g := range groups {
			if g.Status.Normalize() != group.StatusOpen || g.UpdatedAt.After(cutoff) {
				continue
			}

			res, err := j.engine.ForceDisbandGroup(ctx, g.ID)
			if err != nil {
				j.logger.Error("stale group disband failed",
					"group_id", g.ID,
					"draw_id", d.ID,
					"error", err,
				)
				continue
			}
			// Publishing drops the cached rosters, same as the command
			// handlers do after a write.
			if err := j.publisher.PublishBatch(res.Events); err != nil {
				j.logger.Warn("stale sweep event publish failed", "group_id", g.ID, "error", err)
			}
			disbanded++
			j.logger.Info("stale group disbanded",
				"group_id", g.ID,
				"draw_id", d.ID,
				"leader_id", g.LeaderID,
			)
		}
	}

	if disbanded > 0 {
		j.logger.Info("stale group sweep finished", "disbanded", disbanded)
	}
	return nil
}

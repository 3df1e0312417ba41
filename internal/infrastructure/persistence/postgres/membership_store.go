package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/membership"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
	"github.com/meonBot/master-vesta-2/internal/domain/user"
	"github.com/meonBot/master-vesta-2/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MEMBERSHIP STORE
// Transactional storage for the membership engine. Every engine operation
// runs inside one transaction; the *ForUpdate reads take SELECT ... FOR
// UPDATE row locks on the group row and the user's membership rows, which
// serializes concurrent writers touching the same group or user. Lock
// conflicts surface as serialization/deadlock errors and the whole
// function is retried from scratch.
// ══════════════════════════════════════════════════════════════════════════════

const (
	selectMembership = `
		SELECT id, group_id, user_id, draw_id, status, locked, created_at, updated_at
		FROM memberships`

	selectGroup = `
		SELECT id, draw_id, leader_id, size, COALESCE(suite_id::text, ''), status, memberships_count, created_at, updated_at
		FROM groups`
)

// MembershipStore implements membership.Store and membership.Reader on
// postgres.
type MembershipStore struct {
	conn    *Connection
	retrier *retry.Retrier
	logger  *slog.Logger
}

// NewMembershipStore creates a new MembershipStore.
func NewMembershipStore(conn *Connection, logger *slog.Logger) *MembershipStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MembershipStore{conn: conn, logger: logger}
	s.retrier = retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(25*time.Millisecond),
		retry.WithMaxDelay(500*time.Millisecond),
		retry.WithRetryIf(IsSerializationFailure),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Warn("retrying membership transaction",
				"attempt", attempt,
				"delay", delay.String(),
				"error", err,
			)
		}),
	)
	return s
}

// InTx runs fn inside one transaction, retrying the whole function on
// serialization conflicts. fn must be safe to re-run.
func (s *MembershipStore) InTx(ctx context.Context, fn func(tx membership.TxStore) error) error {
	return s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			return fn(&txStore{tx: tx})
		})
	})
}

// txStore implements membership.TxStore over one open transaction.
type txStore struct {
	tx pgx.Tx
}

// GetForUpdate returns the membership row for the pair, locked.
func (t *txStore) GetForUpdate(ctx context.Context, groupID, userID string) (*membership.Membership, error) {
	row := t.tx.QueryRow(ctx,
		selectMembership+` WHERE group_id = $1 AND user_id = $2 FOR UPDATE`,
		groupID, userID)

	m, err := scanMembership(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, membership.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListByUserForUpdate returns the user's membership rows in a draw, locked
// in a stable order so concurrent acceptances cannot deadlock on each
// other.
func (t *txStore) ListByUserForUpdate(ctx context.Context, drawID, userID string) ([]*membership.Membership, error) {
	rows, err := t.tx.Query(ctx,
		selectMembership+` WHERE draw_id = $1 AND user_id = $2 ORDER BY group_id FOR UPDATE`,
		drawID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships by user: %w", err)
	}
	defer rows.Close()
	return scanMemberships(rows)
}

// ListByGroup returns all memberships of a group.
func (t *txStore) ListByGroup(ctx context.Context, groupID string) ([]*membership.Membership, error) {
	rows, err := t.tx.Query(ctx,
		selectMembership+` WHERE group_id = $1 ORDER BY user_id`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships by group: %w", err)
	}
	defer rows.Close()
	return scanMemberships(rows)
}

// Insert persists a new membership row.
func (t *txStore) Insert(ctx context.Context, m *membership.Membership) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO memberships (id, group_id, user_id, draw_id, status, locked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.GroupID, m.UserID, m.DrawID, string(m.Status), m.Locked, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return &membership.ValidationError{Messages: []string{insertConflictMessage(err)}}
		}
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

// insertConflictMessage maps a unique violation on the memberships table to
// the matching validation message. The uniq_accepted_per_draw partial index
// fires when the user already holds an accepted membership elsewhere in the
// draw; any other unique index on the table means the (group, user) row
// already exists.
func insertConflictMessage(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == "uniq_accepted_per_draw" {
		return membership.MsgAlreadyCommitted
	}
	return membership.MsgDuplicateMembership
}

// Update persists changes to a membership row.
func (t *txStore) Update(ctx context.Context, m *membership.Membership) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE memberships
		SET status = $3, locked = $4, updated_at = $5
		WHERE group_id = $1 AND user_id = $2`,
		m.GroupID, m.UserID, string(m.Status), m.Locked, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return membership.ErrMembershipNotFound
	}
	return nil
}

// Delete removes a membership row.
func (t *txStore) Delete(ctx context.Context, groupID, userID string) error {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM memberships WHERE group_id = $1 AND user_id = $2`,
		groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return membership.ErrMembershipNotFound
	}
	return nil
}

// GroupForUpdate returns the group row, locked.
func (t *txStore) GroupForUpdate(ctx context.Context, groupID string) (*group.Group, error) {
	row := t.tx.QueryRow(ctx, selectGroup+` WHERE id = $1 FOR UPDATE`, groupID)

	g, err := scanGroup(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, group.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// InsertGroup persists a new group row.
func (t *txStore) InsertGroup(ctx context.Context, g *group.Group) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO groups (id, draw_id, leader_id, size, status, memberships_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		g.ID, g.DrawID, g.LeaderID, g.Size, string(g.Status), g.MembershipsCount, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("group", "Create", shared.ErrAlreadyExists,
				"user already leads a group in this draw")
		}
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// SetGroupAggregates writes the group's derived columns.
func (t *txStore) SetGroupAggregates(ctx context.Context, groupID string, count int, status group.Status) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE groups
		SET memberships_count = $2, status = $3, updated_at = NOW()
		WHERE id = $1`,
		groupID, count, string(status))
	if err != nil {
		return fmt.Errorf("failed to update group aggregates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return group.ErrGroupNotFound
	}
	return nil
}

// DeleteGroup removes a group row.
func (t *txStore) DeleteGroup(ctx context.Context, groupID string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return group.ErrGroupNotFound
	}
	return nil
}

// GetUser returns a user snapshot.
func (t *txStore) GetUser(ctx context.Context, userID string) (*user.User, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, COALESCE(draw_id::text, ''), display_name, email, intent, created_at, updated_at
		FROM users WHERE id = $1`,
		userID)

	u, err := scanUser(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// READER (non-transactional query surface)
// ══════════════════════════════════════════════════════════════════════════════

// Get returns the membership for the pair.
func (s *MembershipStore) Get(ctx context.Context, groupID, userID string) (*membership.Membership, error) {
	row := s.conn.QueryRow(ctx,
		selectMembership+` WHERE group_id = $1 AND user_id = $2`,
		groupID, userID)

	m, err := scanMembership(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, membership.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListByGroup returns all memberships of a group.
func (s *MembershipStore) ListByGroup(ctx context.Context, groupID string) ([]*membership.Membership, error) {
	rows, err := s.conn.Query(ctx,
		selectMembership+` WHERE group_id = $1 ORDER BY created_at`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships by group: %w", err)
	}
	defer rows.Close()
	return scanMemberships(rows)
}

// ListByUser returns all of a user's memberships within a draw.
func (s *MembershipStore) ListByUser(ctx context.Context, drawID, userID string) ([]*membership.Membership, error) {
	rows, err := s.conn.Query(ctx,
		selectMembership+` WHERE draw_id = $1 AND user_id = $2 ORDER BY created_at`,
		drawID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships by user: %w", err)
	}
	defer rows.Close()
	return scanMemberships(rows)
}

// CountAcceptedByDraw returns accepted membership counts per group.
func (s *MembershipStore) CountAcceptedByDraw(ctx context.Context, drawID string) (map[string]int, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT group_id, COUNT(*)
		FROM memberships
		WHERE draw_id = $1 AND status = 'accepted'
		GROUP BY group_id`,
		drawID)
	if err != nil {
		return nil, fmt.Errorf("failed to count accepted memberships: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var groupID string
		var n int
		if err := rows.Scan(&groupID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[groupID] = n
	}
	return counts, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// SCAN HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func scanMembership(row pgx.Row) (*membership.Membership, error) {
	var m membership.Membership
	var status string
	err := row.Scan(&m.ID, &m.GroupID, &m.UserID, &m.DrawID, &status, &m.Locked, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Status = membership.Status(status)
	return &m, nil
}

func scanMemberships(rows pgx.Rows) ([]*membership.Membership, error) {
	var out []*membership.Membership
	for rows.Next() {
		var m membership.Membership
		var status string
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.DrawID, &status, &m.Locked, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		m.Status = membership.Status(status)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func scanGroup(row pgx.Row) (*group.Group, error) {
	var g group.Group
	var status string
	err := row.Scan(&g.ID, &g.DrawID, &g.LeaderID, &g.Size, &g.SuiteID, &status, &g.MembershipsCount, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.Status = group.Status(status)
	return &g, nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	var intent string
	err := row.Scan(&u.ID, &u.DrawID, &u.DisplayName, &u.Email, &intent, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Intent = user.Intent(intent)
	return &u, nil
}

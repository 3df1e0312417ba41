package postgres

import (
	"context"
	"fmt"

	"github.com/meonBot/master-vesta-2/internal/domain/group"
)

// GroupRepository implements group.Repository on postgres. Status and
// memberships_count are written only through the membership engine's
// store; this repository never touches them.
type GroupRepository struct {
	conn *Connection
}

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository(conn *Connection) *GroupRepository {
	return &GroupRepository{conn: conn}
}

// GetByID returns a group by ID.
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*group.Group, error) {
	row := r.conn.QueryRow(ctx, selectGroup+` WHERE id = $1`, id)

	g, err := scanGroup(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, group.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// GetByDraw returns all groups in a draw.
func (r *GroupRepository) GetByDraw(ctx context.Context, drawID string) ([]*group.Group, error) {
	rows, err := r.conn.Query(ctx, selectGroup+` WHERE draw_id = $1 ORDER BY created_at`, drawID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var out []*group.Group
	for rows.Next() {
		var g group.Group
		var status string
		if err := rows.Scan(&g.ID, &g.DrawID, &g.LeaderID, &g.Size, &g.SuiteID, &status, &g.MembershipsCount, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		g.Status = group.Status(status)
		out = append(out, &g)
	}
	return out, rows.Err()
}

// GetByLeader returns the group led by the given user in a draw.
func (r *GroupRepository) GetByLeader(ctx context.Context, drawID, leaderID string) (*group.Group, error) {
	row := r.conn.QueryRow(ctx,
		selectGroup+` WHERE draw_id = $1 AND leader_id = $2`,
		drawID, leaderID)

	g, err := scanGroup(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, group.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group by leader: %w", err)
	}
	return g, nil
}

// UpdateSuite assigns a suite to a group.
func (r *GroupRepository) UpdateSuite(ctx context.Context, groupID, suiteID string) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE groups SET suite_id = $2, updated_at = NOW() WHERE id = $1`,
		groupID, suiteID)
	if err != nil {
		return fmt.Errorf("failed to update group suite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return group.ErrGroupNotFound
	}
	return nil
}

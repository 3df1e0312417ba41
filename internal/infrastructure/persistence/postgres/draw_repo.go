package postgres

import (
	"context"
	"fmt"

	"github.com/meonBot/master-vesta-2/internal/domain/draw"
)

const selectDraw = `SELECT id, name, status, created_at, updated_at FROM draws`

// DrawRepository implements draw.Repository on postgres.
type DrawRepository struct {
	conn *Connection
}

// NewDrawRepository creates a new DrawRepository.
func NewDrawRepository(conn *Connection) *DrawRepository {
	return &DrawRepository{conn: conn}
}

// Create persists a new draw.
func (r *DrawRepository) Create(ctx context.Context, d *draw.Draw) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO draws (id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.Name, string(d.Status), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create draw: %w", err)
	}
	return nil
}

// GetByID returns a draw by ID.
func (r *DrawRepository) GetByID(ctx context.Context, id string) (*draw.Draw, error) {
	row := r.conn.QueryRow(ctx, selectDraw+` WHERE id = $1`, id)

	var d draw.Draw
	var status string
	if err := row.Scan(&d.ID, &d.Name, &status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if IsNoRows(err) {
			return nil, draw.ErrDrawNotFound
		}
		return nil, fmt.Errorf("failed to get draw: %w", err)
	}
	d.Status = draw.Status(status)
	return &d, nil
}

// GetAll returns all draws.
func (r *DrawRepository) GetAll(ctx context.Context) ([]*draw.Draw, error) {
	rows, err := r.conn.Query(ctx, selectDraw+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list draws: %w", err)
	}
	defer rows.Close()

	var out []*draw.Draw
	for rows.Next() {
		var d draw.Draw
		var status string
		if err := rows.Scan(&d.ID, &d.Name, &status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan draw row: %w", err)
		}
		d.Status = draw.Status(status)
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Update persists changes to a draw.
func (r *DrawRepository) Update(ctx context.Context, d *draw.Draw) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE draws SET name = $2, status = $3, updated_at = $4 WHERE id = $1`,
		d.ID, d.Name, string(d.Status), d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update draw: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return draw.ErrDrawNotFound
	}
	return nil
}

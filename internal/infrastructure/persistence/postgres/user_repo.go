package postgres

import (
	"context"
	"fmt"

	"github.com/meonBot/master-vesta-2/internal/domain/user"
)

const selectUser = `
	SELECT id, COALESCE(draw_id::text, ''), display_name, email, intent, created_at, updated_at
	FROM users`

// UserRepository implements user.Repository on postgres.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// Create persists a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO users (id, draw_id, display_name, email, intent, created_at, updated_at)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7)`,
		u.ID, u.DrawID, u.DisplayName, u.Email, string(u.Intent), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return user.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID returns a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	row := r.conn.QueryRow(ctx, selectUser+` WHERE id = $1`, id)

	u, err := scanUser(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

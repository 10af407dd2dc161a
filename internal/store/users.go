package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/model"
)

const userSelect = `SELECT u.id, u.name, u.email, u.password_hash, u.role, u.active, u.created_at,
        p.id AS partner_id
 FROM users u
 LEFT JOIN partners p ON p.user_id = u.id`

// CreateUser creates a new login account.
func CreateUser(ctx context.Context, q sqlx.ExtContext, name, email, passwordHash string, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, apperr.Validation("invalid role")
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)`,
		name, email, passwordHash, role,
	)
	if isUniqueViolation(err) {
		return nil, apperr.Validation("email already registered")
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, q, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, q, &u, userSelect+` WHERE u.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// GetUserByEmail returns the account for an email, preferring the active one
// (inactive accounts are returned so login can reject them explicitly).
func GetUserByEmail(ctx context.Context, q sqlx.QueryerContext, email string) (*model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, q, &u,
		userSelect+` WHERE u.email = ? ORDER BY u.active DESC, u.id DESC LIMIT 1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return &u, nil
}

// HasAdmin reports whether any active admin account exists.
func HasAdmin(ctx context.Context, q sqlx.QueryerContext) (bool, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count,
		`SELECT COUNT(*) FROM users WHERE role = ? AND active = 1`, model.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("counting admins: %w", err)
	}
	return count > 0, nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, q sqlx.ExecerContext, id int64, passwordHash string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND active = 1`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

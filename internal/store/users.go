package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/hengadev/carevault"
)

// CreateUser inserts user. Duplicate usernames and unknown roles are reported as
// validation errors.
func (s *Store) CreateUser(ctx context.Context, user carevault.User) (carevault.User, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role)
		VALUES (?, ?, ?)
	`, user.Username, user.PasswordHash, string(user.Role))
	switch {
	case isConstraintViolation(err, sqlite3.ErrConstraintUnique):
		return carevault.User{}, fmt.Errorf("%w: username %q already exists", carevault.ErrValidation, user.Username)
	case isConstraintViolation(err, sqlite3.ErrConstraintCheck):
		return carevault.User{}, fmt.Errorf("%w: unknown role %q", carevault.ErrValidation, user.Role)
	case err != nil:
		return carevault.User{}, fmt.Errorf("failed to insert user: %w", err)
	}

	user.ID, err = res.LastInsertId()
	if err != nil {
		return carevault.User{}, fmt.Errorf("failed to read user id: %w", err)
	}
	return user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (carevault.User, error) {
	var user carevault.User
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, username, password_hash, role
		FROM users
		WHERE username = ?
	`, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return carevault.User{}, fmt.Errorf("%w: %s", carevault.ErrUserNotFound, username)
	}
	if err != nil {
		return carevault.User{}, fmt.Errorf("failed to get user %q: %w", username, err)
	}
	user.Role = carevault.ParseRole(role)
	return user, nil
}

// CountUsers returns the number of accounts.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

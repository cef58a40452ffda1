package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, email, hashed_password, is_active, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, hashed_password) VALUES ($1, $2, $3) RETURNING `+userColumns,
		nu.Username, nu.Email, nu.HashedPassword)
	u, err := scanUser(row)
	if isUniqueViolation(err) {
		return nil, domain.ErrDuplicateUser
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

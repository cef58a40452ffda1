package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/domain"
)

const userColumns = `id, username, email, hashed_password, is_active, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, nu domain.NewUser) (u *domain.User, err error) {
	defer func(start time.Time) { s.observe("create_user", start, err) }(s.clock.Now())

	now := s.clock.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, hashed_password, is_active, created_at) VALUES (?, ?, ?, 1, ?)`,
		nu.Username, nu.Email, nu.HashedPassword, formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateUser
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read user id: %w", err)
	}

	return &domain.User{
		ID:             id,
		Username:       nu.Username,
		Email:          nu.Email,
		HashedPassword: nu.HashedPassword,
		IsActive:       true,
		CreatedAt:      now,
	}, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (u *domain.User, err error) {
	defer func(start time.Time) { s.observe("get_user", start, err) }(s.clock.Now())

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (u *domain.User, err error) {
	defer func(start time.Time) { s.observe("get_user_by_username", start, err) }(s.clock.Now())

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u         domain.User
		isActive  int
		createdAt string
		updatedAt sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &isActive, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.IsActive = isActive != 0
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseNullTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

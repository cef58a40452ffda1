package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/domain"
)

const suggestionColumns = `id, title, description, category, status, author_id, created_at, updated_at`

// snapshotSelect derives vote_count from the votes table on every read.
const snapshotSelect = `SELECT s.id, s.title, s.description, s.category, s.status, s.author_id,
	s.created_at, s.updated_at, u.username,
	COALESCE((SELECT SUM(CASE WHEN v.is_upvote = 1 THEN 1 ELSE -1 END) FROM votes v WHERE v.suggestion_id = s.id), 0) AS vote_count
	FROM suggestions s JOIN users u ON u.id = s.author_id`

func (s *Store) CreateSuggestion(ctx context.Context, ns domain.NewSuggestion) (sg *domain.Suggestion, err error) {
	defer func(start time.Time) { s.observe("create_suggestion", start, err) }(s.clock.Now())

	now := s.clock.Now().UTC()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, ns.AuthorID).Scan(&exists); err != nil {
			return fmt.Errorf("check author: %w", err)
		}
		if !exists {
			return domain.ErrUserNotFound
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO suggestions (title, description, category, status, author_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			ns.Title, ns.Description, ns.Category, domain.StatusActive, ns.AuthorID, formatTime(now))
		if err != nil {
			return fmt.Errorf("insert suggestion: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read suggestion id: %w", err)
		}

		sg = &domain.Suggestion{
			ID:          id,
			Title:       ns.Title,
			Description: ns.Description,
			Category:    ns.Category,
			Status:      domain.StatusActive,
			AuthorID:    ns.AuthorID,
			CreatedAt:   now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sg, nil
}

func (s *Store) GetSuggestion(ctx context.Context, id int64) (sg *domain.Suggestion, err error) {
	defer func(start time.Time) { s.observe("get_suggestion", start, err) }(s.clock.Now())
	return getSuggestion(ctx, s.db, id)
}

func (s *Store) UpdateSuggestion(ctx context.Context, id int64, patch domain.SuggestionPatch) (sg *domain.Suggestion, err error) {
	defer func(start time.Time) { s.observe("update_suggestion", start, err) }(s.clock.Now())

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if !patch.Empty() {
			sets := make([]string, 0, 4)
			args := make([]any, 0, 5)
			if patch.Title != nil {
				sets = append(sets, "title = ?")
				args = append(args, *patch.Title)
			}
			if patch.Description != nil {
				sets = append(sets, "description = ?")
				args = append(args, *patch.Description)
			}
			if patch.Category != nil {
				sets = append(sets, "category = ?")
				args = append(args, *patch.Category)
			}
			sets = append(sets, "updated_at = ?")
			args = append(args, s.now(), id)

			if _, err := tx.ExecContext(ctx, `UPDATE suggestions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
				return fmt.Errorf("update suggestion: %w", err)
			}
		}

		var err error
		sg, err = getSuggestion(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sg, nil
}

func (s *Store) TransitionStatus(ctx context.Context, id int64, target domain.Status) (sg *domain.Suggestion, err error) {
	defer func(start time.Time) { s.observe("transition_status", start, err) }(s.clock.Now())

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getSuggestion(ctx, tx, id)
		if err != nil {
			return err
		}
		if !current.Status.CanTransition(target) {
			return domain.ErrInvalidTransition
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE suggestions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			target, s.now(), id, domain.StatusActive)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update status: %w", err)
		} else if n == 0 {
			return domain.ErrInvalidTransition
		}

		sg, err = getSuggestion(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sg, nil
}

func (s *Store) DeleteSuggestion(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) { s.observe("delete_suggestion", start, err) }(s.clock.Now())

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE suggestion_id = ?`, id); err != nil {
			return fmt.Errorf("delete votes: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM suggestions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete suggestion: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete suggestion: %w", err)
		}
		if n == 0 {
			return domain.ErrSuggestionNotFound
		}
		return nil
	})
}

func (s *Store) Snapshot(ctx context.Context, id int64) (snap *domain.SuggestionSnapshot, err error) {
	defer func(start time.Time) { s.observe("snapshot", start, err) }(s.clock.Now())

	rows, err := s.db.QueryContext(ctx, snapshotSelect+` WHERE s.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, domain.ErrSuggestionNotFound
	}
	return &snaps[0], nil
}

func (s *Store) ListSuggestions(ctx context.Context, f domain.SuggestionFilter) (out []domain.SuggestionSnapshot, err error) {
	defer func(start time.Time) { s.observe("list_suggestions", start, err) }(s.clock.Now())

	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		where = append(where, "s.category = ?")
		args = append(args, f.Category)
	}
	if f.Status != "" {
		where = append(where, "s.status = ?")
		args = append(args, f.Status)
	}
	if f.AuthorID != 0 {
		where = append(where, "s.author_id = ?")
		args = append(args, f.AuthorID)
	}

	query := snapshotSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY s.created_at DESC, s.id DESC LIMIT ? OFFSET ?`
	args = append(args, sqlLimit(f.Limit), max(f.Skip, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return scanSnapshots(rows)
}

func (s *Store) TopByVotes(ctx context.Context, limit int) (out []domain.SuggestionSnapshot, err error) {
	defer func(start time.Time) { s.observe("top_by_votes", start, err) }(s.clock.Now())

	rows, err := s.db.QueryContext(ctx,
		snapshotSelect+` ORDER BY vote_count DESC, s.created_at DESC, s.id DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("top suggestions: %w", err)
	}
	return scanSnapshots(rows)
}

func (s *Store) Categories(ctx context.Context) (out []domain.CategoryCount, err error) {
	defer func(start time.Time) { s.observe("categories", start, err) }(s.clock.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM suggestions GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out = make([]domain.CategoryCount, 0)
	for rows.Next() {
		var c domain.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSuggestion(ctx context.Context, q queryer, id int64) (*domain.Suggestion, error) {
	var (
		sg        domain.Suggestion
		createdAt string
		updatedAt sql.NullString
	)
	err := q.QueryRowContext(ctx, `SELECT `+suggestionColumns+` FROM suggestions WHERE id = ?`, id).
		Scan(&sg.ID, &sg.Title, &sg.Description, &sg.Category, &sg.Status, &sg.AuthorID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSuggestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan suggestion: %w", err)
	}
	if sg.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sg.UpdatedAt, err = parseNullTime(updatedAt); err != nil {
		return nil, err
	}
	return &sg, nil
}

func scanSnapshots(rows *sql.Rows) ([]domain.SuggestionSnapshot, error) {
	defer rows.Close()

	out := make([]domain.SuggestionSnapshot, 0)
	for rows.Next() {
		var (
			snap      domain.SuggestionSnapshot
			createdAt string
			updatedAt sql.NullString
		)
		if err := rows.Scan(&snap.ID, &snap.Title, &snap.Description, &snap.Category, &snap.Status,
			&snap.AuthorID, &createdAt, &updatedAt, &snap.Author.Username, &snap.VoteCount); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}

		var err error
		if snap.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if snap.UpdatedAt, err = parseNullTime(updatedAt); err != nil {
			return nil, err
		}
		snap.Author.ID = snap.AuthorID
		out = append(out, snap)
	}
	return out, rows.Err()
}

// sqlLimit maps "no limit" to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

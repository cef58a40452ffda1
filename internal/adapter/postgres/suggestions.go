package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/jackc/pgx/v5"
)

const suggestionColumns = `id, title, description, category, status, author_id, created_at, updated_at`

// snapshotSelect derives vote_count from the votes table on every read.
const snapshotSelect = `SELECT s.id, s.title, s.description, s.category, s.status, s.author_id,
	s.created_at, s.updated_at, u.username,
	COALESCE((SELECT SUM(CASE WHEN v.is_upvote THEN 1 ELSE -1 END) FROM votes v WHERE v.suggestion_id = s.id), 0)::int AS vote_count
	FROM suggestions s JOIN users u ON u.id = s.author_id`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) CreateSuggestion(ctx context.Context, ns domain.NewSuggestion) (*domain.Suggestion, error) {
	sg, err := scanSuggestion(s.pool.QueryRow(ctx,
		`INSERT INTO suggestions (title, description, category, status, author_id)
		 SELECT $1, $2, $3, $4, id FROM users WHERE id = $5
		 RETURNING `+suggestionColumns,
		ns.Title, ns.Description, ns.Category, string(domain.StatusActive), ns.AuthorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion: %w", err)
	}
	return sg, nil
}

func (s *Store) GetSuggestion(ctx context.Context, id int64) (*domain.Suggestion, error) {
	return getSuggestion(ctx, s.pool, id, false)
}

func (s *Store) UpdateSuggestion(ctx context.Context, id int64, patch domain.SuggestionPatch) (*domain.Suggestion, error) {
	if patch.Empty() {
		return s.GetSuggestion(ctx, id)
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 4)
	add := func(column string, value string) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	sg, err := scanSuggestion(s.pool.QueryRow(ctx,
		fmt.Sprintf(`UPDATE suggestions SET %s WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), len(args), suggestionColumns),
		args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSuggestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update suggestion: %w", err)
	}
	return sg, nil
}

// TransitionStatus guards the update with the current status in the WHERE
// clause, so two racing transitions cannot both succeed.
func (s *Store) TransitionStatus(ctx context.Context, id int64, target domain.Status) (*domain.Suggestion, error) {
	if target.Terminal() {
		sg, err := scanSuggestion(s.pool.QueryRow(ctx,
			`UPDATE suggestions SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3 RETURNING `+suggestionColumns,
			string(target), id, string(domain.StatusActive)))
		if err == nil {
			return sg, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to update status: %w", err)
		}
	}

	if _, err := s.GetSuggestion(ctx, id); err != nil {
		return nil, err
	}
	return nil, domain.ErrInvalidTransition
}

func (s *Store) DeleteSuggestion(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := getSuggestion(ctx, tx, id, true); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM votes WHERE suggestion_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete votes: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM suggestions WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete suggestion: %w", err)
		}
		return nil
	})
}

func (s *Store) Snapshot(ctx context.Context, id int64) (*domain.SuggestionSnapshot, error) {
	rows, err := s.pool.Query(ctx, snapshotSelect+` WHERE s.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	snaps, err := collectSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, domain.ErrSuggestionNotFound
	}
	return &snaps[0], nil
}

func (s *Store) ListSuggestions(ctx context.Context, f domain.SuggestionFilter) ([]domain.SuggestionSnapshot, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("s.category = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("s.status = $%d", len(args)))
	}
	if f.AuthorID != 0 {
		args = append(args, f.AuthorID)
		where = append(where, fmt.Sprintf("s.author_id = $%d", len(args)))
	}

	query := snapshotSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, sqlLimit(f.Limit), max(f.Skip, 0))
	query += fmt.Sprintf(` ORDER BY s.created_at DESC, s.id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	return collectSnapshots(rows)
}

func (s *Store) TopByVotes(ctx context.Context, limit int) ([]domain.SuggestionSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		snapshotSelect+` ORDER BY vote_count DESC, s.created_at DESC, s.id DESC LIMIT $1`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query top suggestions: %w", err)
	}
	return collectSnapshots(rows)
}

func (s *Store) Categories(ctx context.Context) ([]domain.CategoryCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category, COUNT(*)::int FROM suggestions GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CategoryCount, error) {
		var c domain.CategoryCount
		err := row.Scan(&c.Category, &c.Count)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan categories: %w", err)
	}
	return out, nil
}

// getSuggestion loads a suggestion, optionally locking its row until the
// surrounding transaction ends.
func getSuggestion(ctx context.Context, q querier, id int64, forUpdate bool) (*domain.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	sg, err := scanSuggestion(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSuggestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}
	return sg, nil
}

func scanSuggestion(row pgx.Row) (*domain.Suggestion, error) {
	var (
		sg     domain.Suggestion
		status string
	)
	if err := row.Scan(&sg.ID, &sg.Title, &sg.Description, &sg.Category, &status, &sg.AuthorID, &sg.CreatedAt, &sg.UpdatedAt); err != nil {
		return nil, err
	}
	sg.Status = domain.Status(status)
	sg.CreatedAt = sg.CreatedAt.UTC()
	return &sg, nil
}

func collectSnapshots(rows pgx.Rows) ([]domain.SuggestionSnapshot, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SuggestionSnapshot, error) {
		var (
			snap   domain.SuggestionSnapshot
			status string
		)
		err := row.Scan(&snap.ID, &snap.Title, &snap.Description, &snap.Category, &status, &snap.AuthorID,
			&snap.CreatedAt, &snap.UpdatedAt, &snap.Author.Username, &snap.VoteCount)
		snap.Status = domain.Status(status)
		snap.Author.ID = snap.AuthorID
		snap.CreatedAt = snap.CreatedAt.UTC()
		return snap, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshots: %w", err)
	}
	if out == nil {
		out = []domain.SuggestionSnapshot{}
	}
	return out, nil
}

// sqlLimit maps "no limit" to NULL, which Postgres reads as LIMIT ALL.
func sqlLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

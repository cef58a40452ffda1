package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/domain"
)

func (s *Store) CastVote(ctx context.Context, userID, suggestionID int64, isUpvote bool) (v *domain.Vote, err error) {
	defer func(start time.Time) { s.observe("cast_vote", start, err) }(s.clock.Now())

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		sg, err := getSuggestion(ctx, tx, suggestionID)
		if err != nil {
			return err
		}
		if sg.AuthorID == userID {
			return domain.ErrSelfVote
		}

		var (
			vote      = domain.Vote{UserID: userID, SuggestionID: suggestionID, IsUpvote: isUpvote}
			createdAt string
		)
		err = tx.QueryRowContext(ctx,
			`INSERT INTO votes (user_id, suggestion_id, is_upvote, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(user_id, suggestion_id) DO UPDATE SET is_upvote = excluded.is_upvote
			 RETURNING id, created_at`,
			userID, suggestionID, boolToInt(isUpvote), s.now()).Scan(&vote.ID, &createdAt)
		if err != nil {
			return fmt.Errorf("upsert vote: %w", err)
		}
		if vote.CreatedAt, err = parseTime(createdAt); err != nil {
			return err
		}
		v = &vote
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Store) RemoveVote(ctx context.Context, userID, suggestionID int64) (err error) {
	defer func(start time.Time) { s.observe("remove_vote", start, err) }(s.clock.Now())

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getSuggestion(ctx, tx, suggestionID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE user_id = ? AND suggestion_id = ?`, userID, suggestionID)
		if err != nil {
			return fmt.Errorf("delete vote: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete vote: %w", err)
		}
		if n == 0 {
			return domain.ErrVoteNotFound
		}
		return nil
	})
}

func (s *Store) VoteCount(ctx context.Context, suggestionID int64) (n int, err error) {
	defer func(start time.Time) { s.observe("vote_count", start, err) }(s.clock.Now())

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT SUM(CASE WHEN v.is_upvote = 1 THEN 1 ELSE -1 END) FROM votes v WHERE v.suggestion_id = s.id), 0)
		 FROM suggestions s WHERE s.id = ?`, suggestionID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrSuggestionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return n, nil
}

func (s *Store) CurrentVote(ctx context.Context, userID, suggestionID int64) (vote *bool, err error) {
	defer func(start time.Time) { s.observe("current_vote", start, err) }(s.clock.Now())

	var isUpvote sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT v.is_upvote FROM suggestions s
		 LEFT JOIN votes v ON v.suggestion_id = s.id AND v.user_id = ?
		 WHERE s.id = ?`, userID, suggestionID).Scan(&isUpvote)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSuggestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query vote: %w", err)
	}
	if !isUpvote.Valid {
		return nil, nil
	}
	up := isUpvote.Int64 != 0
	return &up, nil
}

func (s *Store) UserVotes(ctx context.Context, userID int64) (out []domain.Vote, err error) {
	defer func(start time.Time) { s.observe("user_votes", start, err) }(s.clock.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, suggestion_id, is_upvote, created_at FROM votes
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user votes: %w", err)
	}
	defer rows.Close()

	out = make([]domain.Vote, 0)
	for rows.Next() {
		var (
			v         domain.Vote
			isUpvote  int
			createdAt string
		)
		if err := rows.Scan(&v.ID, &v.UserID, &v.SuggestionID, &isUpvote, &createdAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.IsUpvote = isUpvote != 0
		if v.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/jackc/pgx/v5"
)

func (s *Store) CastVote(ctx context.Context, userID, suggestionID int64, isUpvote bool) (*domain.Vote, error) {
	var vote *domain.Vote
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		// FOR SHARE keeps the suggestion from being deleted under the vote.
		var authorID int64
		err := tx.QueryRow(ctx, `SELECT author_id FROM suggestions WHERE id = $1 FOR SHARE`, suggestionID).Scan(&authorID)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrSuggestionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load suggestion: %w", err)
		}
		if authorID == userID {
			return domain.ErrSelfVote
		}

		v := domain.Vote{UserID: userID, SuggestionID: suggestionID, IsUpvote: isUpvote}
		err = tx.QueryRow(ctx,
			`INSERT INTO votes (user_id, suggestion_id, is_upvote) VALUES ($1, $2, $3)
			 ON CONFLICT ON CONSTRAINT votes_user_suggestion_key DO UPDATE SET is_upvote = EXCLUDED.is_upvote
			 RETURNING id, created_at`,
			userID, suggestionID, isUpvote).Scan(&v.ID, &v.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert vote: %w", err)
		}
		v.CreatedAt = v.CreatedAt.UTC()
		vote = &v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vote, nil
}

func (s *Store) RemoveVote(ctx context.Context, userID, suggestionID int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM suggestions WHERE id = $1)`, suggestionID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check suggestion: %w", err)
		}
		if !exists {
			return domain.ErrSuggestionNotFound
		}

		tag, err := tx.Exec(ctx, `DELETE FROM votes WHERE user_id = $1 AND suggestion_id = $2`, userID, suggestionID)
		if err != nil {
			return fmt.Errorf("failed to delete vote: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrVoteNotFound
		}
		return nil
	})
}

func (s *Store) VoteCount(ctx context.Context, suggestionID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE((SELECT SUM(CASE WHEN v.is_upvote THEN 1 ELSE -1 END) FROM votes v WHERE v.suggestion_id = s.id), 0)::int
		 FROM suggestions s WHERE s.id = $1`, suggestionID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrSuggestionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return n, nil
}

func (s *Store) CurrentVote(ctx context.Context, userID, suggestionID int64) (*bool, error) {
	var isUpvote *bool
	err := s.pool.QueryRow(ctx,
		`SELECT v.is_upvote FROM suggestions s
		 LEFT JOIN votes v ON v.suggestion_id = s.id AND v.user_id = $1
		 WHERE s.id = $2`, userID, suggestionID).Scan(&isUpvote)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSuggestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return isUpvote, nil
}

func (s *Store) UserVotes(ctx context.Context, userID int64) ([]domain.Vote, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, suggestion_id, is_upvote, created_at FROM votes
		 WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user votes: %w", err)
	}
	votes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Vote, error) {
		var v domain.Vote
		err := row.Scan(&v.ID, &v.UserID, &v.SuggestionID, &v.IsUpvote, &v.CreatedAt)
		v.CreatedAt = v.CreatedAt.UTC()
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan user votes: %w", err)
	}
	if votes == nil {
		votes = []domain.Vote{}
	}
	return votes, nil
}

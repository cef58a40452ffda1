package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ARRNAV26/Voting-System/internal/domain"
)

// VoteResult is the state of a suggestion's votes as seen by one user.
type VoteResult struct {
	SuggestionID int64 `json:"suggestion_id"`
	VoteCount    int   `json:"vote_count"`
	UserVote     *bool `json:"user_vote"`
}

// allowVote consults the rate limiter. A limiter failure lets the vote
// through; losing Redis must not stop voting.
func (s *Service) allowVote(ctx context.Context, userID int64) error {
	if s.limiter == nil {
		return nil
	}
	allowed, err := s.limiter.AllowVote(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "Vote rate limiter unavailable, allowing vote", "user_id", userID, "error", err)
		return nil
	}
	if !allowed {
		return domain.ErrRateLimited
	}
	return nil
}

// CastVote records the user's vote, overwriting any earlier polarity, and
// publishes the recomputed count.
func (s *Service) CastVote(ctx context.Context, userID, suggestionID int64, isUpvote bool) (res VoteResult, err error) {
	start := s.clock.Now()
	defer func() { s.countVote("cast", voteResultLabel(err), start) }()

	if err := s.allowVote(ctx, userID); err != nil {
		return VoteResult{}, err
	}

	unlock := s.locks.Lock(suggestionID)
	defer unlock()

	if _, err := withConflictRetry(ctx, s, func(ctx context.Context) (*domain.Vote, error) {
		return s.votes.CastVote(ctx, userID, suggestionID, isUpvote)
	}); err != nil {
		return VoteResult{}, err
	}

	return s.announceVote(ctx, userID, suggestionID, &isUpvote)
}

// RemoveVote deletes the user's vote and publishes the recomputed count.
func (s *Service) RemoveVote(ctx context.Context, userID, suggestionID int64) (res VoteResult, err error) {
	start := s.clock.Now()
	defer func() { s.countVote("remove", voteResultLabel(err), start) }()

	unlock := s.locks.Lock(suggestionID)
	defer unlock()

	if _, err := withConflictRetry(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.votes.RemoveVote(ctx, userID, suggestionID)
	}); err != nil {
		return VoteResult{}, err
	}

	return s.announceVote(ctx, userID, suggestionID, nil)
}

// announceVote recounts from the ledger and publishes. Callers hold the
// suggestion's lock so events leave in commit order.
func (s *Service) announceVote(ctx context.Context, userID, suggestionID int64, current *bool) (VoteResult, error) {
	count, err := s.votes.VoteCount(ctx, suggestionID)
	if err != nil {
		return VoteResult{}, fmt.Errorf("recount votes: %w", err)
	}

	s.publish(ctx, domain.VoteChangedEvent{
		SuggestionID: suggestionID,
		NewVoteCount: count,
		VoterID:      userID,
		VoterVote:    current,
	})
	slog.DebugContext(ctx, "Vote changed", "suggestion_id", suggestionID, "user_id", userID, "vote_count", count)

	return VoteResult{SuggestionID: suggestionID, VoteCount: count, UserVote: current}, nil
}

// VoteInfo returns the count and the user's own vote for a suggestion.
func (s *Service) VoteInfo(ctx context.Context, userID, suggestionID int64) (VoteResult, error) {
	if _, err := s.suggestions.GetSuggestion(ctx, suggestionID); err != nil {
		return VoteResult{}, err
	}

	count, err := s.votes.VoteCount(ctx, suggestionID)
	if err != nil {
		return VoteResult{}, err
	}
	current, err := s.votes.CurrentVote(ctx, userID, suggestionID)
	if err != nil {
		return VoteResult{}, err
	}
	return VoteResult{SuggestionID: suggestionID, VoteCount: count, UserVote: current}, nil
}

func (s *Service) UserVotes(ctx context.Context, userID int64) ([]domain.Vote, error) {
	return s.votes.UserVotes(ctx, userID)
}

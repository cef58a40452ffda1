package domain

import (
	"context"
	"time"
)

// Vote is unique per (UserID, SuggestionID).
type Vote struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	SuggestionID int64     `json:"suggestion_id"`
	IsUpvote     bool      `json:"is_upvote"`
	CreatedAt    time.Time `json:"created_at"`
}

// Weight is the vote's contribution to the aggregate count.
func (v Vote) Weight() int {
	if v.IsUpvote {
		return 1
	}
	return -1
}

// VoteLedger stores individual votes. Counts are always derived from the
// stored rows at read time, never cached.
type VoteLedger interface {
	// CastVote inserts or overwrites the (user, suggestion) vote. It fails with
	// ErrSuggestionNotFound or ErrSelfVote.
	CastVote(ctx context.Context, userID, suggestionID int64, isUpvote bool) (*Vote, error)
	// RemoveVote fails with ErrSuggestionNotFound or ErrVoteNotFound.
	RemoveVote(ctx context.Context, userID, suggestionID int64) error
	// VoteCount is upvotes minus downvotes, 0 without votes.
	VoteCount(ctx context.Context, suggestionID int64) (int, error)
	// CurrentVote returns the user's polarity, or nil when the user has not voted.
	CurrentVote(ctx context.Context, userID, suggestionID int64) (*bool, error)
	UserVotes(ctx context.Context, userID int64) ([]Vote, error)
}

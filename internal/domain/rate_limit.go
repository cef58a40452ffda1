package domain

import "context"

// VoteRateLimiter enforces per-user vote rate limits using a token bucket.
// Bursts up to the bucket capacity are allowed; the sustained rate is bounded.
type VoteRateLimiter interface {
	// AllowVote reports whether the user may vote now, consuming one token.
	AllowVote(ctx context.Context, userID int64) (bool, error)
}

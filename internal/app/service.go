package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/adapter/metrics"
	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/ARRNAV26/Voting-System/internal/platform/retry"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const (
	conflictAttempts       = 3
	conflictInitialBackoff = 10 * time.Millisecond
	conflictMaxBackoff     = 100 * time.Millisecond
)

// Deps are the collaborators of Service. RateLimiter and Metrics are optional.
type Deps struct {
	Users       domain.UserRepository
	Suggestions domain.SuggestionStore
	Votes       domain.VoteLedger
	Publisher   domain.Publisher
	Hasher      domain.PasswordHasher
	Tokens      domain.TokenIssuer
	RateLimiter domain.VoteRateLimiter
	Metrics     *metrics.VoteMetrics
	Clock       clockwork.Clock
}

// Service is the application layer and the only component that references
// multiple domain components. Every mutation follows the same sequence:
// persist, re-read the canonical state, publish. Nothing is published when
// persistence fails.
type Service struct {
	users       domain.UserRepository
	suggestions domain.SuggestionStore
	votes       domain.VoteLedger
	publisher   domain.Publisher
	hasher      domain.PasswordHasher
	tokens      domain.TokenIssuer
	limiter     domain.VoteRateLimiter
	metrics     *metrics.VoteMetrics
	clock       clockwork.Clock

	// locks serialises mutate, recount and publish per suggestion, so vote
	// events for one suggestion leave in commit order.
	locks           *keyLock
	categoriesGroup singleflight.Group
	conflictPolicy  retry.Policy
}

func NewService(d Deps) *Service {
	clock := d.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		users:       d.Users,
		suggestions: d.Suggestions,
		votes:       d.Votes,
		publisher:   d.Publisher,
		hasher:      d.Hasher,
		tokens:      d.Tokens,
		limiter:     d.RateLimiter,
		metrics:     d.Metrics,
		clock:       clock,
		locks:       newKeyLock(),
		conflictPolicy: retry.Policy{
			MaxAttempts:    conflictAttempts,
			InitialBackoff: conflictInitialBackoff,
			MaxBackoff:     conflictMaxBackoff,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Debug("Retrying after storage conflict", "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
	}
}

// publish runs after commit. The request context may already be cancelled
// by then; the event still has to go out.
func (s *Service) publish(ctx context.Context, event domain.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event", "type", event.Type(), "error", err)
	}
}

func classifyConflict(err error) retry.Action {
	if errors.Is(err, domain.ErrConflict) {
		return retry.Retry
	}
	return retry.Stop
}

// withConflictRetry retries op while storage reports a concurrent
// modification. Other errors are returned unchanged.
func withConflictRetry[T any](ctx context.Context, s *Service, op retry.Operation[T]) (T, error) {
	val, err := retry.Do(ctx, s.conflictPolicy, classifyConflict, op)
	var perm *retry.PermanentError
	if errors.As(err, &perm) {
		return val, perm.Err
	}
	return val, err
}

func (s *Service) countVote(operation, result string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.VotesProcessed.WithLabelValues(operation, result).Inc()
	if result == resultOK {
		s.metrics.ProcessingDuration.Observe(s.clock.Since(start).Seconds())
	}
}

func (s *Service) countSuggestionChange(operation string) {
	if s.metrics != nil {
		s.metrics.SuggestionChanges.WithLabelValues(operation).Inc()
	}
}

const (
	resultOK          = "ok"
	resultRateLimited = "rate_limited"
	resultRejected    = "rejected"
	resultError       = "error"
)

func voteResultLabel(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, domain.ErrRateLimited):
		return resultRateLimited
	case domain.IsExpected(err):
		return resultRejected
	default:
		return resultError
	}
}

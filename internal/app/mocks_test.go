package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/adapter/auth"
	"github.com/ARRNAV26/Voting-System/internal/adapter/memory"
	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock implementations ---

type recordingPublisher struct {
	mu        sync.Mutex
	events    []domain.Event
	publishFn func(ctx context.Context, event domain.Event) error
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.Event) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	if p.publishFn != nil {
		return p.publishFn(ctx, event)
	}
	return nil
}

func (p *recordingPublisher) Events() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}

type mockRateLimiter struct {
	allowVoteFn func(ctx context.Context, userID int64) (bool, error)
}

func (m *mockRateLimiter) AllowVote(ctx context.Context, userID int64) (bool, error) {
	if m.allowVoteFn != nil {
		return m.allowVoteFn(ctx, userID)
	}
	return true, nil
}

// faultyStore wraps a working store and lets a test override single calls.
type faultyStore struct {
	domain.Store
	castVoteFn         func(ctx context.Context, userID, suggestionID int64, isUpvote bool) (*domain.Vote, error)
	updateSuggestionFn func(ctx context.Context, id int64, patch domain.SuggestionPatch) (*domain.Suggestion, error)
	categoriesFn       func(ctx context.Context) ([]domain.CategoryCount, error)
	voteCountFn        func(ctx context.Context, suggestionID int64) (int, error)
}

func (s *faultyStore) CastVote(ctx context.Context, userID, suggestionID int64, isUpvote bool) (*domain.Vote, error) {
	if s.castVoteFn != nil {
		return s.castVoteFn(ctx, userID, suggestionID, isUpvote)
	}
	return s.Store.CastVote(ctx, userID, suggestionID, isUpvote)
}

func (s *faultyStore) UpdateSuggestion(ctx context.Context, id int64, patch domain.SuggestionPatch) (*domain.Suggestion, error) {
	if s.updateSuggestionFn != nil {
		return s.updateSuggestionFn(ctx, id, patch)
	}
	return s.Store.UpdateSuggestion(ctx, id, patch)
}

func (s *faultyStore) Categories(ctx context.Context) ([]domain.CategoryCount, error) {
	if s.categoriesFn != nil {
		return s.categoriesFn(ctx)
	}
	return s.Store.Categories(ctx)
}

func (s *faultyStore) VoteCount(ctx context.Context, suggestionID int64) (int, error) {
	if s.voteCountFn != nil {
		return s.voteCountFn(ctx, suggestionID)
	}
	return s.Store.VoteCount(ctx, suggestionID)
}

// --- Fixture ---

type fixture struct {
	svc    *Service
	mem    *memory.Store
	store  *faultyStore
	pub    *recordingPublisher
	clock  *clockwork.FakeClock
	hasher domain.PasswordHasher
	tokens *auth.TokenIssuer
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	mem := memory.NewStore(clock)
	f := &fixture{
		mem:    mem,
		store:  &faultyStore{Store: mem},
		pub:    &recordingPublisher{},
		clock:  clock,
		hasher: auth.BcryptHasher{Cost: bcrypt.MinCost},
		tokens: auth.NewTokenIssuer("test-secret", time.Hour, clock),
	}

	deps := Deps{
		Users:       f.store,
		Suggestions: f.store,
		Votes:       f.store,
		Publisher:   f.pub,
		Hasher:      f.hasher,
		Tokens:      f.tokens,
		Clock:       clock,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.svc = NewService(deps)
	return f
}

func (f *fixture) user(t *testing.T, username string) *domain.User {
	t.Helper()
	hash, err := f.hasher.Hash("password")
	require.NoError(t, err)
	u, err := f.mem.CreateUser(context.Background(), domain.NewUser{
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: hash,
	})
	require.NoError(t, err)
	return u
}

// suggestion creates a suggestion straight in the store so no event is recorded.
func (f *fixture) suggestion(t *testing.T, authorID int64, title string) *domain.Suggestion {
	t.Helper()
	sg, err := f.mem.CreateSuggestion(context.Background(), domain.NewSuggestion{
		AuthorID:    authorID,
		Title:       title,
		Description: "desc",
		Category:    "UI",
	})
	require.NoError(t, err)
	return sg
}

func ptr[T any](v T) *T { return &v }

// Package memory is a process-local domain.Store for development and tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/jonboulle/clockwork"
)

type voteKey struct {
	userID       int64
	suggestionID int64
}

var _ domain.Store = (*Store)(nil)

// Store keeps all records in maps behind one mutex. Vote counts are
// recomputed from the vote map on every read.
type Store struct {
	clock clockwork.Clock

	mu          sync.RWMutex
	users       map[int64]*domain.User
	suggestions map[int64]*domain.Suggestion
	votes       map[voteKey]*domain.Vote

	nextUserID       int64
	nextSuggestionID int64
	nextVoteID       int64
}

func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		clock:       clock,
		users:       make(map[int64]*domain.User),
		suggestions: make(map[int64]*domain.Suggestion),
		votes:       make(map[voteKey]*domain.Vote),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateUser(_ context.Context, nu domain.NewUser) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == nu.Username || u.Email == nu.Email {
			return nil, domain.ErrDuplicateUser
		}
	}

	s.nextUserID++
	u := &domain.User{
		ID:             s.nextUserID,
		Username:       nu.Username,
		Email:          nu.Email,
		HashedPassword: nu.HashedPassword,
		IsActive:       true,
		CreatedAt:      s.clock.Now().UTC(),
	}
	s.users[u.ID] = u
	return copyUser(u), nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// SetUserActive toggles the active flag. Used by tests.
func (s *Store) SetUserActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsActive = active
	}
}

func (s *Store) CreateSuggestion(_ context.Context, ns domain.NewSuggestion) (*domain.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[ns.AuthorID]; !ok {
		return nil, domain.ErrUserNotFound
	}

	s.nextSuggestionID++
	sg := &domain.Suggestion{
		ID:          s.nextSuggestionID,
		Title:       ns.Title,
		Description: ns.Description,
		Category:    ns.Category,
		Status:      domain.StatusActive,
		AuthorID:    ns.AuthorID,
		CreatedAt:   s.clock.Now().UTC(),
	}
	s.suggestions[sg.ID] = sg
	return copySuggestion(sg), nil
}

func (s *Store) GetSuggestion(_ context.Context, id int64) (*domain.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sg, ok := s.suggestions[id]
	if !ok {
		return nil, domain.ErrSuggestionNotFound
	}
	return copySuggestion(sg), nil
}

func (s *Store) UpdateSuggestion(_ context.Context, id int64, patch domain.SuggestionPatch) (*domain.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sg, ok := s.suggestions[id]
	if !ok {
		return nil, domain.ErrSuggestionNotFound
	}
	if patch.Empty() {
		return copySuggestion(sg), nil
	}

	if patch.Title != nil {
		sg.Title = *patch.Title
	}
	if patch.Description != nil {
		sg.Description = *patch.Description
	}
	if patch.Category != nil {
		sg.Category = *patch.Category
	}
	s.touch(sg)
	return copySuggestion(sg), nil
}

func (s *Store) TransitionStatus(_ context.Context, id int64, target domain.Status) (*domain.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sg, ok := s.suggestions[id]
	if !ok {
		return nil, domain.ErrSuggestionNotFound
	}
	if !sg.Status.CanTransition(target) {
		return nil, domain.ErrInvalidTransition
	}

	sg.Status = target
	s.touch(sg)
	return copySuggestion(sg), nil
}

func (s *Store) DeleteSuggestion(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suggestions[id]; !ok {
		return domain.ErrSuggestionNotFound
	}
	delete(s.suggestions, id)
	for k := range s.votes {
		if k.suggestionID == id {
			delete(s.votes, k)
		}
	}
	return nil
}

func (s *Store) Snapshot(_ context.Context, id int64) (*domain.SuggestionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sg, ok := s.suggestions[id]
	if !ok {
		return nil, domain.ErrSuggestionNotFound
	}
	snap := s.snapshotLocked(sg, s.countsLocked())
	return &snap, nil
}

func (s *Store) ListSuggestions(_ context.Context, f domain.SuggestionFilter) ([]domain.SuggestionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := s.countsLocked()
	out := make([]domain.SuggestionSnapshot, 0)
	for _, sg := range s.suggestions {
		if f.Category != "" && sg.Category != f.Category {
			continue
		}
		if f.Status != "" && sg.Status != f.Status {
			continue
		}
		if f.AuthorID != 0 && sg.AuthorID != f.AuthorID {
			continue
		}
		out = append(out, s.snapshotLocked(sg, counts))
	}
	slices.SortFunc(out, newestFirst)
	return page(out, f.Skip, f.Limit), nil
}

func (s *Store) TopByVotes(_ context.Context, limit int) ([]domain.SuggestionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := s.countsLocked()
	out := make([]domain.SuggestionSnapshot, 0, len(s.suggestions))
	for _, sg := range s.suggestions {
		out = append(out, s.snapshotLocked(sg, counts))
	}
	slices.SortFunc(out, func(a, b domain.SuggestionSnapshot) int {
		if c := cmp.Compare(b.VoteCount, a.VoteCount); c != 0 {
			return c
		}
		return newestFirst(a, b)
	})
	return page(out, 0, limit), nil
}

func (s *Store) Categories(context.Context) ([]domain.CategoryCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, sg := range s.suggestions {
		counts[sg.Category]++
	}
	out := make([]domain.CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, domain.CategoryCount{Category: c, Count: n})
	}
	slices.SortFunc(out, func(a, b domain.CategoryCount) int {
		return cmp.Compare(a.Category, b.Category)
	})
	return out, nil
}

func (s *Store) CastVote(_ context.Context, userID, suggestionID int64, isUpvote bool) (*domain.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sg, ok := s.suggestions[suggestionID]
	if !ok {
		return nil, domain.ErrSuggestionNotFound
	}
	if sg.AuthorID == userID {
		return nil, domain.ErrSelfVote
	}

	key := voteKey{userID: userID, suggestionID: suggestionID}
	if v, ok := s.votes[key]; ok {
		v.IsUpvote = isUpvote
		vv := *v
		return &vv, nil
	}

	s.nextVoteID++
	v := &domain.Vote{
		ID:           s.nextVoteID,
		UserID:       userID,
		SuggestionID: suggestionID,
		IsUpvote:     isUpvote,
		CreatedAt:    s.clock.Now().UTC(),
	}
	s.votes[key] = v
	vv := *v
	return &vv, nil
}

func (s *Store) RemoveVote(_ context.Context, userID, suggestionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suggestions[suggestionID]; !ok {
		return domain.ErrSuggestionNotFound
	}
	key := voteKey{userID: userID, suggestionID: suggestionID}
	if _, ok := s.votes[key]; !ok {
		return domain.ErrVoteNotFound
	}
	delete(s.votes, key)
	return nil
}

func (s *Store) VoteCount(_ context.Context, suggestionID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.suggestions[suggestionID]; !ok {
		return 0, domain.ErrSuggestionNotFound
	}
	total := 0
	for k, v := range s.votes {
		if k.suggestionID == suggestionID {
			total += v.Weight()
		}
	}
	return total, nil
}

func (s *Store) CurrentVote(_ context.Context, userID, suggestionID int64) (*bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.suggestions[suggestionID]; !ok {
		return nil, domain.ErrSuggestionNotFound
	}
	v, ok := s.votes[voteKey{userID: userID, suggestionID: suggestionID}]
	if !ok {
		return nil, nil
	}
	up := v.IsUpvote
	return &up, nil
}

func (s *Store) UserVotes(_ context.Context, userID int64) ([]domain.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Vote, 0)
	for k, v := range s.votes {
		if k.userID == userID {
			out = append(out, *v)
		}
	}
	slices.SortFunc(out, func(a, b domain.Vote) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) touch(sg *domain.Suggestion) {
	now := s.clock.Now().UTC()
	sg.UpdatedAt = &now
}

func (s *Store) countsLocked() map[int64]int {
	counts := make(map[int64]int, len(s.suggestions))
	for k, v := range s.votes {
		counts[k.suggestionID] += v.Weight()
	}
	return counts
}

func (s *Store) snapshotLocked(sg *domain.Suggestion, counts map[int64]int) domain.SuggestionSnapshot {
	snap := domain.SuggestionSnapshot{
		ID:          sg.ID,
		Title:       sg.Title,
		Description: sg.Description,
		Category:    sg.Category,
		Status:      sg.Status,
		AuthorID:    sg.AuthorID,
		VoteCount:   counts[sg.ID],
		CreatedAt:   sg.CreatedAt,
		UpdatedAt:   copyTime(sg.UpdatedAt),
		Author:      domain.UserSummary{ID: sg.AuthorID},
	}
	if u, ok := s.users[sg.AuthorID]; ok {
		snap.Author.Username = u.Username
	}
	return snap
}

// newestFirst orders by creation time descending, falling back to ID so
// suggestions created within the same clock tick keep a stable order.
func newestFirst(a, b domain.SuggestionSnapshot) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func page[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return items[:0]
	}
	if skip > 0 {
		items = items[skip:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	c.UpdatedAt = copyTime(u.UpdatedAt)
	return &c
}

func copySuggestion(sg *domain.Suggestion) *domain.Suggestion {
	c := *sg
	c.UpdatedAt = copyTime(sg.UpdatedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

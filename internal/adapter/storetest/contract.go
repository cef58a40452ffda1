// Package storetest holds the behaviour every domain.Store backend must share.
// Backends call Run from their own tests. Test use only.
package storetest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a store with no records.
type Factory func(t *testing.T) domain.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("SuggestionLifecycle", func(t *testing.T) { testSuggestionLifecycle(t, newStore(t)) })
	t.Run("StatusTransitions", func(t *testing.T) { testStatusTransitions(t, newStore) })
	t.Run("DeleteCascades", func(t *testing.T) { testDeleteCascades(t, newStore(t)) })
	t.Run("VoteOverwrite", func(t *testing.T) { testVoteOverwrite(t, newStore(t)) })
	t.Run("VoteErrors", func(t *testing.T) { testVoteErrors(t, newStore(t)) })
	t.Run("CountMatchesFinalVotes", func(t *testing.T) { testCountMatchesFinalVotes(t, newStore(t)) })
	t.Run("ConcurrentVotes", func(t *testing.T) { testConcurrentVotes(t, newStore(t)) })
	t.Run("TopByVotes", func(t *testing.T) { testTopByVotes(t, newStore(t)) })
	t.Run("ListSuggestions", func(t *testing.T) { testListSuggestions(t, newStore(t)) })
	t.Run("Categories", func(t *testing.T) { testCategories(t, newStore(t)) })
	t.Run("UserVotes", func(t *testing.T) { testUserVotes(t, newStore(t)) })
}

func createUser(t *testing.T, s domain.Store, name string) *domain.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), domain.NewUser{
		Username:       name,
		Email:          name + "@example.com",
		HashedPassword: "hash-" + name,
	})
	require.NoError(t, err)
	return u
}

func createSuggestion(t *testing.T, s domain.Store, authorID int64, title, category string) *domain.Suggestion {
	t.Helper()
	sg, err := s.CreateSuggestion(context.Background(), domain.NewSuggestion{
		AuthorID:    authorID,
		Title:       title,
		Description: "description of " + title,
		Category:    category,
	})
	require.NoError(t, err)
	return sg
}

func voteCount(t *testing.T, s domain.Store, suggestionID int64) int {
	t.Helper()
	n, err := s.VoteCount(context.Background(), suggestionID)
	require.NoError(t, err)
	return n
}

func testUsers(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := createUser(t, s, "alice")

	assert.NotZero(t, alice.ID)
	assert.True(t, alice.IsActive)
	assert.Equal(t, "hash-alice", alice.HashedPassword)

	byID, err := s.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byName, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	_, err = s.CreateUser(ctx, domain.NewUser{Username: "alice", Email: "other@example.com", HashedPassword: "x"})
	assert.ErrorIs(t, err, domain.ErrDuplicateUser)

	_, err = s.CreateUser(ctx, domain.NewUser{Username: "alice2", Email: "alice@example.com", HashedPassword: "x"})
	assert.ErrorIs(t, err, domain.ErrDuplicateUser)

	_, err = s.GetUserByID(ctx, alice.ID+1000)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func testSuggestionLifecycle(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := createUser(t, s, "alice")

	sg := createSuggestion(t, s, alice.ID, "Dark mode", "ui")
	assert.Equal(t, domain.StatusActive, sg.Status)
	assert.Nil(t, sg.UpdatedAt)

	got, err := s.GetSuggestion(ctx, sg.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dark mode", got.Title)

	title := "Dark theme"
	updated, err := s.UpdateSuggestion(ctx, sg.ID, domain.SuggestionPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Dark theme", updated.Title)
	assert.Equal(t, "description of Dark mode", updated.Description, "absent fields stay unchanged")
	assert.Equal(t, "ui", updated.Category)
	assert.NotNil(t, updated.UpdatedAt)

	snap, err := s.Snapshot(ctx, sg.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dark theme", snap.Title)
	assert.Equal(t, alice.ID, snap.Author.ID)
	assert.Equal(t, "alice", snap.Author.Username)
	assert.Equal(t, 0, snap.VoteCount)

	_, err = s.GetSuggestion(ctx, sg.ID+1000)
	assert.ErrorIs(t, err, domain.ErrSuggestionNotFound)
	_, err = s.Snapshot(ctx, sg.ID+1000)
	assert.ErrorIs(t, err, domain.ErrSuggestionNotFound)
	_, err = s.UpdateSuggestion(ctx, sg.ID+1000, domain.SuggestionPatch{Title: &title})
	assert.ErrorIs(t, err, domain.ErrSuggestionNotFound)
}

func testStatusTransitions(t *testing.T, newStore Factory) {
	tests := []struct {
		name    string
		first   domain.Status
		second  domain.Status
		wantErr bool
	}{
		{"active to implemented", domain.StatusImplemented, "", false},
		{"active to rejected", domain.StatusRejected, "", false},
		{"active to active", domain.StatusActive, "", true},
		{"implemented to rejected", domain.StatusImplemented, domain.StatusRejected, true},
		{"rejected to active", domain.StatusRejected, domain.StatusActive, true},
		{"implemented to implemented", domain.StatusImplemented, domain.StatusImplemented, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			alice := createUser(t, s, "alice")
			sg := createSuggestion(t, s, alice.ID, "Idea", "general")

			out, err := s.TransitionStatus(ctx, sg.ID, tt.first)
			if tt.second == "" {
				if tt.wantErr {
					assert.ErrorIs(t, err, domain.ErrInvalidTransition)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.first, out.Status)
				return
			}

			require.NoError(t, err)
			_, err = s.TransitionStatus(ctx, sg.ID, tt.second)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)

			got, err := s.GetSuggestion(ctx, sg.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.first, got.Status, "a rejected transition leaves the status unchanged")
		})
	}

	t.Run("missing suggestion", func(t *testing.T) {
		s := newStore(t)
		_, err := s.TransitionStatus(context.Background(), 4242, domain.StatusImplemented)
		assert.ErrorIs(t, err, domain.ErrSuggestionNotFound)
	})
}

func testDeleteCascades(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	sg := createSuggestion(t, s, alice.ID, "Idea", "general")

	_, err := s.CastVote(ctx, bob.ID, sg.ID, true)
	require.NoError(t, err)

	require.NoError(t, s.DeleteSuggestion(ctx, sg.ID))

	_, err = s.GetSuggestion(ctx, sg.ID)
	assert.ErrorIs(t, err, domain.ErrSuggestionNotFound)
	votes, err := s.UserVotes(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, votes)

	assert.ErrorIs(t, s.DeleteSuggestion(ctx, sg.ID), domain.ErrSuggestionNotFound)
}

func testVoteOverwrite(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	sg := createSuggestion(t, s, alice.ID, "Idea", "general")

	v, err := s.CastVote(ctx, bob.ID, sg.ID, true)
	require.NoError(t, err)
	assert.True(t, v.IsUpvote)
	assert.Equal(t, 1, voteCount(t, s, sg.ID))

	_, err = s.CastVote(ctx, bob.ID, sg.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, voteCount(t, s, sg.ID), "repeating the same vote is idempotent")

	v2, err := s.CastVote(ctx, bob.ID, sg.ID, false)
	require.NoError(t, err)
	assert.Equal(t, v.ID, v2.ID, "overwrite keeps the single vote row")
	assert.Equal(t, -1, voteCount(t, s, sg.ID), "flipping polarity moves the count by two")

	current, err := s.CurrentVote(ctx, bob.ID, sg.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.False(t, *current)

	require.NoError(t, s.RemoveVote(ctx, bob.ID, sg.ID))
	assert.Equal(t, 0, voteCount(t, s, sg.ID))

	current, err = s.CurrentVote(ctx, bob.ID, sg.ID)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func testVoteErrors(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	sg := createSuggestion(t, s, alice.ID, "Idea", "general")

	_, err := s.CastVote(ctx, alice.ID, sg.ID, true)
	assert.ErrorIs(t, err, domain.ErrSelfVote)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, 0, voteCount(t, s, sg.ID))

	_, err = s.CastVote(ctx, bob.ID, sg.ID+1000, true)
	assert.ErrorIs(t, err, domain.ErrSuggestionNotFound)

	assert.ErrorIs(t, s.RemoveVote(ctx, bob.ID, sg.ID), domain.ErrVoteNotFound)
	assert.ErrorIs(t, s.RemoveVote(ctx, bob.ID, sg.ID+1000), domain.ErrSuggestionNotFound)

	_, err = s.VoteCount(ctx, sg.ID+1000)
	assert.ErrorIs(t, err, domain.ErrSuggestionNotFound)
	_, err = s.CurrentVote(ctx, bob.ID, sg.ID+1000)
	assert.ErrorIs(t, err, domain.ErrSuggestionNotFound)
}

func testCountMatchesFinalVotes(t *testing.T, s domain.Store) {
	ctx := context.Background()
	author := createUser(t, s, "author")
	sg := createSuggestion(t, s, author.ID, "Idea", "general")

	voters := make([]*domain.User, 6)
	for i := range voters {
		voters[i] = createUser(t, s, fmt.Sprintf("voter%d", i))
	}

	rng := rand.New(rand.NewPCG(1, 2))
	final := make(map[int64]int)
	for range 200 {
		u := voters[rng.IntN(len(voters))]
		switch rng.IntN(3) {
		case 0:
			_, err := s.CastVote(ctx, u.ID, sg.ID, true)
			require.NoError(t, err)
			final[u.ID] = 1
		case 1:
			_, err := s.CastVote(ctx, u.ID, sg.ID, false)
			require.NoError(t, err)
			final[u.ID] = -1
		default:
			err := s.RemoveVote(ctx, u.ID, sg.ID)
			if _, voted := final[u.ID]; voted {
				require.NoError(t, err)
				delete(final, u.ID)
			} else {
				require.ErrorIs(t, err, domain.ErrVoteNotFound)
			}
		}

		want := 0
		for _, w := range final {
			want += w
		}
		require.Equal(t, want, voteCount(t, s, sg.ID))
	}
}

func testConcurrentVotes(t *testing.T, s domain.Store) {
	ctx := context.Background()
	author := createUser(t, s, "author")
	sg := createSuggestion(t, s, author.ID, "Idea", "general")

	const voters = 20
	ids := make([]int64, voters)
	for i := range ids {
		ids[i] = createUser(t, s, fmt.Sprintf("voter%d", i)).ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CastVote(ctx, id, sg.ID, true); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, voters, voteCount(t, s, sg.ID))
}

func testTopByVotes(t *testing.T, s domain.Store) {
	ctx := context.Background()
	author := createUser(t, s, "author")
	voters := make([]int64, 3)
	for i := range voters {
		voters[i] = createUser(t, s, fmt.Sprintf("voter%d", i)).ID
	}

	a := createSuggestion(t, s, author.ID, "A", "general")
	b := createSuggestion(t, s, author.ID, "B", "general")
	c := createSuggestion(t, s, author.ID, "C", "general")

	for i, n := range map[int64]int{a.ID: 1, b.ID: 2, c.ID: 3} {
		for _, v := range voters[:n] {
			_, err := s.CastVote(ctx, v, i, true)
			require.NoError(t, err)
		}
	}

	top, err := s.TopByVotes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"C", "B", "A"}, titles(top))
	assert.Equal(t, []int{3, 2, 1}, []int{top[0].VoteCount, top[1].VoteCount, top[2].VoteCount})

	top, err = s.TopByVotes(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B"}, titles(top))

	d := createSuggestion(t, s, author.ID, "D", "general")
	for _, v := range voters[:2] {
		_, err := s.CastVote(ctx, v, d.ID, true)
		require.NoError(t, err)
	}
	top, err = s.TopByVotes(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D", "B", "A"}, titles(top), "ties break newest first")
}

func testListSuggestions(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	createSuggestion(t, s, alice.ID, "one", "ui")
	two := createSuggestion(t, s, bob.ID, "two", "backend")
	createSuggestion(t, s, alice.ID, "three", "ui")
	_, err := s.TransitionStatus(ctx, two.ID, domain.StatusRejected)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter domain.SuggestionFilter
		want   []string
	}{
		{"all newest first", domain.SuggestionFilter{}, []string{"three", "two", "one"}},
		{"by category", domain.SuggestionFilter{Category: "ui"}, []string{"three", "one"}},
		{"by status", domain.SuggestionFilter{Status: domain.StatusRejected}, []string{"two"}},
		{"by author", domain.SuggestionFilter{AuthorID: bob.ID}, []string{"two"}},
		{"skip", domain.SuggestionFilter{Skip: 1}, []string{"two", "one"}},
		{"limit", domain.SuggestionFilter{Limit: 2}, []string{"three", "two"}},
		{"skip past end", domain.SuggestionFilter{Skip: 10}, []string{}},
		{"no match", domain.SuggestionFilter{Category: "none"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListSuggestions(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func testCategories(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := createUser(t, s, "alice")

	empty, err := s.Categories(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	createSuggestion(t, s, alice.ID, "one", "ui")
	createSuggestion(t, s, alice.ID, "two", "backend")
	createSuggestion(t, s, alice.ID, "three", "ui")

	got, err := s.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.CategoryCount{
		{Category: "backend", Count: 1},
		{Category: "ui", Count: 2},
	}, got)
}

func testUserVotes(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	one := createSuggestion(t, s, alice.ID, "one", "ui")
	two := createSuggestion(t, s, alice.ID, "two", "ui")

	_, err := s.CastVote(ctx, bob.ID, one.ID, true)
	require.NoError(t, err)
	_, err = s.CastVote(ctx, bob.ID, two.ID, false)
	require.NoError(t, err)

	votes, err := s.UserVotes(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	bySuggestion := map[int64]bool{}
	for _, v := range votes {
		assert.Equal(t, bob.ID, v.UserID)
		bySuggestion[v.SuggestionID] = v.IsUpvote
	}
	assert.Equal(t, map[int64]bool{one.ID: true, two.ID: false}, bySuggestion)

	none, err := s.UserVotes(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func titles(snaps []domain.SuggestionSnapshot) []string {
	out := make([]string, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.Title)
	}
	return out
}

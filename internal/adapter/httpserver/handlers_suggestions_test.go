package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/ARRNAV26/Voting-System/internal/app"
	"github.com/ARRNAV26/Voting-System/internal/domain"
	apperrors "github.com/ARRNAV26/Voting-System/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleListSuggestions_Params(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   app.ListParams
	}{
		{"defaults", "/api/suggestions", app.ListParams{}},
		{"paging", "/api/suggestions?skip=20&limit=10", app.ListParams{Skip: 20, Limit: 10}},
		{"filters", "/api/suggestions?category=UI&status=implemented", app.ListParams{Category: "UI", Status: "implemented"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got app.ListParams
			srv := newTestServer(t, &mockAppService{
				listSuggestionsFn: func(_ context.Context, p app.ListParams) ([]domain.SuggestionSnapshot, error) {
					got = p
					return []domain.SuggestionSnapshot{*testSnapshot(1)}, nil
				},
			})

			rec := doRequest(t, srv, http.MethodGet, tt.target, "", nil)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, got)
			assert.Len(t, decodeJSON[[]domain.SuggestionSnapshot](t, rec), 1)
		})
	}
}

func TestHandleListSuggestions_Errors(t *testing.T) {
	srv := newTestServer(t, &mockAppService{
		listSuggestionsFn: func(_ context.Context, p app.ListParams) ([]domain.SuggestionSnapshot, error) {
			if p.Limit > app.MaxListLimit {
				return nil, apperrors.ValidationError("limit must be between 1 and 100").WithField("limit", p.Limit)
			}
			return nil, nil
		},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/suggestions?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/suggestions?limit=500", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, float64(500), decodeJSON[apperrors.Response](t, rec).Details["limit"])
}

func TestHandleListSuggestions_EmptyIsArray(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	for _, target := range []string{"/api/suggestions", "/api/suggestions/top", "/api/suggestions/categories", "/api/users/1/suggestions"} {
		rec := doRequest(t, srv, http.MethodGet, target, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.JSONEq(t, `[]`, rec.Body.String(), target)
	}
}

func TestHandleTopSuggestions(t *testing.T) {
	var gotLimit int
	srv := newTestServer(t, &mockAppService{
		topSuggestionsFn: func(_ context.Context, limit int) ([]domain.SuggestionSnapshot, error) {
			gotLimit = limit
			return []domain.SuggestionSnapshot{*testSnapshot(3), *testSnapshot(2)}, nil
		},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/suggestions/top?limit=2", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, gotLimit)
	got := decodeJSON[[]domain.SuggestionSnapshot](t, rec)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
}

func TestHandleCategories(t *testing.T) {
	srv := newTestServer(t, &mockAppService{
		categoriesFn: func(context.Context) ([]domain.CategoryCount, error) {
			return []domain.CategoryCount{{Category: "Backend", Count: 2}, {Category: "UI", Count: 5}}, nil
		},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/suggestions/categories", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"category":"Backend","count":2},{"category":"UI","count":5}]`, rec.Body.String())
}

func TestHandleGetSuggestion(t *testing.T) {
	srv := newTestServer(t, &mockAppService{
		getSuggestionFn: func(_ context.Context, id int64) (*domain.SuggestionSnapshot, error) {
			if id != 4 {
				return nil, domain.ErrSuggestionNotFound
			}
			snap := testSnapshot(4)
			snap.VoteCount = 7
			return snap, nil
		},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/suggestions/4", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"id": 4,
		"title": "Add dark mode",
		"description": "Please",
		"category": "UI",
		"status": "active",
		"author_id": 1,
		"vote_count": 7,
		"created_at": "2025-06-01T12:00:00Z",
		"updated_at": null,
		"author": {"id": 1, "username": "alice"}
	}`, rec.Body.String())

	rec = doRequest(t, srv, http.MethodGet, "/api/suggestions/5", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Suggestion not found", decodeJSON[apperrors.Response](t, rec).Detail)

	rec = doRequest(t, srv, http.MethodGet, "/api/suggestions/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUserSuggestions_UnknownUser(t *testing.T) {
	srv := newTestServer(t, &mockAppService{
		userSuggestionsFn: func(context.Context, int64) ([]domain.SuggestionSnapshot, error) {
			return nil, domain.ErrUserNotFound
		},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/users/42/suggestions", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decodeJSON[apperrors.Response](t, rec).Detail)
}

func TestHandleCreateSuggestion(t *testing.T) {
	var gotAuthor int64
	var gotInput app.SuggestionInput
	srv := newTestServer(t, &mockAppService{
		createSuggestionFn: func(_ context.Context, authorID int64, in app.SuggestionInput) (*domain.SuggestionSnapshot, error) {
			gotAuthor, gotInput = authorID, in
			snap := testSnapshot(11)
			snap.Title = in.Title
			return snap, nil
		},
	})

	body := `{"title":"Offline mode","description":"Cache things","category":"Mobile"}`

	rec := doRequest(t, srv, http.MethodPost, "/api/suggestions", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/suggestions", body, authHeader(testToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, testUser.ID, gotAuthor)
	assert.Equal(t, app.SuggestionInput{Title: "Offline mode", Description: "Cache things", Category: "Mobile"}, gotInput)
	assert.Equal(t, "Offline mode", decodeJSON[domain.SuggestionSnapshot](t, rec).Title)
}

func TestHandleUpdateSuggestion(t *testing.T) {
	var gotPatch domain.SuggestionPatch
	srv := newTestServer(t, &mockAppService{
		updateSuggestionFn: func(_ context.Context, actorID, id int64, patch domain.SuggestionPatch) (*domain.SuggestionSnapshot, error) {
			if actorID != testUser.ID {
				return nil, domain.ErrForbidden
			}
			gotPatch = patch
			return testSnapshot(id), nil
		},
	})

	rec := doRequest(t, srv, http.MethodPut, "/api/suggestions/3", `{"title":"Dark mode v2"}`, authHeader(testToken))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, gotPatch.Title)
	assert.Equal(t, "Dark mode v2", *gotPatch.Title)
	assert.Nil(t, gotPatch.Description)
	assert.Nil(t, gotPatch.Category)
}

func TestHandleUpdateSuggestion_IgnoresStatus(t *testing.T) {
	var gotPatch domain.SuggestionPatch
	srv := newTestServer(t, &mockAppService{
		updateSuggestionFn: func(_ context.Context, _, id int64, patch domain.SuggestionPatch) (*domain.SuggestionSnapshot, error) {
			gotPatch = patch
			return nil, apperrors.ValidationError("no fields to update")
		},
	})

	rec := doRequest(t, srv, http.MethodPut, "/api/suggestions/3", `{"status":"implemented"}`, authHeader(testToken))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, gotPatch.Empty())
}

func TestSuggestionMutations_DomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", domain.ErrSuggestionNotFound, http.StatusNotFound},
		{"not the author", domain.ErrForbidden, http.StatusForbidden},
		{"invalid transition", domain.ErrInvalidTransition, http.StatusBadRequest},
		{"conflict", fmt.Errorf("%w: database is locked", domain.ErrConflict), http.StatusConflict},
		{"storage failure", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &mockAppService{
				updateSuggestionFn: func(context.Context, int64, int64, domain.SuggestionPatch) (*domain.SuggestionSnapshot, error) {
					return nil, tt.err
				},
				transitionFn: func(context.Context, int64, int64, domain.Status) (*domain.SuggestionSnapshot, error) {
					return nil, tt.err
				},
				deleteSuggestionFn: func(context.Context, int64, int64) error { return tt.err },
			})

			rec := doRequest(t, srv, http.MethodPut, "/api/suggestions/3", `{"title":"x"}`, authHeader(testToken))
			assert.Equal(t, tt.wantStatus, rec.Code, "update")

			rec = doRequest(t, srv, http.MethodPatch, "/api/suggestions/3/status", `{"status":"rejected"}`, authHeader(testToken))
			assert.Equal(t, tt.wantStatus, rec.Code, "status")

			rec = doRequest(t, srv, http.MethodDelete, "/api/suggestions/3", "", authHeader(testToken))
			assert.Equal(t, tt.wantStatus, rec.Code, "delete")
		})
	}
}

func TestHandleUpdateStatus(t *testing.T) {
	var gotTarget domain.Status
	srv := newTestServer(t, &mockAppService{
		transitionFn: func(_ context.Context, _, id int64, target domain.Status) (*domain.SuggestionSnapshot, error) {
			gotTarget = target
			snap := testSnapshot(id)
			snap.Status = target
			return snap, nil
		},
	})

	rec := doRequest(t, srv, http.MethodPatch, "/api/suggestions/3/status", `{"status":"implemented"}`, authHeader(testToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusImplemented, gotTarget)
	assert.Equal(t, domain.StatusImplemented, decodeJSON[domain.SuggestionSnapshot](t, rec).Status)

	rec = doRequest(t, srv, http.MethodPatch, "/api/suggestions/3/status", `{"status":"archived"}`, authHeader(testToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "archived", decodeJSON[apperrors.Response](t, rec).Details["status"])
}

func TestHandleDeleteSuggestion(t *testing.T) {
	var deleted int64
	srv := newTestServer(t, &mockAppService{
		deleteSuggestionFn: func(_ context.Context, _, id int64) error {
			deleted = id
			return nil
		},
	})

	rec := doRequest(t, srv, http.MethodDelete, "/api/suggestions/8", "", authHeader(testToken))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(8), deleted)
	assert.JSONEq(t, `{"message":"Suggestion deleted successfully"}`, rec.Body.String())
}

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/app"
	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/ARRNAV26/Voting-System/internal/platform/config"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockAppService struct {
	registerFn     func(ctx context.Context, in app.RegisterInput) (*domain.User, error)
	loginFn        func(ctx context.Context, username, password string) (string, error)
	authenticateFn func(ctx context.Context, token string) (*domain.User, error)

	listSuggestionsFn  func(ctx context.Context, p app.ListParams) ([]domain.SuggestionSnapshot, error)
	topSuggestionsFn   func(ctx context.Context, limit int) ([]domain.SuggestionSnapshot, error)
	categoriesFn       func(ctx context.Context) ([]domain.CategoryCount, error)
	getSuggestionFn    func(ctx context.Context, id int64) (*domain.SuggestionSnapshot, error)
	userSuggestionsFn  func(ctx context.Context, authorID int64) ([]domain.SuggestionSnapshot, error)
	createSuggestionFn func(ctx context.Context, authorID int64, in app.SuggestionInput) (*domain.SuggestionSnapshot, error)
	updateSuggestionFn func(ctx context.Context, actorID, id int64, patch domain.SuggestionPatch) (*domain.SuggestionSnapshot, error)
	transitionFn       func(ctx context.Context, actorID, id int64, target domain.Status) (*domain.SuggestionSnapshot, error)
	deleteSuggestionFn func(ctx context.Context, actorID, id int64) error

	castVoteFn   func(ctx context.Context, userID, suggestionID int64, isUpvote bool) (app.VoteResult, error)
	removeVoteFn func(ctx context.Context, userID, suggestionID int64) (app.VoteResult, error)
	voteInfoFn   func(ctx context.Context, userID, suggestionID int64) (app.VoteResult, error)
	userVotesFn  func(ctx context.Context, userID int64) ([]domain.Vote, error)
}

var testCreatedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// testUser is what the default authenticator returns for testToken.
var testUser = &domain.User{
	ID:        1,
	Username:  "alice",
	Email:     "alice@example.com",
	IsActive:  true,
	CreatedAt: testCreatedAt,
}

const testToken = "valid-token"

func (m *mockAppService) Register(ctx context.Context, in app.RegisterInput) (*domain.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return &domain.User{ID: 1, Username: in.Username, Email: in.Email, IsActive: true, CreatedAt: testCreatedAt}, nil
}

func (m *mockAppService) Login(ctx context.Context, username, password string) (string, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return testToken, nil
}

func (m *mockAppService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, token)
	}
	if token != testToken {
		return nil, domain.ErrInvalidToken
	}
	return testUser, nil
}

func (m *mockAppService) ListSuggestions(ctx context.Context, p app.ListParams) ([]domain.SuggestionSnapshot, error) {
	if m.listSuggestionsFn != nil {
		return m.listSuggestionsFn(ctx, p)
	}
	return nil, nil
}

func (m *mockAppService) TopSuggestions(ctx context.Context, limit int) ([]domain.SuggestionSnapshot, error) {
	if m.topSuggestionsFn != nil {
		return m.topSuggestionsFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockAppService) Categories(ctx context.Context) ([]domain.CategoryCount, error) {
	if m.categoriesFn != nil {
		return m.categoriesFn(ctx)
	}
	return nil, nil
}

func (m *mockAppService) GetSuggestion(ctx context.Context, id int64) (*domain.SuggestionSnapshot, error) {
	if m.getSuggestionFn != nil {
		return m.getSuggestionFn(ctx, id)
	}
	return testSnapshot(id), nil
}

func (m *mockAppService) UserSuggestions(ctx context.Context, authorID int64) ([]domain.SuggestionSnapshot, error) {
	if m.userSuggestionsFn != nil {
		return m.userSuggestionsFn(ctx, authorID)
	}
	return nil, nil
}

func (m *mockAppService) CreateSuggestion(ctx context.Context, authorID int64, in app.SuggestionInput) (*domain.SuggestionSnapshot, error) {
	if m.createSuggestionFn != nil {
		return m.createSuggestionFn(ctx, authorID, in)
	}
	snap := testSnapshot(1)
	snap.Title, snap.Description, snap.Category = in.Title, in.Description, in.Category
	return snap, nil
}

func (m *mockAppService) UpdateSuggestion(ctx context.Context, actorID, id int64, patch domain.SuggestionPatch) (*domain.SuggestionSnapshot, error) {
	if m.updateSuggestionFn != nil {
		return m.updateSuggestionFn(ctx, actorID, id, patch)
	}
	return testSnapshot(id), nil
}

func (m *mockAppService) TransitionStatus(ctx context.Context, actorID, id int64, target domain.Status) (*domain.SuggestionSnapshot, error) {
	if m.transitionFn != nil {
		return m.transitionFn(ctx, actorID, id, target)
	}
	snap := testSnapshot(id)
	snap.Status = target
	return snap, nil
}

func (m *mockAppService) DeleteSuggestion(ctx context.Context, actorID, id int64) error {
	if m.deleteSuggestionFn != nil {
		return m.deleteSuggestionFn(ctx, actorID, id)
	}
	return nil
}

func (m *mockAppService) CastVote(ctx context.Context, userID, suggestionID int64, isUpvote bool) (app.VoteResult, error) {
	if m.castVoteFn != nil {
		return m.castVoteFn(ctx, userID, suggestionID, isUpvote)
	}
	return app.VoteResult{SuggestionID: suggestionID, VoteCount: 1, UserVote: &isUpvote}, nil
}

func (m *mockAppService) RemoveVote(ctx context.Context, userID, suggestionID int64) (app.VoteResult, error) {
	if m.removeVoteFn != nil {
		return m.removeVoteFn(ctx, userID, suggestionID)
	}
	return app.VoteResult{SuggestionID: suggestionID}, nil
}

func (m *mockAppService) VoteInfo(ctx context.Context, userID, suggestionID int64) (app.VoteResult, error) {
	if m.voteInfoFn != nil {
		return m.voteInfoFn(ctx, userID, suggestionID)
	}
	return app.VoteResult{SuggestionID: suggestionID}, nil
}

func (m *mockAppService) UserVotes(ctx context.Context, userID int64) ([]domain.Vote, error) {
	if m.userVotesFn != nil {
		return m.userVotesFn(ctx, userID)
	}
	return nil, nil
}

type mockWebsocketHandler struct {
	connects     int
	userConnects int
}

func (m *mockWebsocketHandler) HandleConnect(c echo.Context) error {
	m.connects++
	return c.NoContent(http.StatusSwitchingProtocols)
}

func (m *mockWebsocketHandler) HandleUserConnect(c echo.Context) error {
	m.userConnects++
	return c.NoContent(http.StatusSwitchingProtocols)
}

// --- Test helpers ---

func testSnapshot(id int64) *domain.SuggestionSnapshot {
	return &domain.SuggestionSnapshot{
		ID:          id,
		Title:       "Add dark mode",
		Description: "Please",
		Category:    "UI",
		Status:      domain.StatusActive,
		AuthorID:    testUser.ID,
		CreatedAt:   testCreatedAt,
		Author:      domain.UserSummary{ID: testUser.ID, Username: testUser.Username},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:      "test",
		Port:        "0",
		CORSOrigins: "http://localhost:3000",
	}
}

func newTestServer(t *testing.T, app appService, opts ...Option) *Server {
	t.Helper()
	return NewServer(testConfig(), app, &mockWebsocketHandler{}, opts...)
}

// doRequest runs a request through the full middleware chain. A non-empty
// body is sent as JSON.
func doRequest(t *testing.T, srv *Server, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func authHeader(token string) http.Header {
	return http.Header{echo.HeaderAuthorization: []string{"Bearer " + token}}
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware()(handler)(c)
}

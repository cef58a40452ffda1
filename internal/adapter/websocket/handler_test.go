package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/broadcast"
	"github.com/ARRNAV26/Voting-System/internal/domain"
	apperrors "github.com/ARRNAV26/Voting-System/internal/platform/errors"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockResolver struct {
	resolveFn func(ctx context.Context, token string) (int64, error)
}

func (m *mockResolver) ResolveIdentity(ctx context.Context, token string) (int64, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, token)
	}
	return domain.AnonymousUserID, nil
}

// tokenResolver accepts exactly the tokens in the map.
func tokenResolver(tokens map[string]int64) *mockResolver {
	return &mockResolver{resolveFn: func(_ context.Context, token string) (int64, error) {
		if token == "" {
			return domain.AnonymousUserID, nil
		}
		id, ok := tokens[token]
		if !ok {
			return domain.AnonymousUserID, domain.ErrInvalidToken
		}
		return id, nil
	}}
}

type testServer struct {
	*httptest.Server
	hub *broadcast.Hub
}

func newTestServer(t *testing.T, resolver IdentityResolver, maxSessions int) *testServer {
	t.Helper()
	return newTestServerWithHub(t, resolver, broadcast.NewHub(broadcast.NewRegistry(maxSessions), clockwork.NewRealClock()))
}

func newTestServerWithHub(t *testing.T, resolver IdentityResolver, hub *broadcast.Hub) *testServer {
	t.Helper()

	h := NewHandler(hub, resolver, NewCheckOrigin("http://vote.example.com", nil, false))

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			_ = c.JSON(appErr.HTTPStatus(), appErr.ToResponse())
			return
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
	e.GET("/api/ws", h.HandleConnect)
	e.GET("/api/ws/:user_id", h.HandleUserConnect)

	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
	})
	return &testServer{Server: srv, hub: hub}
}

func (s *testServer) url(path string) string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + path
}

func (s *testServer) dial(t *testing.T, path string) *ws.Conn {
	t.Helper()
	conn, resp, err := ws.DefaultDialer.Dial(s.url(path), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *testServer) dialStatus(t *testing.T, path string, header http.Header) int {
	t.Helper()
	conn, resp, err := ws.DefaultDialer.Dial(s.url(path), header)
	if conn != nil {
		_ = conn.Close()
	}
	require.ErrorIs(t, err, ws.ErrBadHandshake)
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode
}

func readJSON(t *testing.T, conn *ws.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestHandleConnect_Anonymous(t *testing.T) {
	srv := newTestServer(t, &mockResolver{}, 0)
	conn := srv.dial(t, "/api/ws")

	msg := readJSON(t, conn)
	assert.Equal(t, "connection_established", msg["type"])
	assert.Equal(t, "Connected to voting system", msg["message"])
	assert.NotContains(t, msg, "user_id")

	waitFor(t, func() bool { return srv.hub.Registry().CountFor(domain.AnonymousUserID) == 1 })
}

func TestHandleConnect_Protocol(t *testing.T) {
	srv := newTestServer(t, &mockResolver{}, 0)
	conn := srv.dial(t, "/api/ws")
	readJSON(t, conn)

	tests := []struct {
		name string
		send string
		want map[string]any
	}{
		{"ping echoes timestamp", `{"type":"ping","timestamp":1717243200000}`, map[string]any{"type": "pong", "timestamp": 1717243200000.0}},
		{"ping without timestamp", `{"type":"ping"}`, map[string]any{"type": "pong"}},
		{"subscribe", `{"type":"subscribe"}`, map[string]any{"type": "subscribed", "message": "Subscribed to real-time updates"}},
		{"unknown type", `{"type":"dance"}`, map[string]any{"type": "error", "message": "Unknown message type"}},
		{"invalid json", `not json`, map[string]any{"type": "error", "message": "Invalid message format"}},
	}

	// Replies share one connection, so cases run in order.
	for _, tt := range tests {
		require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(tt.send)), tt.name)
		assert.Equal(t, tt.want, readJSON(t, conn), tt.name)
	}
}

func TestHandleConnect_WithToken(t *testing.T) {
	srv := newTestServer(t, tokenResolver(map[string]int64{"good": 7}), 0)
	conn := srv.dial(t, "/api/ws?token=good")

	msg := readJSON(t, conn)
	assert.Equal(t, "Connected as user 7", msg["message"])
	assert.Equal(t, 7.0, msg["user_id"])
	waitFor(t, func() bool { return srv.hub.Registry().CountFor(7) == 1 })

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"ping","timestamp":"t1"}`)))
	assert.Equal(t, map[string]any{"type": "pong", "timestamp": "t1", "user_id": 7.0}, readJSON(t, conn))
}

func TestHandleConnect_InvalidTokenFallsBackToAnonymous(t *testing.T) {
	srv := newTestServer(t, tokenResolver(map[string]int64{"good": 7}), 0)
	conn := srv.dial(t, "/api/ws?token=expired")

	msg := readJSON(t, conn)
	assert.Equal(t, "Connected to voting system", msg["message"])
	waitFor(t, func() bool { return srv.hub.Registry().CountFor(domain.AnonymousUserID) == 1 })
}

func TestHandleUserConnect(t *testing.T) {
	srv := newTestServer(t, tokenResolver(map[string]int64{"seven": 7}), 0)

	conn := srv.dial(t, "/api/ws/7?token=seven")
	msg := readJSON(t, conn)
	assert.Equal(t, "connection_established", msg["type"])
	assert.Equal(t, 7.0, msg["user_id"])

	bearer := http.Header{"Authorization": []string{"Bearer seven"}}
	conn2, resp, err := ws.DefaultDialer.Dial(srv.url("/api/ws/7"), bearer)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer func() { _ = conn2.Close() }()
	assert.Equal(t, 7.0, readJSON(t, conn2)["user_id"])

	waitFor(t, func() bool { return srv.hub.Registry().CountFor(7) == 2 })
}

func TestHandleUserConnect_Rejected(t *testing.T) {
	srv := newTestServer(t, tokenResolver(map[string]int64{"seven": 7}), 0)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"invalid user id", "/api/ws/abc?token=seven", http.StatusBadRequest},
		{"zero user id", "/api/ws/0?token=seven", http.StatusBadRequest},
		{"missing token", "/api/ws/7", http.StatusUnauthorized},
		{"invalid token", "/api/ws/7?token=forged", http.StatusUnauthorized},
		{"someone else's id", "/api/ws/8?token=seven", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, srv.dialStatus(t, tt.path, nil))
		})
	}
	assert.Equal(t, 0, srv.hub.Registry().Len())
}

func TestHandleConnect_ResolverFailure(t *testing.T) {
	resolver := &mockResolver{resolveFn: func(context.Context, string) (int64, error) {
		return 0, errors.New("database down")
	}}
	srv := newTestServer(t, resolver, 0)

	assert.Equal(t, http.StatusInternalServerError, srv.dialStatus(t, "/api/ws/7?token=any", nil))
}

func TestHandleConnect_LimitReached(t *testing.T) {
	srv := newTestServer(t, &mockResolver{}, 1)
	conn := srv.dial(t, "/api/ws")
	readJSON(t, conn)

	assert.Equal(t, http.StatusServiceUnavailable, srv.dialStatus(t, "/api/ws", nil))
	assert.Equal(t, 1, srv.hub.Registry().Len())
}

func TestHandleConnect_OriginRejected(t *testing.T) {
	srv := newTestServer(t, &mockResolver{}, 0)

	status := srv.dialStatus(t, "/api/ws", http.Header{"Origin": []string{"https://evil.example.org"}})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestHandleConnect_ClientCloseDeregisters(t *testing.T) {
	srv := newTestServer(t, &mockResolver{}, 0)
	conn := srv.dial(t, "/api/ws")
	readJSON(t, conn)
	waitFor(t, func() bool { return srv.hub.Registry().Len() == 1 })

	_ = conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, "bye"))
	_ = conn.Close()

	waitFor(t, func() bool { return srv.hub.Registry().Len() == 0 })
}

func TestHandleConnect_ReceivesBroadcasts(t *testing.T) {
	srv := newTestServer(t, &mockResolver{}, 0)
	conn := srv.dial(t, "/api/ws")
	readJSON(t, conn)
	waitFor(t, func() bool { return srv.hub.Registry().Len() == 1 })

	require.NoError(t, srv.hub.Publish(context.Background(), domain.SuggestionDeletedEvent{SuggestionID: 3}))

	msg := readJSON(t, conn)
	assert.Equal(t, "suggestion_deleted", msg["type"])
	assert.Equal(t, map[string]any{"suggestion_id": 3.0}, msg["data"])
}

func TestHandleConnect_ServerStopSendsGoingAway(t *testing.T) {
	srv := newTestServer(t, &mockResolver{}, 0)
	conn := srv.dial(t, "/api/ws")
	readJSON(t, conn)
	waitFor(t, func() bool { return srv.hub.Registry().Len() == 1 })

	srv.hub.Stop()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, ws.IsCloseError(err, ws.CloseGoingAway), "got %v", err)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{"query", "/api/ws?token=abc", "", "abc"},
		{"header", "/api/ws", "Bearer xyz", "xyz"},
		{"lowercase scheme", "/api/ws", "bearer xyz", "xyz"},
		{"query wins", "/api/ws?token=abc", "Bearer xyz", "abc"},
		{"basic auth ignored", "/api/ws", "Basic Zm9vOmJhcg==", ""},
		{"none", "/api/ws", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, bearerToken(r))
		})
	}
}

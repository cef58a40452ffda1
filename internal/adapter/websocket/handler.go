// Package websocket serves the live-update endpoint: it upgrades the request,
// resolves the caller's identity, registers the connection with the hub and
// answers the small client protocol (ping, subscribe) until the peer leaves.
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ARRNAV26/Voting-System/internal/broadcast"
	"github.com/ARRNAV26/Voting-System/internal/domain"
	apperrors "github.com/ARRNAV26/Voting-System/internal/platform/errors"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	maxMessageSize = 4096
	tokenParam     = "token"
)

// IdentityResolver maps an optional bearer token to a connection identity.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (int64, error)
}

type Handler struct {
	hub      *broadcast.Hub
	identity IdentityResolver
	upgrader websocket.Upgrader
}

func NewHandler(hub *broadcast.Hub, identity IdentityResolver, checkOrigin func(r *http.Request) bool) *Handler {
	return &Handler{
		hub:      hub,
		identity: identity,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// HandleConnect serves GET /api/ws. Without a token the connection is
// anonymous. An invalid token also degrades to anonymous so that a stale
// client still receives public updates.
func (h *Handler) HandleConnect(c echo.Context) error {
	ctx := c.Request().Context()

	identity := domain.AnonymousUserID
	if token := bearerToken(c.Request()); token != "" {
		id, err := h.identity.ResolveIdentity(ctx, token)
		if err != nil {
			slog.WarnContext(ctx, "WebSocket token rejected, connecting anonymously", "error", err)
		} else {
			identity = id
		}
	}

	return h.serve(c, identity, identity != domain.AnonymousUserID)
}

// HandleUserConnect serves GET /api/ws/:user_id. The path only names the
// identity; the token must prove it.
func (h *Handler) HandleUserConnect(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return apperrors.ValidationError("invalid user id").WithField("user_id", c.Param("user_id"))
	}

	token := bearerToken(c.Request())
	if token == "" {
		return apperrors.UnauthorizedError("not authenticated")
	}
	identity, err := h.identity.ResolveIdentity(ctx, token)
	if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrInactiveUser) {
		return apperrors.UnauthorizedError("could not validate credentials").WithCause(err)
	}
	if err != nil {
		return apperrors.InternalError("failed to resolve identity", err)
	}
	if identity != userID {
		return apperrors.ForbiddenError("token does not belong to this user").WithField("user_id", userID)
	}

	return h.serve(c, identity, true)
}

func (h *Handler) serve(c echo.Context, identity int64, tagged bool) error {
	ctx := c.Request().Context()

	if h.hub.Registry().Full() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "connection limit reached")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error response.
		slog.DebugContext(ctx, "WebSocket upgrade failed", "error", err)
		return nil
	}
	conn.SetReadLimit(maxMessageSize)

	session, err := h.hub.Connect(identity, conn)
	if err != nil {
		slog.WarnContext(ctx, "WebSocket connection rejected", "identity", identity, "error", err)
		return nil
	}

	p := protocol{identity: identity, tagged: tagged}
	session.Send(p.established())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.DebugContext(ctx, "WebSocket read failed", "session_id", session.ID.String(), "error", err)
			}
			break
		}
		session.KeepAlive()
		if !session.Send(p.reply(data)) {
			break
		}
	}

	h.hub.Disconnect(session)
	return nil
}

// bearerToken reads the token from the query string, which browsers can set
// on a WebSocket URL, or from an Authorization header.
func bearerToken(r *http.Request) string {
	if t := r.URL.Query().Get(tokenParam); t != "" {
		return t
	}
	if h := r.Header.Get(echo.HeaderAuthorization); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

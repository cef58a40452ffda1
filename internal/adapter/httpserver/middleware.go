package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/ARRNAV26/Voting-System/internal/platform/correlation"
	apperrors "github.com/ARRNAV26/Voting-System/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

const contextKeyUser = "user"

// correlationMiddleware adopts the caller's X-Request-ID when it is usable,
// otherwise mints one, and echoes it back on the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.Resolve(c.Request().Header.Get(correlation.Header))
		c.Response().Header().Set(correlation.Header, id)
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// requireAuth resolves the bearer token to an active user and stores it on
// the context.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c.Request())
		if token == "" {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			return apperrors.UnauthorizedError("Not authenticated")
		}

		user, err := s.app.Authenticate(c.Request().Context(), token)
		if err != nil {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			return mapDomainError(err)
		}

		c.Set(contextKeyUser, user)
		return next(c)
	}
}

// currentUser is only valid behind requireAuth.
func currentUser(c echo.Context) *domain.User {
	u, _ := c.Get(contextKeyUser).(*domain.User)
	return u
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// mapDomainError translates domain outcomes into structured request errors.
// Structured errors pass through and anything else becomes internal.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, domain.ErrSuggestionNotFound):
		return apperrors.NotFoundError("Suggestion not found").WithCause(err)
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NotFoundError("User not found").WithCause(err)
	case errors.Is(err, domain.ErrVoteNotFound):
		return apperrors.NotFoundError("No vote found for this suggestion").WithCause(err)
	case errors.Is(err, domain.ErrSelfVote):
		return apperrors.ForbiddenError("Cannot vote on your own suggestion").WithCause(err)
	case errors.Is(err, domain.ErrForbidden):
		return apperrors.ForbiddenError("Not authorized to modify this suggestion").WithCause(err)
	case errors.Is(err, domain.ErrInvalidTransition):
		return apperrors.ValidationError("Status can only change from active to implemented or rejected").WithCause(err)
	case errors.Is(err, domain.ErrDuplicateUser):
		return apperrors.ConflictError("Username or email already registered").WithCause(err)
	case errors.Is(err, domain.ErrConflict):
		return apperrors.ConflictError("Concurrent modification, please retry").WithCause(err)
	case errors.Is(err, domain.ErrInvalidCredentials):
		return apperrors.UnauthorizedError("Incorrect username or password").WithCause(err)
	case errors.Is(err, domain.ErrInvalidToken):
		return apperrors.UnauthorizedError("Could not validate credentials").WithCause(err)
	case errors.Is(err, domain.ErrInactiveUser):
		return apperrors.UnauthorizedError("Inactive user").WithCause(err)
	case errors.Is(err, domain.ErrRateLimited):
		return apperrors.RateLimitedError("Too many votes, slow down").WithCause(err)
	}

	var structured *apperrors.Error
	if errors.As(err, &structured) {
		return structured
	}
	return apperrors.InternalError("internal server error", err)
}

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			return HandleError(c, err)
		}
	}
}

// handleHTTPError renders echo's own errors (unknown routes, bind failures,
// rate limiter denials) in the same body shape as structured errors.
func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		if herr := HandleError(c, err); herr != nil {
			slog.ErrorContext(c.Request().Context(), "Failed to write error response", "error", herr)
		}
		return
	}

	structured := WrapHTTPError(httpErr)
	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(httpErr.Code)
	} else {
		writeErr = c.JSON(httpErr.Code, structured.ToResponse())
	}
	if writeErr != nil {
		slog.ErrorContext(c.Request().Context(), "Failed to write error response", "error", writeErr)
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	if u := currentUser(c); u != nil {
		attrs = append(attrs, "user_id", u.ID)
	}

	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound, apperrors.TypeUnauthorized, apperrors.TypeForbidden:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	case apperrors.TypeConflict, apperrors.TypeRateLimited:
		slog.WarnContext(ctx, "Request refused", attrs...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	case apperrors.TypeExternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "External service error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}

// HandleError maps err, logs it and writes the JSON error body.
func HandleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	structuredErr := apperrors.AsStructuredError(mapDomainError(err))
	logError(c, structuredErr)
	if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

func WrapHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		message = msg
	}

	var errType apperrors.ErrorType
	switch httpErr.Code {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		errType = apperrors.TypeValidation
	case http.StatusUnauthorized:
		errType = apperrors.TypeUnauthorized
	case http.StatusForbidden:
		errType = apperrors.TypeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		errType = apperrors.TypeNotFound
	case http.StatusConflict:
		errType = apperrors.TypeConflict
	case http.StatusTooManyRequests:
		errType = apperrors.TypeRateLimited
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		errType = apperrors.TypeExternal
	default:
		errType = apperrors.TypeInternal
	}

	err := &apperrors.Error{
		Type:    errType,
		Message: message,
		Context: make(map[string]any),
	}

	if httpErr.Internal != nil {
		err.Cause = httpErr.Internal
	}

	return err
}

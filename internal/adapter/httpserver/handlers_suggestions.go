package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ARRNAV26/Voting-System/internal/app"
	"github.com/ARRNAV26/Voting-System/internal/domain"
	apperrors "github.com/ARRNAV26/Voting-System/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

type suggestionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// suggestionPatchRequest leaves absent fields untouched.
type suggestionPatchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func parseID(c echo.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationError(fmt.Sprintf("invalid %s", name)).WithField(name, raw)
	}
	return id, nil
}

func (s *Server) handleListSuggestions(c echo.Context) error {
	var p app.ListParams
	err := echo.QueryParamsBinder(c).
		Int("skip", &p.Skip).
		Int("limit", &p.Limit).
		String("category", &p.Category).
		String("status", &p.Status).
		BindError()
	if err != nil {
		return apperrors.ValidationError("invalid query parameters").WithCause(err)
	}

	suggestions, err := s.app.ListSuggestions(c.Request().Context(), p)
	if err != nil {
		return mapDomainError(err)
	}
	return writeSuggestions(c, suggestions)
}

func (s *Server) handleTopSuggestions(c echo.Context) error {
	var limit int
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return apperrors.ValidationError("invalid query parameters").WithCause(err)
	}

	suggestions, err := s.app.TopSuggestions(c.Request().Context(), limit)
	if err != nil {
		return mapDomainError(err)
	}
	return writeSuggestions(c, suggestions)
}

func (s *Server) handleCategories(c echo.Context) error {
	categories, err := s.app.Categories(c.Request().Context())
	if err != nil {
		return mapDomainError(err)
	}
	if categories == nil {
		categories = []domain.CategoryCount{}
	}
	if err := c.JSON(http.StatusOK, categories); err != nil {
		return fmt.Errorf("failed to write categories response: %w", err)
	}
	return nil
}

func (s *Server) handleGetSuggestion(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	snap, err := s.app.GetSuggestion(c.Request().Context(), id)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleUserSuggestions(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	suggestions, err := s.app.UserSuggestions(c.Request().Context(), id)
	if err != nil {
		return mapDomainError(err)
	}
	return writeSuggestions(c, suggestions)
}

func (s *Server) handleCreateSuggestion(c echo.Context) error {
	var req suggestionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body").WithCause(err)
	}

	snap, err := s.app.CreateSuggestion(c.Request().Context(), currentUser(c).ID, app.SuggestionInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleUpdateSuggestion(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req suggestionPatchRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return apperrors.ValidationError("invalid request body").WithCause(err)
	}

	snap, err := s.app.UpdateSuggestion(c.Request().Context(), currentUser(c).ID, id, domain.SuggestionPatch{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleUpdateStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return apperrors.ValidationError("invalid request body").WithCause(err)
	}
	target := domain.Status(req.Status)
	if !target.Valid() {
		return apperrors.ValidationError("unknown status").WithField("status", req.Status)
	}

	snap, err := s.app.TransitionStatus(c.Request().Context(), currentUser(c).ID, id, target)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleDeleteSuggestion(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := s.app.DeleteSuggestion(c.Request().Context(), currentUser(c).ID, id); err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Suggestion deleted successfully"})
}

// writeSuggestions renders an empty result as [] rather than null.
func writeSuggestions(c echo.Context, suggestions []domain.SuggestionSnapshot) error {
	if suggestions == nil {
		suggestions = []domain.SuggestionSnapshot{}
	}
	if err := c.JSON(http.StatusOK, suggestions); err != nil {
		return fmt.Errorf("failed to write suggestions response: %w", err)
	}
	return nil
}

package httpserver

import (
	"fmt"
	"net/http"

	"github.com/ARRNAV26/Voting-System/internal/app"
	"github.com/ARRNAV26/Voting-System/internal/domain"
	apperrors "github.com/ARRNAV26/Voting-System/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

type voteRequest struct {
	SuggestionID int64 `json:"suggestion_id"`
	IsUpvote     *bool `json:"is_upvote"`
}

type voteResponse struct {
	Message string `json:"message"`
	app.VoteResult
}

func (s *Server) handleCastVote(c echo.Context) error {
	var req voteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body").WithCause(err)
	}
	if req.SuggestionID <= 0 {
		return apperrors.ValidationError("suggestion_id is required").WithField("field", "suggestion_id")
	}
	if req.IsUpvote == nil {
		return apperrors.ValidationError("is_upvote is required").WithField("field", "is_upvote")
	}

	res, err := s.app.CastVote(c.Request().Context(), currentUser(c).ID, req.SuggestionID, *req.IsUpvote)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, voteResponse{Message: "Vote recorded successfully", VoteResult: res})
}

func (s *Server) handleRemoveVote(c echo.Context) error {
	id, err := parseID(c, "suggestion_id")
	if err != nil {
		return err
	}

	res, err := s.app.RemoveVote(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, voteResponse{Message: "Vote removed successfully", VoteResult: res})
}

func (s *Server) handleVoteInfo(c echo.Context) error {
	id, err := parseID(c, "suggestion_id")
	if err != nil {
		return err
	}

	res, err := s.app.VoteInfo(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleMyVotes(c echo.Context) error {
	votes, err := s.app.UserVotes(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return mapDomainError(err)
	}
	if votes == nil {
		votes = []domain.Vote{}
	}
	if err := c.JSON(http.StatusOK, votes); err != nil {
		return fmt.Errorf("failed to write votes response: %w", err)
	}
	return nil
}

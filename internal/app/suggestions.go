package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ARRNAV26/Voting-System/internal/domain"
	apperrors "github.com/ARRNAV26/Voting-System/internal/platform/errors"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 100
	DefaultTopLimit  = 10
	MaxTopLimit      = 50

	maxTitleLen    = 200
	maxCategoryLen = 50

	categoriesKey = "categories"
)

type ListParams struct {
	Category string
	Status   string
	Skip     int
	// Limit of zero means DefaultListLimit.
	Limit int
}

func (p ListParams) filter() (domain.SuggestionFilter, error) {
	f := domain.SuggestionFilter{Category: p.Category, Skip: p.Skip, Limit: p.Limit}
	if p.Skip < 0 {
		return f, apperrors.ValidationError("skip must not be negative").WithField("skip", p.Skip)
	}
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit < 1 || f.Limit > MaxListLimit {
		return f, apperrors.ValidationError(fmt.Sprintf("limit must be between 1 and %d", MaxListLimit)).WithField("limit", p.Limit)
	}
	if p.Status != "" {
		f.Status = domain.Status(p.Status)
		if !f.Status.Valid() {
			return f, apperrors.ValidationError("unknown status").WithField("status", p.Status)
		}
	}
	return f, nil
}

type SuggestionInput struct {
	Title       string
	Description string
	Category    string
}

func validateTitle(v string) error {
	if strings.TrimSpace(v) == "" || utf8.RuneCountInString(v) > maxTitleLen {
		return apperrors.ValidationError(fmt.Sprintf("title must be 1-%d characters", maxTitleLen)).WithField("field", "title")
	}
	return nil
}

func validateDescription(v string) error {
	if strings.TrimSpace(v) == "" {
		return apperrors.ValidationError("description is required").WithField("field", "description")
	}
	return nil
}

func validateCategory(v string) error {
	if strings.TrimSpace(v) == "" || utf8.RuneCountInString(v) > maxCategoryLen {
		return apperrors.ValidationError(fmt.Sprintf("category must be 1-%d characters", maxCategoryLen)).WithField("field", "category")
	}
	return nil
}

func (in SuggestionInput) validate() error {
	if err := validateTitle(in.Title); err != nil {
		return err
	}
	if err := validateDescription(in.Description); err != nil {
		return err
	}
	return validateCategory(in.Category)
}

func validatePatch(p domain.SuggestionPatch) error {
	if p.Empty() {
		return apperrors.ValidationError("no fields to update")
	}
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return err
		}
	}
	if p.Category != nil {
		return validateCategory(*p.Category)
	}
	return nil
}

// ListSuggestions returns suggestions newest first.
func (s *Service) ListSuggestions(ctx context.Context, p ListParams) ([]domain.SuggestionSnapshot, error) {
	f, err := p.filter()
	if err != nil {
		return nil, err
	}
	return s.suggestions.ListSuggestions(ctx, f)
}

// TopSuggestions orders by vote count, newest first on ties. A limit of zero
// means DefaultTopLimit.
func (s *Service) TopSuggestions(ctx context.Context, limit int) ([]domain.SuggestionSnapshot, error) {
	if limit == 0 {
		limit = DefaultTopLimit
	}
	if limit < 1 || limit > MaxTopLimit {
		return nil, apperrors.ValidationError(fmt.Sprintf("limit must be between 1 and %d", MaxTopLimit)).WithField("limit", limit)
	}
	return s.suggestions.TopByVotes(ctx, limit)
}

// Categories collapses concurrent callers onto one storage query.
func (s *Service) Categories(ctx context.Context) ([]domain.CategoryCount, error) {
	v, err, _ := s.categoriesGroup.Do(categoriesKey, func() (any, error) {
		return s.suggestions.Categories(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.CategoryCount), nil
}

func (s *Service) GetSuggestion(ctx context.Context, id int64) (*domain.SuggestionSnapshot, error) {
	return s.suggestions.Snapshot(ctx, id)
}

// UserSuggestions lists everything authorID wrote, newest first.
func (s *Service) UserSuggestions(ctx context.Context, authorID int64) ([]domain.SuggestionSnapshot, error) {
	if _, err := s.users.GetUserByID(ctx, authorID); err != nil {
		return nil, err
	}
	return s.suggestions.ListSuggestions(ctx, domain.SuggestionFilter{AuthorID: authorID})
}

// CreateSuggestion stores an active suggestion and announces it.
func (s *Service) CreateSuggestion(ctx context.Context, authorID int64, in SuggestionInput) (*domain.SuggestionSnapshot, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	created, err := s.suggestions.CreateSuggestion(ctx, domain.NewSuggestion{
		AuthorID:    authorID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
	})
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(created.ID)
	defer unlock()

	snap, err := s.suggestions.Snapshot(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("read created suggestion: %w", err)
	}

	s.publish(ctx, domain.NewSuggestionEvent{Suggestion: *snap})
	s.countSuggestionChange("create")
	slog.InfoContext(ctx, "Suggestion created", "suggestion_id", snap.ID, "author_id", authorID)
	return snap, nil
}

// authorize loads the suggestion and checks that actorID wrote it. Callers
// hold the suggestion's lock.
func (s *Service) authorize(ctx context.Context, actorID, suggestionID int64) error {
	sg, err := s.suggestions.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return err
	}
	if sg.AuthorID != actorID {
		return domain.ErrForbidden
	}
	return nil
}

// UpdateSuggestion applies a partial update on behalf of the author.
func (s *Service) UpdateSuggestion(ctx context.Context, actorID, id int64, patch domain.SuggestionPatch) (*domain.SuggestionSnapshot, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.authorize(ctx, actorID, id); err != nil {
		return nil, err
	}
	if _, err := withConflictRetry(ctx, s, func(ctx context.Context) (*domain.Suggestion, error) {
		return s.suggestions.UpdateSuggestion(ctx, id, patch)
	}); err != nil {
		return nil, err
	}

	return s.announceUpdate(ctx, id, "update")
}

// TransitionStatus moves an active suggestion to a terminal status on behalf
// of the author.
func (s *Service) TransitionStatus(ctx context.Context, actorID, id int64, target domain.Status) (*domain.SuggestionSnapshot, error) {
	if !target.Terminal() {
		return nil, domain.ErrInvalidTransition
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.authorize(ctx, actorID, id); err != nil {
		return nil, err
	}
	if _, err := withConflictRetry(ctx, s, func(ctx context.Context) (*domain.Suggestion, error) {
		return s.suggestions.TransitionStatus(ctx, id, target)
	}); err != nil {
		return nil, err
	}

	return s.announceUpdate(ctx, id, "transition")
}

func (s *Service) announceUpdate(ctx context.Context, id int64, operation string) (*domain.SuggestionSnapshot, error) {
	snap, err := s.suggestions.Snapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read updated suggestion: %w", err)
	}

	s.publish(ctx, domain.SuggestionUpdatedEvent{Suggestion: *snap})
	s.countSuggestionChange(operation)
	slog.InfoContext(ctx, "Suggestion updated", "suggestion_id", id, "operation", operation, "status", snap.Status)
	return snap, nil
}

// DeleteSuggestion removes the suggestion and its votes on behalf of the author.
func (s *Service) DeleteSuggestion(ctx context.Context, actorID, id int64) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.authorize(ctx, actorID, id); err != nil {
		return err
	}
	if _, err := withConflictRetry(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.suggestions.DeleteSuggestion(ctx, id)
	}); err != nil {
		return err
	}

	s.publish(ctx, domain.SuggestionDeletedEvent{SuggestionID: id})
	s.countSuggestionChange("delete")
	slog.InfoContext(ctx, "Suggestion deleted", "suggestion_id", id)
	return nil
}

package domain

import (
	"context"
	"time"
)

type Status string

const (
	StatusActive      Status = "active"
	StatusImplemented Status = "implemented"
	StatusRejected    Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusImplemented, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusImplemented || s == StatusRejected
}

// CanTransition reports whether a suggestion in status s may move to target.
// Only active suggestions move, and only to a terminal status.
func (s Status) CanTransition(target Status) bool {
	return s == StatusActive && target.Terminal()
}

type Suggestion struct {
	ID          int64
	Title       string
	Description string
	Category    string
	Status      Status
	AuthorID    int64
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

type NewSuggestion struct {
	AuthorID    int64
	Title       string
	Description string
	Category    string
}

// SuggestionPatch carries the fields of a partial update; nil means unchanged.
type SuggestionPatch struct {
	Title       *string
	Description *string
	Category    *string
}

func (p SuggestionPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil
}

// SuggestionSnapshot is the canonical read model: the suggestion, its author
// and its vote count derived from the ledger at read time.
type SuggestionSnapshot struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Status      Status      `json:"status"`
	AuthorID    int64       `json:"author_id"`
	VoteCount   int         `json:"vote_count"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at"`
	Author      UserSummary `json:"author"`
}

type SuggestionFilter struct {
	Category string
	Status   Status
	AuthorID int64
	Skip     int
	Limit    int
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// SuggestionStore owns suggestion records and their lifecycle. It trusts its
// caller for authorship checks.
type SuggestionStore interface {
	CreateSuggestion(ctx context.Context, s NewSuggestion) (*Suggestion, error)
	GetSuggestion(ctx context.Context, id int64) (*Suggestion, error)
	// UpdateSuggestion applies only the fields present in patch.
	UpdateSuggestion(ctx context.Context, id int64, patch SuggestionPatch) (*Suggestion, error)
	// TransitionStatus fails with ErrInvalidTransition unless the suggestion
	// is active and target is terminal. The check and write are atomic.
	TransitionStatus(ctx context.Context, id int64, target Status) (*Suggestion, error)
	// DeleteSuggestion removes the suggestion and all of its votes.
	DeleteSuggestion(ctx context.Context, id int64) error

	Snapshot(ctx context.Context, id int64) (*SuggestionSnapshot, error)
	// ListSuggestions returns newest first.
	ListSuggestions(ctx context.Context, f SuggestionFilter) ([]SuggestionSnapshot, error)
	// TopByVotes orders by vote count descending, newest first on ties.
	TopByVotes(ctx context.Context, limit int) ([]SuggestionSnapshot, error)
	Categories(ctx context.Context) ([]CategoryCount, error)
}

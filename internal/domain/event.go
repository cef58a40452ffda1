package domain

import "context"

type EventType string

const (
	EventNewSuggestion     EventType = "new_suggestion"
	EventSuggestionUpdated EventType = "suggestion_update"
	EventSuggestionDeleted EventType = "suggestion_deleted"
	EventVoteChanged       EventType = "vote_update"
)

// Event is an immutable state change delivered to live connections.
type Event interface {
	Type() EventType
}

type NewSuggestionEvent struct {
	Suggestion SuggestionSnapshot
}

type SuggestionUpdatedEvent struct {
	Suggestion SuggestionSnapshot
}

type SuggestionDeletedEvent struct {
	SuggestionID int64
}

// VoteChangedEvent carries the recomputed count. VoterVote is the voter's
// current polarity and is only shown to the voter's own connections.
type VoteChangedEvent struct {
	SuggestionID int64
	NewVoteCount int
	VoterID      int64
	VoterVote    *bool
}

func (NewSuggestionEvent) Type() EventType     { return EventNewSuggestion }
func (SuggestionUpdatedEvent) Type() EventType { return EventSuggestionUpdated }
func (SuggestionDeletedEvent) Type() EventType { return EventSuggestionDeleted }
func (VoteChangedEvent) Type() EventType       { return EventVoteChanged }

// Publisher fans events out to connected clients. Publish only fails when
// the event itself cannot be encoded.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

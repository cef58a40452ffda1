package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/ARRNAV26/Voting-System/internal/domain"
)

// Envelope is the outer shape of every server-to-client event.
type Envelope struct {
	Type domain.EventType `json:"type"`
	Data any              `json:"data"`
}

type votePayload struct {
	SuggestionID int64 `json:"suggestion_id"`
	NewVoteCount int   `json:"new_vote_count"`
	UserVote     *bool `json:"user_vote,omitempty"`
}

type suggestionUpdatePayload struct {
	Suggestion domain.SuggestionSnapshot `json:"suggestion"`
}

type suggestionDeletedPayload struct {
	SuggestionID int64 `json:"suggestion_id"`
}

// frames is an encoded event. personal, when set, replaces common for the
// sessions of identity owner.
type frames struct {
	common   []byte
	personal []byte
	owner    int64
}

func (f frames) forIdentity(identity int64) []byte {
	if f.personal != nil && identity == f.owner {
		return f.personal
	}
	return f.common
}

func encodeEvent(event domain.Event) (frames, error) {
	switch ev := event.(type) {
	case domain.NewSuggestionEvent:
		return encodeCommon(ev.Type(), ev.Suggestion)
	case domain.SuggestionUpdatedEvent:
		return encodeCommon(ev.Type(), suggestionUpdatePayload{Suggestion: ev.Suggestion})
	case domain.SuggestionDeletedEvent:
		return encodeCommon(ev.Type(), suggestionDeletedPayload{SuggestionID: ev.SuggestionID})
	case domain.VoteChangedEvent:
		f, err := encodeCommon(ev.Type(), votePayload{SuggestionID: ev.SuggestionID, NewVoteCount: ev.NewVoteCount})
		if err != nil || ev.VoterVote == nil || ev.VoterID == domain.AnonymousUserID {
			return f, err
		}
		personal, err := json.Marshal(Envelope{Type: ev.Type(), Data: votePayload{
			SuggestionID: ev.SuggestionID,
			NewVoteCount: ev.NewVoteCount,
			UserVote:     ev.VoterVote,
		}})
		if err != nil {
			return frames{}, fmt.Errorf("marshal personal vote payload: %w", err)
		}
		f.personal = personal
		f.owner = ev.VoterID
		return f, nil
	default:
		return frames{}, fmt.Errorf("unsupported event %T", event)
	}
}

func encodeCommon(t domain.EventType, data any) (frames, error) {
	b, err := json.Marshal(Envelope{Type: t, Data: data})
	if err != nil {
		return frames{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return frames{common: b}, nil
}

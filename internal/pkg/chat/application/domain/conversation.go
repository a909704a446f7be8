package chat

import (
	"errors"
	"strings"
	"time"
)

// Domain-level errors for chat behaviors
var (
	ErrEmptyMessage        = errors.New("chat: empty message text")
	ErrMissingParticipant  = errors.New("chat: sender and receiver are required")
	ErrSelfConversation    = errors.New("chat: sender and receiver must differ")
	ErrMalformedMetadata   = errors.New("chat: malformed conversation metadata")
	ErrUnknownConversation = errors.New("chat: conversation not found")
)

// ParticipantID is an opaque identifier for one chat participant.
type ParticipantID = string

// ConversationKey addresses the single conversation between two participants,
// independent of which of them initiates it.
type ConversationKey = string

// keySeparator joins the two ordered participant ids. It must not occur in
// participant identifiers.
const keySeparator = "|"

// DeriveKey returns the stable key for the conversation between a and b.
// The pair is ordered lexicographically before joining, so
// DeriveKey(a, b) == DeriveKey(b, a) for every pair. Pure, no failure mode.
func DeriveKey(a, b ParticipantID) ConversationKey {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + keySeparator + b
}

// Participant captures the per-conversation identity of one member.
type Participant struct {
	ID          ParticipantID `json:"id"`
	DisplayName string        `json:"displayName"`
}

// Conversation is the metadata document stored per conversation key.
// Messages live in a sub-collection and are not embedded here.
type Conversation struct {
	Key          ConversationKey `json:"key"`
	Participants []Participant   `json:"participants"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Other returns the participant that is not selfID. The second result is
// false when selfID is not a member or the metadata is malformed.
func (c Conversation) Other(selfID ParticipantID) (Participant, bool) {
	if len(c.Participants) != 2 {
		return Participant{}, false
	}
	var other Participant
	found := false
	for _, p := range c.Participants {
		if p.ID == selfID {
			found = true
			continue
		}
		other = p
	}
	if !found || other.ID == "" || other.DisplayName == "" {
		return Participant{}, false
	}
	return other, true
}

// HasParticipant tells whether userID is a member of this conversation.
func (c Conversation) HasParticipant(userID ParticipantID) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

package chat

import (
	"strings"
	"time"
)

// Message is an append-only log entry in a conversation. Once persisted only
// the Read/ReadAt pair may change, and each exactly once.
type Message struct {
	ID                  string          `json:"id"`
	ConversationKey     ConversationKey `json:"conversationKey"`
	SenderID            ParticipantID   `json:"senderId"`
	SenderDisplayName   string          `json:"senderDisplayName"`
	ReceiverID          ParticipantID   `json:"receiverId"`
	ReceiverDisplayName string          `json:"receiverDisplayName"`
	Text                string          `json:"text"`
	SentAt              time.Time       `json:"sentAt"`
	Read                bool            `json:"read"`
	ReadAt              *time.Time      `json:"readAt,omitempty"`
}

// NewMessage validates and shapes a message before it reaches the store.
// Empty or whitespace-only text is rejected here, before any network call.
func NewMessage(m Message) (*Message, error) {
	if m.SenderID == "" || m.ReceiverID == "" {
		return nil, ErrMissingParticipant
	}
	if m.SenderID == m.ReceiverID {
		return nil, ErrSelfConversation
	}

	m.Text = strings.TrimSpace(m.Text)
	if m.Text == "" {
		return nil, ErrEmptyMessage
	}

	m.ConversationKey = DeriveKey(m.SenderID, m.ReceiverID)
	m.Read = false
	m.ReadAt = nil
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	return &m, nil
}

// MessagesEqual is the shallow business-equality check for two message
// snapshots: same length and, pairwise, equal ID, Text, SenderID and Read.
// Timestamps are excluded deliberately so jitter between snapshots does not
// count as a change. Callers that condition expensive work (re-render,
// re-fetch) on snapshot identity must use this, not deep equality.
func MessagesEqual(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID ||
			a[i].Text != b[i].Text ||
			a[i].SenderID != b[i].SenderID ||
			a[i].Read != b[i].Read {
			return false
		}
	}
	return true
}

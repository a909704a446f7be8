package repository

import (
	"context"
	"time"

	store "go-dispatch/internal/infrastructure/docstore/port"
	chat "go-dispatch/internal/pkg/chat/application/domain"
)

// ChatRepository defines persistence operations for the chat domain on top
// of the realtime document store. Subscribe* operations open live queries:
// the callback receives a fresh full result on every underlying change, and
// the returned CancelFunc (idempotent) stops delivery.
type ChatRepository interface {
	// EnsureConversation creates the conversation metadata document if it
	// does not exist yet. Existing metadata is left untouched.
	EnsureConversation(ctx context.Context, c chat.Conversation) error

	// SaveMessage appends the message to the conversation log and bumps the
	// conversation metadata document so directory-level subscriptions see the
	// activity.
	SaveMessage(ctx context.Context, m chat.Message) (string, error)
	GetMessage(ctx context.Context, key chat.ConversationKey, messageID string) (*chat.Message, error)

	// MessagesBetween returns the full ordered history of the conversation
	// between a and b, oldest first.
	MessagesBetween(ctx context.Context, a, b chat.ParticipantID) ([]chat.Message, error)

	// LatestMessage returns the most recent message of the conversation, or
	// nil when the conversation has none.
	LatestMessage(ctx context.Context, key chat.ConversationKey) (*chat.Message, error)

	// CountUnread counts messages addressed to selfID that are still unread.
	CountUnread(ctx context.Context, key chat.ConversationKey, selfID chat.ParticipantID) (int, error)
	UnreadMessages(ctx context.Context, key chat.ConversationKey, selfID chat.ParticipantID) ([]chat.Message, error)

	// MarkMessageRead flips read to true and stamps readAt. The flip is
	// conditional on the message still being unread, so concurrent calls
	// write readAt at most once; marking an already-read message is a no-op.
	MarkMessageRead(ctx context.Context, key chat.ConversationKey, messageID string, at time.Time) error

	// ConversationsFor lists every conversation selfID participates in.
	// Conversations whose metadata cannot be decoded are skipped.
	ConversationsFor(ctx context.Context, selfID chat.ParticipantID) ([]chat.Conversation, error)

	SubscribeMessages(ctx context.Context, key chat.ConversationKey, onUpdate func([]chat.Message)) (store.CancelFunc, error)
	SubscribeLatestMessage(ctx context.Context, key chat.ConversationKey, onUpdate func(*chat.Message)) (store.CancelFunc, error)
	SubscribeConversations(ctx context.Context, selfID chat.ParticipantID, onUpdate func([]chat.Conversation)) (store.CancelFunc, error)
}

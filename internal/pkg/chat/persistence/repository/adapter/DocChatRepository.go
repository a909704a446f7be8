package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	store "go-dispatch/internal/infrastructure/docstore/port"
	chat "go-dispatch/internal/pkg/chat/application/domain"
	repository "go-dispatch/internal/pkg/chat/persistence/repository/port"
)

// Collection layout: conversations/{conversationKey} holds the metadata
// document (participants with display names, a flat participantIds array
// for membership queries, and a lastActivity timestamp bumped on every
// send); conversations/{conversationKey}/messages holds the append-only
// message log.
const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"

	fieldKey             = "key"
	fieldParticipants    = "participants"
	fieldParticipantIDs  = "participantIds"
	fieldCreatedAt       = "createdAt"
	fieldLastActivity    = "lastActivity"
	fieldSenderID        = "senderId"
	fieldSenderName      = "senderDisplayName"
	fieldReceiverID      = "receiverId"
	fieldReceiverName    = "receiverDisplayName"
	fieldText            = "text"
	fieldSentAt          = "sentAt"
	fieldRead            = "read"
	fieldReadAt          = "readAt"
	fieldConversationKey = "conversationKey"
)

// DocChatRepository implements the chat repository port over the document
// store. Documents that fail to decode are skipped with a debug log; a
// broken record must not poison list results or live snapshots.
type DocChatRepository struct {
	store  store.Store
	logger *log.Logger
}

func NewDocChatRepository(s store.Store, logger *log.Logger) *DocChatRepository {
	return &DocChatRepository{store: s, logger: logger}
}

var _ repository.ChatRepository = (*DocChatRepository)(nil)

func conversationsPath() []string { return []string{conversationsCollection} }

func messagesPath(key chat.ConversationKey) []string {
	return []string{conversationsCollection, key, messagesCollection}
}

func messagePath(key chat.ConversationKey, messageID string) []string {
	return []string{conversationsCollection, key, messagesCollection, messageID}
}

func (r *DocChatRepository) EnsureConversation(ctx context.Context, c chat.Conversation) error {
	if r == nil || r.store == nil {
		return errors.New("DocChatRepository: nil store")
	}
	existing, err := r.store.Query(ctx, conversationsPath(), store.Query{
		Filters: []store.Filter{{Field: fieldKey, Op: store.OpEqual, Value: c.Key}},
		Limit:   1,
	})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	participants := make([]any, 0, len(c.Participants))
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		participants = append(participants, map[string]any{
			"id":          p.ID,
			"displayName": p.DisplayName,
		})
		ids = append(ids, p.ID)
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return r.store.Put(ctx, conversationsPath(), c.Key, map[string]any{
		fieldKey:            c.Key,
		fieldParticipants:   participants,
		fieldParticipantIDs: ids,
		fieldCreatedAt:      createdAt,
	})
}

func (r *DocChatRepository) SaveMessage(ctx context.Context, m chat.Message) (string, error) {
	if r == nil || r.store == nil {
		return "", errors.New("DocChatRepository: nil store")
	}
	fields := map[string]any{
		fieldConversationKey: m.ConversationKey,
		fieldSenderID:        m.SenderID,
		fieldSenderName:      m.SenderDisplayName,
		fieldReceiverID:      m.ReceiverID,
		fieldReceiverName:    m.ReceiverDisplayName,
		fieldText:            m.Text,
		fieldSentAt:          m.SentAt,
		fieldRead:            m.Read,
	}
	id, err := r.store.Append(ctx, messagesPath(m.ConversationKey), fields)
	if err != nil {
		return "", err
	}
	// Bump the conversation document so directory-level live queries wake on
	// message activity, not only on membership changes. The message itself is
	// already durable, so a failed bump is logged rather than surfaced.
	touch := map[string]any{fieldLastActivity: m.SentAt}
	if err := r.store.Update(ctx, append(conversationsPath(), m.ConversationKey), touch); err != nil && !errors.Is(err, store.ErrNotFound) {
		r.logger.Warn("conversation activity bump failed", "conversation", m.ConversationKey, "err", err)
	}
	return id, nil
}

func (r *DocChatRepository) GetMessage(ctx context.Context, key chat.ConversationKey, messageID string) (*chat.Message, error) {
	docs, err := r.store.Query(ctx, messagesPath(key), store.Query{})
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.ID != messageID {
			continue
		}
		m, err := r.decodeMessage(d)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, store.ErrNotFound
}

func (r *DocChatRepository) MessagesBetween(ctx context.Context, a, b chat.ParticipantID) ([]chat.Message, error) {
	docs, err := r.store.Query(ctx, messagesPath(chat.DeriveKey(a, b)), store.Query{
		OrderBy: &store.OrderBy{Field: fieldSentAt},
	})
	if err != nil {
		return nil, err
	}
	return r.decodeMessages(docs), nil
}

func (r *DocChatRepository) LatestMessage(ctx context.Context, key chat.ConversationKey) (*chat.Message, error) {
	docs, err := r.store.Query(ctx, messagesPath(key), store.Query{
		OrderBy: &store.OrderBy{Field: fieldSentAt, Descending: true},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return r.decodeMessage(docs[0])
}

func (r *DocChatRepository) CountUnread(ctx context.Context, key chat.ConversationKey, selfID chat.ParticipantID) (int, error) {
	return r.store.Count(ctx, messagesPath(key), unreadFilters(selfID))
}

func (r *DocChatRepository) UnreadMessages(ctx context.Context, key chat.ConversationKey, selfID chat.ParticipantID) ([]chat.Message, error) {
	docs, err := r.store.Query(ctx, messagesPath(key), store.Query{Filters: unreadFilters(selfID)})
	if err != nil {
		return nil, err
	}
	return r.decodeMessages(docs), nil
}

// MarkMessageRead flips a message to read with an atomic check-and-set:
// only an unread message is patched, so two racing calls stamp readAt
// exactly once and the first timestamp wins.
func (r *DocChatRepository) MarkMessageRead(ctx context.Context, key chat.ConversationKey, messageID string, at time.Time) error {
	return r.store.UpdateIf(ctx, messagePath(key, messageID), map[string]any{
		fieldRead:   true,
		fieldReadAt: at,
	}, []store.Filter{{Field: fieldRead, Op: store.OpEqual, Value: false}})
}

func (r *DocChatRepository) ConversationsFor(ctx context.Context, selfID chat.ParticipantID) ([]chat.Conversation, error) {
	docs, err := r.store.Query(ctx, conversationsPath(), store.Query{
		Filters: []store.Filter{{Field: fieldParticipantIDs, Op: store.OpArrayContains, Value: selfID}},
	})
	if err != nil {
		return nil, err
	}
	return r.decodeConversations(docs), nil
}

func (r *DocChatRepository) SubscribeMessages(ctx context.Context, key chat.ConversationKey, onUpdate func([]chat.Message)) (store.CancelFunc, error) {
	return r.store.LiveQuery(ctx, messagesPath(key), store.Query{
		OrderBy: &store.OrderBy{Field: fieldSentAt},
	}, func(docs []store.Document) {
		onUpdate(r.decodeMessages(docs))
	})
}

func (r *DocChatRepository) SubscribeLatestMessage(ctx context.Context, key chat.ConversationKey, onUpdate func(*chat.Message)) (store.CancelFunc, error) {
	return r.store.LiveQuery(ctx, messagesPath(key), store.Query{
		OrderBy: &store.OrderBy{Field: fieldSentAt, Descending: true},
		Limit:   1,
	}, func(docs []store.Document) {
		if len(docs) == 0 {
			onUpdate(nil)
			return
		}
		m, err := r.decodeMessage(docs[0])
		if err != nil {
			r.logger.Debug("skipping undecodable latest message", "conversation", key, "err", err)
			return
		}
		onUpdate(m)
	})
}

func (r *DocChatRepository) SubscribeConversations(ctx context.Context, selfID chat.ParticipantID, onUpdate func([]chat.Conversation)) (store.CancelFunc, error) {
	return r.store.LiveQuery(ctx, conversationsPath(), store.Query{
		Filters: []store.Filter{{Field: fieldParticipantIDs, Op: store.OpArrayContains, Value: selfID}},
	}, func(docs []store.Document) {
		onUpdate(r.decodeConversations(docs))
	})
}

func unreadFilters(selfID chat.ParticipantID) []store.Filter {
	return []store.Filter{
		{Field: fieldReceiverID, Op: store.OpEqual, Value: selfID},
		{Field: fieldRead, Op: store.OpEqual, Value: false},
	}
}

func (r *DocChatRepository) decodeMessages(docs []store.Document) []chat.Message {
	out := make([]chat.Message, 0, len(docs))
	for _, d := range docs {
		m, err := r.decodeMessage(d)
		if err != nil {
			r.logger.Debug("skipping undecodable message", "id", d.ID, "err", err)
			continue
		}
		out = append(out, *m)
	}
	return out
}

func (r *DocChatRepository) decodeMessage(d store.Document) (*chat.Message, error) {
	m := chat.Message{ID: d.ID}
	var ok bool
	if m.ConversationKey, ok = d.Fields[fieldConversationKey].(string); !ok {
		return nil, fmt.Errorf("message %s: missing conversation key", d.ID)
	}
	if m.SenderID, ok = d.Fields[fieldSenderID].(string); !ok || m.SenderID == "" {
		return nil, fmt.Errorf("message %s: missing sender", d.ID)
	}
	if m.ReceiverID, ok = d.Fields[fieldReceiverID].(string); !ok || m.ReceiverID == "" {
		return nil, fmt.Errorf("message %s: missing receiver", d.ID)
	}
	if m.Text, ok = d.Fields[fieldText].(string); !ok {
		return nil, fmt.Errorf("message %s: missing text", d.ID)
	}
	if m.SentAt, ok = d.Fields[fieldSentAt].(time.Time); !ok {
		return nil, fmt.Errorf("message %s: missing sentAt", d.ID)
	}
	m.SenderDisplayName, _ = d.Fields[fieldSenderName].(string)
	m.ReceiverDisplayName, _ = d.Fields[fieldReceiverName].(string)
	m.Read, _ = d.Fields[fieldRead].(bool)
	if at, ok := d.Fields[fieldReadAt].(time.Time); ok {
		m.ReadAt = &at
	}
	return &m, nil
}

func (r *DocChatRepository) decodeConversations(docs []store.Document) []chat.Conversation {
	out := make([]chat.Conversation, 0, len(docs))
	for _, d := range docs {
		c, err := decodeConversation(d)
		if err != nil {
			r.logger.Debug("skipping undecodable conversation", "id", d.ID, "err", err)
			continue
		}
		out = append(out, c)
	}
	return out
}

func decodeConversation(d store.Document) (chat.Conversation, error) {
	c := chat.Conversation{Key: d.ID}
	if key, ok := d.Fields[fieldKey].(string); ok && key != "" {
		c.Key = key
	}
	if at, ok := d.Fields[fieldCreatedAt].(time.Time); ok {
		c.CreatedAt = at
	}

	raw, ok := d.Fields[fieldParticipants].([]any)
	if !ok {
		return chat.Conversation{}, fmt.Errorf("conversation %s: %w", d.ID, chat.ErrMalformedMetadata)
	}
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			return chat.Conversation{}, fmt.Errorf("conversation %s: %w", d.ID, chat.ErrMalformedMetadata)
		}
		p := chat.Participant{}
		p.ID, _ = entry["id"].(string)
		p.DisplayName, _ = entry["displayName"].(string)
		if p.ID == "" {
			return chat.Conversation{}, fmt.Errorf("conversation %s: %w", d.ID, chat.ErrMalformedMetadata)
		}
		c.Participants = append(c.Participants, p)
	}
	return c, nil
}

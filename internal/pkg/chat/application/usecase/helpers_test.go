package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	storeAdapter "go-dispatch/internal/infrastructure/docstore/adapter"
	store "go-dispatch/internal/infrastructure/docstore/port"
	chat "go-dispatch/internal/pkg/chat/application/domain"
	repoAdapter "go-dispatch/internal/pkg/chat/persistence/repository/adapter"
	repository "go-dispatch/internal/pkg/chat/persistence/repository/port"
)

func testLogger() *log.Logger { return log.New(io.Discard) }

func newTestRepo(t *testing.T) repository.ChatRepository {
	t.Helper()
	return repoAdapter.NewDocChatRepository(storeAdapter.NewMemoryStore(), testLogger())
}

// send persists one message via the use case so every test goes through the
// same path a caller would.
func send(t *testing.T, repo repository.ChatRepository, sender, senderName, receiver, receiverName, text string) *chat.Message {
	t.Helper()
	msg, err := NewSendMessageUseCase(repo).Execute(context.Background(), SendMessageInput{
		SenderID:            sender,
		SenderDisplayName:   senderName,
		ReceiverID:          receiver,
		ReceiverDisplayName: receiverName,
		Text:                text,
	})
	require.NoError(t, err)
	return msg
}

// fakeCache is a map-backed Cache for tests.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return "", errors.New("cache: miss")
	}
	return v, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.entries[k]; ok {
			delete(c.entries, k)
			n++
		}
		c.deleted = append(c.deleted, k)
	}
	return n, nil
}

func (c *fakeCache) Close() error { return nil }

// flakyRepo wraps a real repository and fails selected operations for
// selected conversations.
type flakyRepo struct {
	repository.ChatRepository
	failLatestFor map[chat.ConversationKey]bool
	failCountFor  map[chat.ConversationKey]bool
	failSubFor    map[chat.ConversationKey]bool
}

func (f *flakyRepo) LatestMessage(ctx context.Context, key chat.ConversationKey) (*chat.Message, error) {
	if f.failLatestFor[key] {
		return nil, errors.New("store unavailable")
	}
	return f.ChatRepository.LatestMessage(ctx, key)
}

func (f *flakyRepo) CountUnread(ctx context.Context, key chat.ConversationKey, selfID chat.ParticipantID) (int, error) {
	if f.failCountFor[key] {
		return 0, errors.New("store unavailable")
	}
	return f.ChatRepository.CountUnread(ctx, key, selfID)
}

func (f *flakyRepo) SubscribeLatestMessage(ctx context.Context, key chat.ConversationKey, onUpdate func(*chat.Message)) (store.CancelFunc, error) {
	if f.failSubFor[key] {
		return nil, errors.New("store unavailable")
	}
	return f.ChatRepository.SubscribeLatestMessage(ctx, key, onUpdate)
}

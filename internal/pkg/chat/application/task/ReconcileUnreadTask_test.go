package task

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storeAdapter "go-dispatch/internal/infrastructure/docstore/adapter"
	qport "go-dispatch/internal/infrastructure/queue/port"
	chat "go-dispatch/internal/pkg/chat/application/domain"
	"go-dispatch/internal/pkg/chat/application/usecase"
	repoAdapter "go-dispatch/internal/pkg/chat/persistence/repository/adapter"
)

// recordingServer captures registered handlers so tests can invoke them
// directly, without a queue backend.
type recordingServer struct {
	handlers map[string]qport.Handler
}

func newRecordingServer() *recordingServer {
	return &recordingServer{handlers: make(map[string]qport.Handler)}
}

func (s *recordingServer) Register(taskType string, h qport.Handler) {
	s.handlers[taskType] = h
}

func (s *recordingServer) Run(ctx context.Context) error { return nil }

type mapCache struct {
	mu      sync.Mutex
	entries map[string]string
	deleted []string
}

func newMapCache() *mapCache { return &mapCache{entries: make(map[string]string)} }

func (c *mapCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return "", errors.New("cache: miss")
	}
	return v, nil
}

func (c *mapCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *mapCache) Del(ctx context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		c.deleted = append(c.deleted, k)
		if _, ok := c.entries[k]; ok {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

func (c *mapCache) deletedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

func (c *mapCache) Close() error { return nil }

func payloadFor(t *testing.T, userID string) []byte {
	t.Helper()
	b, err := json.Marshal(ReconcileUnreadTaskPayload{UserID: userID})
	require.NoError(t, err)
	return b
}

func TestReconcileUnreadEvictsDriftedProfiles(t *testing.T) {
	ctx := context.Background()
	logger := log.New(io.Discard)
	repo := repoAdapter.NewDocChatRepository(storeAdapter.NewMemoryStore(), logger)
	cache := newMapCache()

	msg, err := chat.NewMessage(chat.Message{
		SenderID:            "bob",
		SenderDisplayName:   "Bob",
		ReceiverID:          "alice",
		ReceiverDisplayName: "Alice",
		Text:                "hi",
	})
	require.NoError(t, err)
	require.NoError(t, repo.EnsureConversation(ctx, chat.Conversation{
		Key: msg.ConversationKey,
		Participants: []chat.Participant{
			{ID: "alice", DisplayName: "Alice"},
			{ID: "bob", DisplayName: "Bob"},
		},
	}))
	_, err = repo.SaveMessage(ctx, *msg)
	require.NoError(t, err)

	// cached name drifted from the store metadata
	require.NoError(t, cache.Set(ctx, usecase.ProfileCacheKey("bob"), "Robert", time.Hour))

	srv := newRecordingServer()
	RegisterReconcileUnreadTask(srv, repo, cache, logger)
	handler := srv.handlers[ReconcileUnreadTaskType]
	require.NotNil(t, handler)

	require.NoError(t, handler(ctx, qport.Task{Type: ReconcileUnreadTaskType, Payload: payloadFor(t, "alice")}))

	// the drifted entry was evicted before the listing ran, and the listing
	// rewrote it from the store metadata
	assert.Contains(t, cache.deletedKeys(), usecase.ProfileCacheKey("bob"))
	name, err := cache.Get(ctx, usecase.ProfileCacheKey("bob"))
	require.NoError(t, err)
	assert.Equal(t, "Bob", name)
}

func TestReconcileUnreadLeavesMatchingProfilesAlone(t *testing.T) {
	ctx := context.Background()
	logger := log.New(io.Discard)
	repo := repoAdapter.NewDocChatRepository(storeAdapter.NewMemoryStore(), logger)
	cache := newMapCache()

	msg, err := chat.NewMessage(chat.Message{
		SenderID:            "bob",
		SenderDisplayName:   "Bob",
		ReceiverID:          "alice",
		ReceiverDisplayName: "Alice",
		Text:                "hi",
	})
	require.NoError(t, err)
	require.NoError(t, repo.EnsureConversation(ctx, chat.Conversation{
		Key: msg.ConversationKey,
		Participants: []chat.Participant{
			{ID: "alice", DisplayName: "Alice"},
			{ID: "bob", DisplayName: "Bob"},
		},
	}))
	_, err = repo.SaveMessage(ctx, *msg)
	require.NoError(t, err)

	require.NoError(t, cache.Set(ctx, usecase.ProfileCacheKey("bob"), "Bob", time.Hour))

	srv := newRecordingServer()
	RegisterReconcileUnreadTask(srv, repo, cache, logger)
	handler := srv.handlers[ReconcileUnreadTaskType]

	require.NoError(t, handler(ctx, qport.Task{Type: ReconcileUnreadTaskType, Payload: payloadFor(t, "alice")}))

	assert.Empty(t, cache.deletedKeys())
}

func TestReconcileUnreadSwallowsMalformedPayload(t *testing.T) {
	logger := log.New(io.Discard)
	repo := repoAdapter.NewDocChatRepository(storeAdapter.NewMemoryStore(), logger)

	srv := newRecordingServer()
	RegisterReconcileUnreadTask(srv, repo, newMapCache(), logger)
	handler := srv.handlers[ReconcileUnreadTaskType]

	// retrying cannot fix a broken payload, so the handler reports success
	assert.NoError(t, handler(context.Background(), qport.Task{
		Type:    ReconcileUnreadTaskType,
		Payload: []byte("{not json"),
	}))

	assert.NoError(t, handler(context.Background(), qport.Task{
		Type:    ReconcileUnreadTaskType,
		Payload: payloadFor(t, ""),
	}))
}

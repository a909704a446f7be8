package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chat "go-dispatch/internal/pkg/chat/application/domain"
)

func TestListConversationsOrdersByRecency(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	send(t, repo, "bob", "Bob", "alice", "Alice", "oldest thread")
	send(t, repo, "carol", "Carol", "alice", "Alice", "newest thread")

	uc := NewListConversationsUseCase(repo, nil, testLogger())
	summaries, err := uc.Execute(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "carol", summaries[0].OtherParticipantID)
	assert.Equal(t, "Carol", summaries[0].OtherParticipantName)
	assert.Equal(t, "bob", summaries[1].OtherParticipantID)
}

func TestListConversationsComputesUnreadPerSide(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	send(t, repo, "bob", "Bob", "alice", "Alice", "one")
	send(t, repo, "bob", "Bob", "alice", "Alice", "two")
	send(t, repo, "alice", "Alice", "bob", "Bob", "reply")

	uc := NewListConversationsUseCase(repo, nil, testLogger())

	forAlice, err := uc.Execute(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, forAlice, 1)
	assert.Equal(t, 2, forAlice[0].UnreadCount)
	assert.Equal(t, "reply", forAlice[0].LastMessage.Text)

	forBob, err := uc.Execute(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, forBob, 1)
	assert.Equal(t, 1, forBob[0].UnreadCount)
}

func TestListConversationsSkipsEmptyConversations(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// metadata exists but no message was ever stored
	require.NoError(t, repo.EnsureConversation(ctx, chat.Conversation{
		Key: chat.DeriveKey("alice", "bob"),
		Participants: []chat.Participant{
			{ID: "alice", DisplayName: "Alice"},
			{ID: "bob", DisplayName: "Bob"},
		},
	}))
	send(t, repo, "carol", "Carol", "alice", "Alice", "hi")

	summaries, err := NewListConversationsUseCase(repo, nil, testLogger()).Execute(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "carol", summaries[0].OtherParticipantID)
}

func TestListConversationsIsolatesPerConversationFailures(t *testing.T) {
	base := newTestRepo(t)
	ctx := context.Background()

	send(t, base, "bob", "Bob", "alice", "Alice", "fine")
	send(t, base, "carol", "Carol", "alice", "Alice", "broken side")

	repo := &flakyRepo{
		ChatRepository: base,
		failLatestFor:  map[chat.ConversationKey]bool{chat.DeriveKey("alice", "carol"): true},
	}

	summaries, err := NewListConversationsUseCase(repo, nil, testLogger()).Execute(ctx, "alice")
	require.NoError(t, err, "one failing conversation must not fail the list")
	require.Len(t, summaries, 1)
	assert.Equal(t, "bob", summaries[0].OtherParticipantID)
}

func TestListConversationsUsesCachedProfileFallback(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	cache := newFakeCache()

	// metadata lost bob's display name; a prior listing cached it
	require.NoError(t, repo.EnsureConversation(ctx, chat.Conversation{
		Key: chat.DeriveKey("alice", "bob"),
		Participants: []chat.Participant{
			{ID: "alice", DisplayName: "Alice"},
			{ID: "bob"},
		},
	}))
	msg, err := chat.NewMessage(chat.Message{SenderID: "bob", ReceiverID: "alice", Text: "hi"})
	require.NoError(t, err)
	_, err = repo.SaveMessage(ctx, *msg)
	require.NoError(t, err)

	require.NoError(t, cache.Set(ctx, ProfileCacheKey("bob"), "Bob", profileTTL))

	summaries, err := NewListConversationsUseCase(repo, cache, testLogger()).Execute(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Bob", summaries[0].OtherParticipantName)
}

func TestListConversationsSkipsUnresolvableMetadataWithoutCache(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.EnsureConversation(ctx, chat.Conversation{
		Key: chat.DeriveKey("alice", "bob"),
		Participants: []chat.Participant{
			{ID: "alice", DisplayName: "Alice"},
			{ID: "bob"},
		},
	}))
	msg, err := chat.NewMessage(chat.Message{SenderID: "bob", ReceiverID: "alice", Text: "hi"})
	require.NoError(t, err)
	_, err = repo.SaveMessage(ctx, *msg)
	require.NoError(t, err)

	summaries, err := NewListConversationsUseCase(repo, nil, testLogger()).Execute(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestListConversationsPopulatesProfileCache(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	cache := newFakeCache()

	send(t, repo, "bob", "Bob", "alice", "Alice", "hi")

	_, err := NewListConversationsUseCase(repo, cache, testLogger()).Execute(ctx, "alice")
	require.NoError(t, err)

	name, err := cache.Get(ctx, ProfileCacheKey("bob"))
	require.NoError(t, err)
	assert.Equal(t, "Bob", name)
}

func TestListConversationsRequiresSelf(t *testing.T) {
	repo := newTestRepo(t)
	_, err := NewListConversationsUseCase(repo, nil, testLogger()).Execute(context.Background(), "")
	assert.ErrorIs(t, err, chat.ErrMissingParticipant)
}

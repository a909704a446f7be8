package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chat "go-dispatch/internal/pkg/chat/application/domain"
)

func TestSubscribeDirectoryDeliversOnNewConversation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	list := NewListConversationsUseCase(repo, nil, testLogger())
	var snapshots [][]chat.ConversationSummary
	cancel, err := NewSubscribeDirectoryUseCase(list).Execute(ctx, "alice",
		func(s []chat.ConversationSummary) { snapshots = append(snapshots, s) })
	require.NoError(t, err)
	defer cancel()

	send(t, repo, "bob", "Bob", "alice", "Alice", "hi")

	require.GreaterOrEqual(t, len(snapshots), 2)
	assert.Empty(t, snapshots[0], "initial snapshot before any conversation exists")
	last := snapshots[len(snapshots)-1]
	require.Len(t, last, 1)
	assert.Equal(t, "bob", last[0].OtherParticipantID)
	assert.Equal(t, 1, last[0].UnreadCount)
}

func TestSubscribeDirectoryDeliversOnMessageInExistingConversation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	send(t, repo, "bob", "Bob", "alice", "Alice", "hi")

	list := NewListConversationsUseCase(repo, nil, testLogger())
	var snapshots [][]chat.ConversationSummary
	cancel, err := NewSubscribeDirectoryUseCase(list).Execute(ctx, "alice",
		func(s []chat.ConversationSummary) { snapshots = append(snapshots, s) })
	require.NoError(t, err)
	defer cancel()

	before := len(snapshots)
	require.GreaterOrEqual(t, before, 1)

	// a message into an already-known conversation must wake the directory,
	// not just brand-new conversations
	send(t, repo, "bob", "Bob", "alice", "Alice", "are you there?")

	require.Greater(t, len(snapshots), before)
	last := snapshots[len(snapshots)-1]
	require.Len(t, last, 1)
	assert.Equal(t, 2, last[0].UnreadCount)
	require.NotNil(t, last[0].LastMessage)
	assert.Equal(t, "are you there?", last[0].LastMessage.Text)
}

func TestSubscribeDirectoryRequiresSelf(t *testing.T) {
	repo := newTestRepo(t)
	list := NewListConversationsUseCase(repo, nil, testLogger())
	_, err := NewSubscribeDirectoryUseCase(list).Execute(context.Background(), "",
		func([]chat.ConversationSummary) {})
	assert.ErrorIs(t, err, chat.ErrMissingParticipant)
}

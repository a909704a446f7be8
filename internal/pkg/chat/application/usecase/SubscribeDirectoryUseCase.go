package usecase

import (
	"context"
	"fmt"

	store "go-dispatch/internal/infrastructure/docstore/port"
	chat "go-dispatch/internal/pkg/chat/application/domain"
)

// SubscribeDirectoryUseCase is the live variant of ListConversations: it
// re-derives the full summary list on every change to the conversation
// collection and delivers the complete recomputed, re-sorted list. Always
// consistent but coarse-grained; the SyncCoordinator is the cheaper
// incremental alternative.
type SubscribeDirectoryUseCase struct {
	List *ListConversationsUseCase
}

func NewSubscribeDirectoryUseCase(list *ListConversationsUseCase) *SubscribeDirectoryUseCase {
	return &SubscribeDirectoryUseCase{List: list}
}

// Execute registers onUpdate and returns its idempotent disposer.
func (uc *SubscribeDirectoryUseCase) Execute(ctx context.Context, selfID chat.ParticipantID, onUpdate func([]chat.ConversationSummary)) (store.CancelFunc, error) {
	if selfID == "" {
		return nil, chat.ErrMissingParticipant
	}
	cancel, err := uc.List.Repo.SubscribeConversations(ctx, selfID, func(convs []chat.Conversation) {
		summaries := uc.List.summarize(ctx, selfID, convs)
		chat.SortSummaries(summaries)
		onUpdate(summaries)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return cancel, nil
}

package usecase

import (
	"context"
	"fmt"

	store "go-dispatch/internal/infrastructure/docstore/port"
	chat "go-dispatch/internal/pkg/chat/application/domain"
	repository "go-dispatch/internal/pkg/chat/persistence/repository/port"
)

// SubscribeConversationInput identifies the conversation to watch.
type SubscribeConversationInput struct {
	UserA string
	UserB string
}

// SubscribeConversationUseCase opens a live query over one conversation's
// messages, ordered by sentAt ascending. Every change re-delivers the full
// ordered history, not a delta; subscribers that key expensive work off
// snapshot identity must diff with chat.MessagesEqual first, because
// snapshots can repeat business-identical payloads.
type SubscribeConversationUseCase struct {
	Repo repository.ChatRepository
}

func NewSubscribeConversationUseCase(repo repository.ChatRepository) *SubscribeConversationUseCase {
	return &SubscribeConversationUseCase{Repo: repo}
}

// Execute registers onUpdate and returns its disposer. The disposer is
// idempotent; once it returns, onUpdate will not be invoked again. Multiple
// concurrent subscribers to the same conversation are independent.
func (uc *SubscribeConversationUseCase) Execute(ctx context.Context, in SubscribeConversationInput, onUpdate func([]chat.Message)) (store.CancelFunc, error) {
	if in.UserA == "" || in.UserB == "" {
		return nil, chat.ErrMissingParticipant
	}
	cancel, err := uc.Repo.SubscribeMessages(ctx, chat.DeriveKey(in.UserA, in.UserB), onUpdate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return cancel, nil
}

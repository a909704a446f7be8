package usecase

import (
	"context"
	"fmt"

	chat "go-dispatch/internal/pkg/chat/application/domain"
	repository "go-dispatch/internal/pkg/chat/persistence/repository/port"
)

// GetMessagesInput identifies the conversation by its two participants.
type GetMessagesInput struct {
	UserA string
	UserB string
}

// GetMessagesUseCase fetches the full ordered history of one conversation,
// oldest first. One class per use case (own file).
type GetMessagesUseCase struct {
	Repo repository.ChatRepository
}

func NewGetMessagesUseCase(repo repository.ChatRepository) *GetMessagesUseCase {
	return &GetMessagesUseCase{Repo: repo}
}

func (uc *GetMessagesUseCase) Execute(ctx context.Context, in GetMessagesInput) ([]chat.Message, error) {
	if in.UserA == "" || in.UserB == "" {
		return nil, chat.ErrMissingParticipant
	}
	msgs, err := uc.Repo.MessagesBetween(ctx, in.UserA, in.UserB)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	store "go-dispatch/internal/infrastructure/docstore/port"
	chat "go-dispatch/internal/pkg/chat/application/domain"
	repository "go-dispatch/internal/pkg/chat/persistence/repository/port"
)

// MarkReadInput identifies one message within the conversation between the
// two users.
type MarkReadInput struct {
	UserA     string
	UserB     string
	MessageID string
}

// MarkReadUseCase flips a single message to read, stamping readAt exactly
// once. One class per use case (own file).
type MarkReadUseCase struct {
	Repo repository.ChatRepository
}

func NewMarkReadUseCase(repo repository.ChatRepository) *MarkReadUseCase {
	return &MarkReadUseCase{Repo: repo}
}

// Execute is idempotent: marking an already-read message is a no-op success,
// and readAt keeps its original value.
func (uc *MarkReadUseCase) Execute(ctx context.Context, in MarkReadInput) error {
	if in.UserA == "" || in.UserB == "" {
		return chat.ErrMissingParticipant
	}
	if in.MessageID == "" {
		return errors.New("messageId is required")
	}
	key := chat.DeriveKey(in.UserA, in.UserB)

	msg, err := uc.Repo.GetMessage(ctx, key, in.MessageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return chat.ErrUnknownConversation
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if msg.Read {
		return nil
	}

	// The early return above is only an optimization; the repository flip is
	// conditional on the message still being unread, which is what keeps two
	// racing calls from stamping readAt twice.
	if err := uc.Repo.MarkMessageRead(ctx, key, in.MessageID, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

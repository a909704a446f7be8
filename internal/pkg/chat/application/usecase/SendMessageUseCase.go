package usecase

import (
	"context"
	"fmt"
	"time"

	chat "go-dispatch/internal/pkg/chat/application/domain"
	repository "go-dispatch/internal/pkg/chat/persistence/repository/port"
)

// SendMessageInput carries the data needed to send a new message. Display
// names travel with the send because the store keeps them denormalized on
// each message document.
type SendMessageInput struct {
	SenderID            string
	SenderDisplayName   string
	ReceiverID          string
	ReceiverDisplayName string
	Text                string
}

// SendMessageUseCase appends one message to the conversation between sender
// and receiver, creating the conversation metadata on first contact.
// One class per use case (own file).
type SendMessageUseCase struct {
	Repo repository.ChatRepository
}

func NewSendMessageUseCase(repo repository.ChatRepository) *SendMessageUseCase {
	return &SendMessageUseCase{Repo: repo}
}

// Execute validates locally first: empty or whitespace-only text fails with
// chat.ErrEmptyMessage before any store call, so the caller can surface an
// inline validation message. Store failures come back wrapped in
// ErrPersistence and leave the caller free to retry with the same text.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*chat.Message, error) {
	msg, err := chat.NewMessage(chat.Message{
		SenderID:            in.SenderID,
		SenderDisplayName:   in.SenderDisplayName,
		ReceiverID:          in.ReceiverID,
		ReceiverDisplayName: in.ReceiverDisplayName,
		Text:                in.Text,
		SentAt:              time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	conv := chat.Conversation{
		Key: msg.ConversationKey,
		Participants: []chat.Participant{
			{ID: in.SenderID, DisplayName: in.SenderDisplayName},
			{ID: in.ReceiverID, DisplayName: in.ReceiverDisplayName},
		},
	}
	if err := uc.Repo.EnsureConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	id, err := uc.Repo.SaveMessage(ctx, *msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	msg.ID = id
	return msg, nil
}

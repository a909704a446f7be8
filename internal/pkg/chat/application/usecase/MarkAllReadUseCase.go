package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	chat "go-dispatch/internal/pkg/chat/application/domain"
	repository "go-dispatch/internal/pkg/chat/persistence/repository/port"
)

// MarkAllReadInput carries the reading user and the other participant.
type MarkAllReadInput struct {
	SelfID  string
	OtherID string
}

// MarkAllReadUseCase batch-marks every unread message addressed to SelfID in
// the conversation. It is designed to be called redundantly, e.g. on every
// incoming snapshot while a conversation is open: each individual mark is
// idempotent, and concurrent double-invocation cannot double-count because
// the unread query and the mark both key off the stored read flag.
type MarkAllReadUseCase struct {
	Repo   repository.ChatRepository
	Logger *log.Logger
}

func NewMarkAllReadUseCase(repo repository.ChatRepository, logger *log.Logger) *MarkAllReadUseCase {
	return &MarkAllReadUseCase{Repo: repo, Logger: logger}
}

// Execute returns ErrPersistence if the unread scan or any individual mark
// fails; partial progress is kept. Failing to mark read is non-fatal for the
// message log itself, so callers typically log and move on.
func (uc *MarkAllReadUseCase) Execute(ctx context.Context, in MarkAllReadInput) error {
	if in.SelfID == "" || in.OtherID == "" {
		return chat.ErrMissingParticipant
	}
	key := chat.DeriveKey(in.SelfID, in.OtherID)

	unread, err := uc.Repo.UnreadMessages(ctx, key, in.SelfID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	now := time.Now().UTC()
	var failed int
	for _, m := range unread {
		if err := uc.Repo.MarkMessageRead(ctx, key, m.ID, now); err != nil {
			failed++
			uc.Logger.Warn("mark read failed", "conversation", key, "message", m.ID, "err", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d marks failed", ErrPersistence, failed, len(unread))
	}
	return nil
}

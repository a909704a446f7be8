package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	store "go-dispatch/internal/infrastructure/docstore/port"
	chat "go-dispatch/internal/pkg/chat/application/domain"
	repository "go-dispatch/internal/pkg/chat/persistence/repository/port"
)

// SummaryHandler receives each published summary list. Every delivery is a
// fresh slice, so consumers can rely on reference comparison to detect
// updates.
type SummaryHandler func([]chat.ConversationSummary)

// SyncCoordinator keeps a user's conversation summary list incrementally
// current. It bootstraps once through the directory, then holds one narrow
// (latest-message-only) live subscription per known conversation; a change
// in conversation c touches only c's entry (new last message, one fresh
// unread-count query, re-sort, publish) instead of re-scanning the whole
// directory.
//
// Conversations that gain their first message after Start are not picked
// up: only conversations present at bootstrap get a subscription. Tracking
// membership changes would additionally require a live query on the
// conversation collection itself.
//
// One coordinator per caller; construct with NewSyncCoordinator and dispose
// via the CancelFunc returned by Start. All internal state is owned by the
// instance and mutated only under its mutex.
type SyncCoordinator struct {
	repo   repository.ChatRepository
	list   *ListConversationsUseCase
	logger *log.Logger

	mu       sync.Mutex
	selfID   chat.ParticipantID
	onUpdate SummaryHandler
	entries  []chat.ConversationSummary
	cancels  map[chat.ConversationKey]store.CancelFunc
	started  bool
	closed   bool
}

func NewSyncCoordinator(list *ListConversationsUseCase) *SyncCoordinator {
	return &SyncCoordinator{
		repo:    list.Repo,
		list:    list,
		logger:  list.Logger,
		cancels: make(map[chat.ConversationKey]store.CancelFunc),
	}
}

// Start bootstraps the summary list, delivers it, and begins incremental
// tracking. The returned CancelFunc tears down every per-conversation
// subscription; it is idempotent and safe to call from any goroutine.
func (sc *SyncCoordinator) Start(ctx context.Context, selfID chat.ParticipantID, onUpdate SummaryHandler) (store.CancelFunc, error) {
	if selfID == "" {
		return nil, chat.ErrMissingParticipant
	}
	if onUpdate == nil {
		return nil, errors.New("onUpdate handler is required")
	}

	sc.mu.Lock()
	if sc.started {
		sc.mu.Unlock()
		return nil, errors.New("sync coordinator already started; use one instance per caller")
	}
	sc.started = true
	sc.selfID = selfID
	sc.onUpdate = onUpdate
	sc.mu.Unlock()

	entries, err := sc.list.Execute(ctx, selfID)
	if err != nil {
		return nil, err
	}

	sc.mu.Lock()
	sc.entries = entries
	snapshot := sc.snapshotLocked()
	sc.mu.Unlock()
	onUpdate(snapshot)

	// Narrow subscriptions are opened outside the mutex: the store delivers
	// the current latest message synchronously on subscribe, which re-enters
	// onLatest.
	for _, e := range entries {
		key := e.ConversationKey
		cancel, err := sc.repo.SubscribeLatestMessage(ctx, key, func(latest *chat.Message) {
			sc.onLatest(ctx, key, latest)
		})
		if err != nil {
			// partial failure: this conversation stays static, the rest
			// remain live
			sc.logger.Warn("latest-message subscription failed", "conversation", key, "err", err)
			continue
		}
		sc.mu.Lock()
		if sc.closed {
			sc.mu.Unlock()
			cancel()
			return sc.Unsubscribe, nil
		}
		sc.cancels[key] = cancel
		sc.mu.Unlock()
	}
	return sc.Unsubscribe, nil
}

// onLatest is the narrow-subscription callback for one conversation. Each
// subscription delivers its snapshots in store order, and the mutex holds
// entry mutation and the unread recount together, so unread counts never
// regress out of order for the same conversation.
func (sc *SyncCoordinator) onLatest(ctx context.Context, key chat.ConversationKey, latest *chat.Message) {
	sc.mu.Lock()
	if sc.closed || latest == nil {
		sc.mu.Unlock()
		return
	}
	idx := -1
	for i := range sc.entries {
		if sc.entries[i].ConversationKey == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		sc.mu.Unlock()
		return
	}

	// Snapshot-based live queries repeat business-identical payloads (the
	// initial echo on subscribe, writes that only touch timestamps). Diff
	// before reacting.
	if cur := sc.entries[idx].LastMessage; cur != nil &&
		cur.ID == latest.ID && cur.Text == latest.Text &&
		cur.SenderID == latest.SenderID && cur.Read == latest.Read {
		sc.mu.Unlock()
		return
	}

	sc.entries[idx].LastMessage = latest

	unread, err := sc.repo.CountUnread(ctx, key, sc.selfID)
	if err != nil {
		// keep the previous count rather than zeroing it; the next change
		// or a directory re-list will correct it
		sc.logger.Warn("unread recount failed", "conversation", key, "err", err)
	} else {
		sc.entries[idx].UnreadCount = unread
	}

	chat.SortSummaries(sc.entries)
	snapshot := sc.snapshotLocked()
	handler := sc.onUpdate
	sc.mu.Unlock()

	handler(snapshot)
}

// Unsubscribe closes every per-conversation subscription. Idempotent; after
// it returns no further summary deliveries reach the handler.
func (sc *SyncCoordinator) Unsubscribe() {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return
	}
	sc.closed = true
	cancels := make([]store.CancelFunc, 0, len(sc.cancels))
	for _, c := range sc.cancels {
		cancels = append(cancels, c)
	}
	sc.cancels = nil
	sc.mu.Unlock()

	for _, c := range cancels {
		c()
	}
}

func (sc *SyncCoordinator) snapshotLocked() []chat.ConversationSummary {
	snapshot := make([]chat.ConversationSummary, len(sc.entries))
	copy(snapshot, sc.entries)
	return snapshot
}

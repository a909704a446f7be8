package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	cacheport "go-dispatch/internal/infrastructure/cache/port"
	qport "go-dispatch/internal/infrastructure/queue/port"
	chat "go-dispatch/internal/pkg/chat/application/domain"
	"go-dispatch/internal/pkg/chat/application/usecase"
	repository "go-dispatch/internal/pkg/chat/persistence/repository/port"
)

// ReconcileUnreadTaskType is the queue task name for verifying one user's
// summary list against the authoritative message log. Unread counts are a
// cache over the log, so drift (a missed snapshot, a stale cached profile)
// is always repairable by recomputation.
const ReconcileUnreadTaskType = "chat:reconcile_unread"

// ReconcileUnreadTaskPayload is the JSON payload transported via the queue.
type ReconcileUnreadTaskPayload struct {
	UserID string `json:"userId"`
}

// EnqueueReconcileUnread schedules a reconciliation for userID. UniqueTTL
// collapses bursts: redundant requests within the window become one task.
func EnqueueReconcileUnread(ctx context.Context, client qport.Client, userID string) (string, error) {
	b, err := json.Marshal(ReconcileUnreadTaskPayload{UserID: userID})
	if err != nil {
		return "", err
	}
	return client.Enqueue(ctx, qport.Task{Type: ReconcileUnreadTaskType, Payload: b},
		qport.EnqueueOption{Queue: "chat", MaxRetry: 5, UniqueTTL: time.Minute})
}

// RegisterReconcileUnreadTask binds the task handler to the provided server.
// The handler first evicts cached participant profiles whose display name
// drifted from the store metadata, then recomputes every summary for the
// user, which rewrites the evicted entries with fresh values. The drift
// check has to run before the listing: the listing's write-through would
// otherwise overwrite the very entries being inspected.
func RegisterReconcileUnreadTask(srv qport.Server, repo repository.ChatRepository, cache cacheport.Cache, logger *log.Logger) {
	srv.Register(ReconcileUnreadTaskType, func(ctx context.Context, t qport.Task) error {
		var p ReconcileUnreadTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: retrying cannot help
			logger.Error("reconcile payload undecodable", "err", err)
			return nil
		}
		if p.UserID == "" {
			return nil
		}

		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		var stale []string
		if cache != nil {
			convs, err := repo.ConversationsFor(ctx, p.UserID)
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", p.UserID, err)
			}
			stale = staleProfileKeys(ctx, cache, p.UserID, convs)
			if len(stale) > 0 {
				if _, err := cache.Del(ctx, stale...); err != nil {
					logger.Warn("stale profile eviction failed", "user", p.UserID, "err", err)
				}
			}
		}

		list := usecase.NewListConversationsUseCase(repo, cache, logger)
		summaries, err := list.Execute(ctx, p.UserID)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", p.UserID, err)
		}

		total := 0
		for _, s := range summaries {
			total += s.UnreadCount
		}
		logger.Info("reconciled summaries", "user", p.UserID,
			"conversations", len(summaries), "unread", total, "evicted", len(stale))
		return nil
	})
}

// staleProfileKeys returns the cache keys whose stored display name no
// longer matches the conversation metadata in the store.
func staleProfileKeys(ctx context.Context, cache cacheport.Cache, selfID string, convs []chat.Conversation) []string {
	var stale []string
	for _, c := range convs {
		other, ok := c.Other(selfID)
		if !ok {
			continue
		}
		key := usecase.ProfileCacheKey(other.ID)
		cached, err := cache.Get(ctx, key)
		if err != nil {
			continue
		}
		if cached != other.DisplayName {
			stale = append(stale, key)
		}
	}
	return stale
}

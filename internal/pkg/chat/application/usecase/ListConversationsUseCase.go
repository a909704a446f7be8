package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	cacheport "go-dispatch/internal/infrastructure/cache/port"
	chat "go-dispatch/internal/pkg/chat/application/domain"
	repository "go-dispatch/internal/pkg/chat/persistence/repository/port"
)

// profileTTL bounds how long a cached display name may serve as a fallback
// for conversations with incomplete participant metadata.
const profileTTL = time.Hour

// ProfileCacheKey is the cache key memoizing a participant's display name.
func ProfileCacheKey(id chat.ParticipantID) string {
	return "chat:profile:" + id
}

// ListConversationsUseCase computes, for one user, the full set of
// conversations they participate in, each annotated with its latest message
// and unread count. One class per use case (own file).
//
// The Cache is optional and only memoizes display names; every count and
// ordering decision comes from the store, never from the cache.
type ListConversationsUseCase struct {
	Repo   repository.ChatRepository
	Cache  cacheport.Cache
	Logger *log.Logger
}

func NewListConversationsUseCase(repo repository.ChatRepository, cache cacheport.Cache, logger *log.Logger) *ListConversationsUseCase {
	return &ListConversationsUseCase{Repo: repo, Cache: cache, Logger: logger}
}

// Execute returns summaries sorted by last-message time, most recent first.
// A conversation is omitted when it has no messages yet, when its metadata
// is malformed beyond repair, or when its own summary computation fails:
// one broken conversation must not blank the whole list.
func (uc *ListConversationsUseCase) Execute(ctx context.Context, selfID chat.ParticipantID) ([]chat.ConversationSummary, error) {
	if selfID == "" {
		return nil, chat.ErrMissingParticipant
	}
	convs, err := uc.Repo.ConversationsFor(ctx, selfID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	summaries := uc.summarize(ctx, selfID, convs)
	chat.SortSummaries(summaries)
	return summaries, nil
}

// summarize builds one summary per usable conversation. Shared with the
// directory subscription and the sync coordinator bootstrap.
func (uc *ListConversationsUseCase) summarize(ctx context.Context, selfID chat.ParticipantID, convs []chat.Conversation) []chat.ConversationSummary {
	summaries := make([]chat.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		other, ok := uc.resolveOther(ctx, selfID, conv)
		if !ok {
			uc.Logger.Debug("skipping conversation with unusable metadata", "conversation", conv.Key)
			continue
		}

		latest, err := uc.Repo.LatestMessage(ctx, conv.Key)
		if err != nil {
			uc.Logger.Warn("skipping conversation, latest message fetch failed", "conversation", conv.Key, "err", err)
			continue
		}
		if latest == nil {
			// no messages: not yet a real conversation
			continue
		}

		unread, err := uc.Repo.CountUnread(ctx, conv.Key, selfID)
		if err != nil {
			uc.Logger.Warn("skipping conversation, unread count failed", "conversation", conv.Key, "err", err)
			continue
		}

		uc.cacheProfile(ctx, other)
		summaries = append(summaries, chat.ConversationSummary{
			ConversationKey:      conv.Key,
			OtherParticipantID:   other.ID,
			OtherParticipantName: other.DisplayName,
			LastMessage:          latest,
			UnreadCount:          unread,
		})
	}
	return summaries
}

// resolveOther returns the non-self participant. When the metadata carries
// the id but lost the display name, a cached profile may still rescue the
// entry; otherwise the conversation is skipped.
func (uc *ListConversationsUseCase) resolveOther(ctx context.Context, selfID chat.ParticipantID, conv chat.Conversation) (chat.Participant, bool) {
	if other, ok := conv.Other(selfID); ok {
		return other, true
	}
	if !conv.HasParticipant(selfID) || uc.Cache == nil {
		return chat.Participant{}, false
	}
	var otherID chat.ParticipantID
	for _, p := range conv.Participants {
		if p.ID != "" && p.ID != selfID {
			otherID = p.ID
			break
		}
	}
	if otherID == "" {
		return chat.Participant{}, false
	}
	name, err := uc.Cache.Get(ctx, ProfileCacheKey(otherID))
	if err != nil || name == "" {
		return chat.Participant{}, false
	}
	return chat.Participant{ID: otherID, DisplayName: name}, true
}

func (uc *ListConversationsUseCase) cacheProfile(ctx context.Context, p chat.Participant) {
	if uc.Cache == nil {
		return
	}
	// best effort: a cache outage never degrades the directory
	if err := uc.Cache.Set(ctx, ProfileCacheKey(p.ID), p.DisplayName, profileTTL); err != nil {
		uc.Logger.Debug("profile cache write failed", "participant", p.ID, "err", err)
	}
}

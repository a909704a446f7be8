package chat

import "sort"

// ConversationSummary is the derived per-conversation view used to render a
// conversation list without loading full history. It is never persisted:
// UnreadCount is a cache, always recomputable from the message log.
type ConversationSummary struct {
	ConversationKey      ConversationKey `json:"conversationKey"`
	OtherParticipantID   ParticipantID   `json:"otherParticipantId"`
	OtherParticipantName string          `json:"otherParticipantName"`
	LastMessage          *Message        `json:"lastMessage,omitempty"`
	UnreadCount          int             `json:"unreadCount"`
}

// SortSummaries orders the list by last-message time, most recent first.
// Entries without a last message sort to the end; the sort is stable so two
// conversations updated in the same instant keep their relative order.
func SortSummaries(summaries []ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		li, lj := summaries[i].LastMessage, summaries[j].LastMessage
		if li == nil || lj == nil {
			return lj == nil && li != nil
		}
		return li.SentAt.After(lj.SentAt)
	})
}

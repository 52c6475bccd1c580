package domain

import (
	"sort"
	"time"
)

// MessageReaction: у актора не больше одной реакции на сообщение, новая заменяет прежнюю.
type MessageReaction struct {
	MessageID int64     `json:"message_id"`
	Actor     Actor     `json:"actor"`
	Reaction  string    `json:"reaction"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *MessageReaction) Key() DeliveryKey {
	return NewDeliveryKey(r.MessageID, r.Actor)
}

// ReactionSummary: сводка реакций в том виде, в котором ее видит конкретный актор.
type ReactionSummary struct {
	Count        int            `json:"count"`
	Breakdown    map[string]int `json:"breakdown"`
	HasReacted   bool           `json:"has_reacted"`
	UserReaction *string        `json:"user_reaction"`
}

func (m *Message) ReactionBy(actor Actor) *MessageReaction {
	for _, r := range m.Reactions {
		if r.Actor.Equal(actor) {
			return r
		}
	}
	return nil
}

func (m *Message) ReactionsBreakdown() map[string]int {
	breakdown := make(map[string]int)
	for _, r := range m.Reactions {
		breakdown[r.Reaction]++
	}
	return breakdown
}

func (m *Message) ReactionSummaryFor(viewer Actor) ReactionSummary {
	summary := ReactionSummary{
		Count:     len(m.Reactions),
		Breakdown: m.ReactionsBreakdown(),
	}
	if r := m.ReactionBy(viewer); r != nil {
		reaction := r.Reaction
		summary.HasReacted = true
		summary.UserReaction = &reaction
	}
	return summary
}

// MessageBookmark: сообщение, сохраненное актором, опционально в коллекцию.
type MessageBookmark struct {
	MessageID    int64                  `json:"message_id"`
	Actor        Actor                  `json:"actor"`
	CollectionID *int64                 `json:"collection_id,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

func (b *MessageBookmark) Key() DeliveryKey {
	return NewDeliveryKey(b.MessageID, b.Actor)
}

type BookmarkCollection struct {
	ID        int64     `json:"id"`
	Owner     Actor     `json:"owner"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// SortBookmarks: новые сверху, при равенстве по убыванию ID сообщения.
func SortBookmarks(bookmarks []*MessageBookmark) {
	sort.SliceStable(bookmarks, func(i, j int) bool {
		if bookmarks[i].CreatedAt.Equal(bookmarks[j].CreatedAt) {
			return bookmarks[i].MessageID > bookmarks[j].MessageID
		}
		return bookmarks[i].CreatedAt.After(bookmarks[j].CreatedAt)
	})
}

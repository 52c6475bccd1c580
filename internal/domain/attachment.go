package domain

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

type MessageAttachment struct {
	ID            int64                  `json:"id"`
	MessageID     int64                  `json:"message_id"`
	Type          AttachmentType         `json:"type"`
	Disk          string                 `json:"disk"`
	Path          string                 `json:"-"`
	Filename      string                 `json:"filename"`
	MimeType      string                 `json:"mime_type"`
	Size          int64                  `json:"size"`
	Duration      *int                   `json:"duration,omitempty"`
	Width         *int                   `json:"width,omitempty"`
	Height        *int                   `json:"height,omitempty"`
	ThumbnailPath *string                `json:"-"`
	Blurhash      *string                `json:"blurhash,omitempty"`
	Caption       *string                `json:"caption,omitempty"`
	ViewOnce      bool                   `json:"view_once"`
	ViewedAt      *time.Time             `json:"viewed_at,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Order         int                    `json:"order"`
	CreatedAt     time.Time              `json:"created_at"`
}

// IsConsumed сообщает, что одноразовое вложение уже просмотрено.
func (a *MessageAttachment) IsConsumed() bool {
	return a.ViewOnce && a.ViewedAt != nil
}

func (a *MessageAttachment) IsAccessible() bool {
	return !a.IsConsumed()
}

func (a *MessageAttachment) HumanSize() string {
	if a.Size < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(a.Size))
}

// HumanDuration форматирует длительность как m:ss.
func (a *MessageAttachment) HumanDuration() string {
	if a.Duration == nil {
		return ""
	}
	d := *a.Duration
	return fmt.Sprintf("%d:%02d", d/60, d%60)
}

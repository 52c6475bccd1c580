package domain

import "time"

// DeliveryKey: составной ключ квитанции и пометки об удалении.
type DeliveryKey struct {
	MessageID int64
	ActorType string
	ActorID   string
}

func NewDeliveryKey(messageID int64, actor Actor) DeliveryKey {
	return DeliveryKey{MessageID: messageID, ActorType: actor.Type, ActorID: actor.ID}
}

type MessageDelivery struct {
	MessageID   int64      `json:"message_id"`
	Actor       Actor      `json:"actor"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

func (d *MessageDelivery) Key() DeliveryKey {
	return NewDeliveryKey(d.MessageID, d.Actor)
}

// MarkDelivered выставляет delivered_at, если он еще не установлен.
func (d *MessageDelivery) MarkDelivered(now time.Time) bool {
	if d.DeliveredAt != nil {
		return false
	}
	d.DeliveredAt = &now
	return true
}

// MarkRead выставляет read_at (никогда не откатывая его назад) и, при необходимости, delivered_at.
func (d *MessageDelivery) MarkRead(now time.Time) bool {
	changed := d.MarkDelivered(now)
	if d.ReadAt == nil || now.After(*d.ReadAt) {
		d.ReadAt = &now
		changed = true
	}
	return changed
}

func (d *MessageDelivery) IsDelivered() bool {
	return d.DeliveredAt != nil
}

func (d *MessageDelivery) IsRead() bool {
	return d.ReadAt != nil
}

type MessageDeletion struct {
	MessageID int64     `json:"message_id"`
	Actor     Actor     `json:"actor"`
	DeletedAt time.Time `json:"deleted_at"`
}

func (d *MessageDeletion) Key() DeliveryKey {
	return NewDeliveryKey(d.MessageID, d.Actor)
}

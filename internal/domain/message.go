package domain

import (
	"sort"
	"time"
)

type Message struct {
	ID               int64                  `json:"id"`
	ThreadID         int64                  `json:"thread_id"`
	Sender           Actor                  `json:"sender"`
	Author           *Actor                 `json:"author,omitempty"`
	Type             MessageType            `json:"type"`
	Payload          map[string]interface{} `json:"payload"`
	Encrypted        bool                   `json:"encrypted"`
	EncryptionDriver *string                `json:"encryption_driver,omitempty"`
	DeletedAt        *time.Time             `json:"deleted_at,omitempty"`
	DeletedBy        *Actor                 `json:"deleted_by,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`

	Versions    []*MessageVersion    `json:"versions,omitempty"`
	Deliveries  []*MessageDelivery   `json:"deliveries,omitempty"`
	Deletions   []*MessageDeletion   `json:"-"`
	Attachments []*MessageAttachment `json:"attachments,omitempty"`
	Reactions   []*MessageReaction   `json:"-"`
}

type MessageVersion struct {
	ID               int64                  `json:"id"`
	MessageID        int64                  `json:"message_id"`
	Payload          map[string]interface{} `json:"payload"`
	Encrypted        bool                   `json:"encrypted"`
	EncryptionDriver *string                `json:"encryption_driver,omitempty"`
	EditedBy         Actor                  `json:"edited_by"`
	CreatedAt        time.Time              `json:"created_at"`
}

// LatestVersion возвращает последнюю по времени версию (при равенстве ту, у которой больше ID).
func (m *Message) LatestVersion() *MessageVersion {
	if len(m.Versions) == 0 {
		return nil
	}
	versions := make([]*MessageVersion, len(m.Versions))
	copy(versions, m.Versions)
	sort.SliceStable(versions, func(i, j int) bool {
		if versions[i].CreatedAt.Equal(versions[j].CreatedAt) {
			return versions[i].ID < versions[j].ID
		}
		return versions[i].CreatedAt.Before(versions[j].CreatedAt)
	})
	return versions[len(versions)-1]
}

// CurrentPayload: payload последней версии, либо исходный payload, если правок не было.
func (m *Message) CurrentPayload() map[string]interface{} {
	if v := m.LatestVersion(); v != nil {
		return v.Payload
	}
	return m.Payload
}

// CurrentEncryption возвращает признак шифрования и драйвер для CurrentPayload.
func (m *Message) CurrentEncryption() (bool, *string) {
	if v := m.LatestVersion(); v != nil {
		return v.Encrypted, v.EncryptionDriver
	}
	return m.Encrypted, m.EncryptionDriver
}

func (m *Message) IsEdited() bool {
	return len(m.Versions) > 0
}

func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

func (m *Message) IsDeletedFor(actor Actor) bool {
	for _, d := range m.Deletions {
		if d.Actor.Equal(actor) {
			return true
		}
	}
	return false
}

func (m *Message) IsSentBy(actor Actor) bool {
	return m.Sender.Equal(actor)
}

func (m *Message) SoftDelete(by Actor, now time.Time) {
	m.DeletedAt = &now
	m.DeletedBy = &by
}

func (m *Message) Restore() {
	m.DeletedAt = nil
	m.DeletedBy = nil
}

func (m *Message) DeliveryFor(actor Actor) *MessageDelivery {
	for _, d := range m.Deliveries {
		if d.Actor.Equal(actor) {
			return d
		}
	}
	return nil
}

func (m *Message) IsReadBy(actor Actor) bool {
	d := m.DeliveryFor(actor)
	return d != nil && d.ReadAt != nil
}

func (m *Message) IsDeliveredTo(actor Actor) bool {
	d := m.DeliveryFor(actor)
	return d != nil && d.DeliveredAt != nil
}

// Preview: короткое текстовое представление сообщения для списков тредов.
func (m *Message) Preview() string {
	if encrypted, _ := m.CurrentEncryption(); !encrypted {
		if content, ok := m.CurrentPayload()["content"].(string); ok {
			return content
		}
	}
	return "[" + string(m.Type) + "]"
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventThreadCreated           EventType = "thread.created"
	EventThreadUpdated           EventType = "thread.updated"
	EventThreadDeleted           EventType = "thread.deleted"
	EventParticipantAdded        EventType = "participant.added"
	EventParticipantRemoved      EventType = "participant.removed"
	EventParticipantRoleUpdated  EventType = "participant.role_updated"
	EventMessageSent             EventType = "message.sent"
	EventMessageEdited           EventType = "message.edited"
	EventMessageDelivered        EventType = "message.delivered"
	EventMessageRead             EventType = "message.read"
	EventMessageDeleted          EventType = "message.deleted"
	EventMessageDeletedForActor  EventType = "message.deleted_for_actor"
	EventMessageRestored         EventType = "message.restored"
	EventMessageRestoredForActor EventType = "message.restored_for_actor"
	EventMessageReacted          EventType = "message.reacted"
	EventMessageUnreacted        EventType = "message.unreacted"
	EventMessageBookmarked       EventType = "message.bookmarked"
	EventMessageUnbookmarked     EventType = "message.unbookmarked"
	EventTypingStarted           EventType = "typing.started"
	EventTypingStopped           EventType = "typing.stopped"
	EventPresenceChanged         EventType = "presence.changed"
)

// Event: доменное событие, которое передается во внешний sink для трансляции.
type Event struct {
	ID          uuid.UUID              `json:"id"`
	Type        EventType              `json:"type"`
	OccurredAt  time.Time              `json:"occurred_at"`
	ThreadID    int64                  `json:"thread_id,omitempty"`
	MessageID   int64                  `json:"message_id,omitempty"`
	Actor       *Actor                 `json:"actor,omitempty"`
	Thread      *Thread                `json:"thread,omitempty"`
	Participant *ThreadParticipant     `json:"participant,omitempty"`
	Message     *Message               `json:"message,omitempty"`
	Delivery    *MessageDelivery       `json:"delivery,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

func NewEvent(eventType EventType, occurredAt time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: occurredAt,
	}
}

// Private: событие касается только своего актора и не рассылается остальным участникам треда.
func (e Event) Private() bool {
	if e.Actor == nil {
		return false
	}
	switch e.Type {
	case EventMessageDeletedForActor, EventMessageRestoredForActor, EventMessageBookmarked, EventMessageUnbookmarked:
		return true
	}
	return false
}

func (e Event) WithActor(actor Actor) Event {
	e.Actor = &actor
	return e
}

func (e Event) WithThread(thread *Thread) Event {
	e.Thread = thread
	if thread != nil {
		e.ThreadID = thread.ID
	}
	return e
}

func (e Event) WithParticipant(p *ThreadParticipant) Event {
	e.Participant = p
	if p != nil {
		e.ThreadID = p.ThreadID
	}
	return e
}

func (e Event) WithMessage(m *Message) Event {
	e.Message = m
	if m != nil {
		e.MessageID = m.ID
		e.ThreadID = m.ThreadID
	}
	return e
}

func (e Event) WithDelivery(d *MessageDelivery) Event {
	e.Delivery = d
	return e
}

func (e Event) WithData(key string, value interface{}) Event {
	data := make(map[string]interface{}, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	e.Data = data
	return e
}

// Presence-статусы актора.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
	PresenceAway    = "away"
)

type Presence struct {
	Actor    Actor      `json:"actor"`
	Status   string     `json:"status"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

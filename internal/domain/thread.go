package domain

import "time"

type Thread struct {
	ID          int64                  `json:"id"`
	Type        ThreadType             `json:"type"`
	Name        *string                `json:"name,omitempty"`
	Hash        *string                `json:"hash,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	IsLocked    bool                   `json:"is_locked"`
	Permissions map[string]interface{} `json:"permissions,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`

	Participants []*ThreadParticipant `json:"participants,omitempty"`
}

// Participant возвращает участника (в том числе покинувшего тред) или nil.
func (t *Thread) Participant(actor Actor) *ThreadParticipant {
	for _, p := range t.Participants {
		if p.Actor.Equal(actor) {
			return p
		}
	}
	return nil
}

// ActiveParticipant возвращает участника только если он не покинул тред.
func (t *Thread) ActiveParticipant(actor Actor) *ThreadParticipant {
	if p := t.Participant(actor); p != nil && p.IsActive() {
		return p
	}
	return nil
}

func (t *Thread) HasParticipant(actor Actor) bool {
	return t.Participant(actor) != nil
}

func (t *Thread) HasActiveParticipant(actor Actor) bool {
	return t.ActiveParticipant(actor) != nil
}

func (t *Thread) ActiveParticipants() []*ThreadParticipant {
	var active []*ThreadParticipant
	for _, p := range t.Participants {
		if p.IsActive() {
			active = append(active, p)
		}
	}
	return active
}

func (t *Thread) Owner() *ThreadParticipant {
	for _, p := range t.Participants {
		if p.IsActive() && p.Role == RoleOwner {
			return p
		}
	}
	return nil
}

// CanSendMessage: в незаблокированный тред может писать кто угодно (членство проверяет политика),
// в заблокированный только активные админы и владелец.
func (t *Thread) CanSendMessage(actor Actor) bool {
	if !t.IsLocked {
		return true
	}
	p := t.ActiveParticipant(actor)
	return p != nil && p.Role.CanManageParticipants()
}

func (t *Thread) Lock() {
	t.IsLocked = true
}

func (t *Thread) Unlock() {
	t.IsLocked = false
}

func (t *Thread) IsDirect() bool {
	return t.Type == ThreadTypeDirect
}

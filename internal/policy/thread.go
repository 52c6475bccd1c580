// Package policy содержит чистые предикаты авторизации над уже загруженными сущностями.
package policy

import "chat_engine/internal/domain"

type ThreadPolicy struct{}

func (ThreadPolicy) View(actor domain.Actor, thread *domain.Thread) bool {
	return thread.HasParticipant(actor)
}

func (ThreadPolicy) SendMessage(actor domain.Actor, thread *domain.Thread) bool {
	return thread.HasActiveParticipant(actor)
}

func (p ThreadPolicy) AddParticipant(actor domain.Actor, thread *domain.Thread) bool {
	return p.canManage(actor, thread)
}

func (p ThreadPolicy) RemoveParticipant(actor domain.Actor, thread *domain.Thread) bool {
	return p.canManage(actor, thread)
}

func (p ThreadPolicy) Update(actor domain.Actor, thread *domain.Thread) bool {
	return p.canManage(actor, thread)
}

func (ThreadPolicy) Delete(actor domain.Actor, thread *domain.Thread) bool {
	participant := thread.ActiveParticipant(actor)
	return participant != nil && participant.CanDeleteThread()
}

func (ThreadPolicy) Leave(actor domain.Actor, thread *domain.Thread) bool {
	return thread.HasActiveParticipant(actor)
}

func (ThreadPolicy) canManage(actor domain.Actor, thread *domain.Thread) bool {
	participant := thread.ActiveParticipant(actor)
	return participant != nil && participant.CanManageParticipants()
}

package policy

import "chat_engine/internal/domain"

// MessagePolicy ожидает тред с загруженными участниками и сообщение с загруженными удалениями.
type MessagePolicy struct{}

// View: удаленное глобально или для актора сообщение не видно; участник, покинувший тред,
// продолжает видеть историю.
func (MessagePolicy) View(actor domain.Actor, message *domain.Message, thread *domain.Thread) bool {
	if message.IsDeleted() || message.IsDeletedFor(actor) {
		return false
	}
	return thread.HasParticipant(actor)
}

func (MessagePolicy) Edit(actor domain.Actor, message *domain.Message) bool {
	if message.IsDeleted() {
		return false
	}
	return message.IsSentBy(actor)
}

func (MessagePolicy) Delete(actor domain.Actor, message *domain.Message, thread *domain.Thread) bool {
	if message.IsSentBy(actor) {
		return true
	}
	participant := thread.ActiveParticipant(actor)
	return participant != nil && participant.CanManageParticipants()
}

func (MessagePolicy) DeleteForSelf(actor domain.Actor, thread *domain.Thread) bool {
	return thread.HasParticipant(actor)
}

func (p MessagePolicy) React(actor domain.Actor, message *domain.Message, thread *domain.Thread) bool {
	return p.View(actor, message, thread)
}

// Bookmark: сохранить в закладки можно только видимое актору сообщение.
func (p MessagePolicy) Bookmark(actor domain.Actor, message *domain.Message, thread *domain.Thread) bool {
	return p.View(actor, message, thread)
}

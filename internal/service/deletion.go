package service

import (
	"context"

	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"
)

type DeletionService interface {
	// DeleteForActor скрывает сообщение только для actor. Повторный вызов не создает дубликатов.
	DeleteForActor(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageDeletion, error)
	// DeleteGlobally удаляет сообщение для всех согласно режиму удаления.
	DeleteGlobally(ctx context.Context, messageID int64, actor domain.Actor) error
	HardDelete(ctx context.Context, messageID int64, actor domain.Actor) error
	RestoreForActor(ctx context.Context, messageID int64, actor domain.Actor) (bool, error)
	RestoreGlobally(ctx context.Context, messageID int64, actor domain.Actor) (bool, error)
}

type deletionService struct {
	*base
}

func NewDeletionService(b *base) DeletionService {
	return &deletionService{base: b}
}

func (s *deletionService) DeleteForActor(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageDeletion, error) {
	message, thread, err := s.loadMessage(ctx, s.store, messageID)
	if err != nil {
		return nil, err
	}
	if !s.messages.DeleteForSelf(actor, thread) {
		return nil, apperrors.Forbidden("actor is not a participant of this thread")
	}

	deletion, created, err := s.store.Deletions().Create(ctx, &domain.MessageDeletion{
		MessageID: message.ID,
		Actor:     actor,
		DeletedAt: s.now(),
	})
	if err != nil {
		s.log.Error("Failed to delete message for actor", "error", err, "message_id", messageID, "actor", actor.String())
		return nil, err
	}
	if created {
		s.emit(ctx, s.event(domain.EventMessageDeletedForActor).WithMessage(message).WithActor(actor))
	}
	return deletion, nil
}

func (s *deletionService) DeleteGlobally(ctx context.Context, messageID int64, actor domain.Actor) error {
	message, thread, err := s.loadMessage(ctx, s.store, messageID)
	if err != nil {
		return err
	}
	if !s.messages.Delete(actor, message, thread) {
		return apperrors.Forbidden("only the sender or thread admins can delete this message")
	}

	if s.deletionMode() == domain.DeletionModeHard {
		return s.hardDelete(ctx, message, actor)
	}
	if message.IsDeleted() {
		return nil
	}

	message.SoftDelete(actor, s.now())
	if err := s.store.Messages().SetDeleted(ctx, message.ID, message.DeletedAt, message.DeletedBy); err != nil {
		s.log.Error("Failed to soft delete message", "error", err, "message_id", messageID)
		return err
	}

	s.emit(ctx, s.event(domain.EventMessageDeleted).WithMessage(message).WithActor(actor).WithData("mode", string(domain.DeletionModeSoft)))
	return nil
}

func (s *deletionService) HardDelete(ctx context.Context, messageID int64, actor domain.Actor) error {
	mode := s.deletionMode()
	if !mode.AllowsHardDelete() {
		return apperrors.Conflict("hard delete is not allowed in " + string(mode) + " deletion mode")
	}
	message, thread, err := s.loadMessage(ctx, s.store, messageID)
	if err != nil {
		return err
	}
	if !s.messages.Delete(actor, message, thread) {
		return apperrors.Forbidden("only the sender or thread admins can delete this message")
	}
	return s.hardDelete(ctx, message, actor)
}

// hardDelete: событие несет снимок сообщения, загруженный до удаления.
func (s *deletionService) hardDelete(ctx context.Context, message *domain.Message, actor domain.Actor) error {
	if err := s.store.Messages().Delete(ctx, message.ID); err != nil {
		s.log.Error("Failed to hard delete message", "error", err, "message_id", message.ID)
		return err
	}
	s.removeFiles(ctx, message.Attachments)

	s.emit(ctx, s.event(domain.EventMessageDeleted).WithMessage(message).WithActor(actor).WithData("mode", string(domain.DeletionModeHard)))

	s.log.Info("Message hard deleted", "message_id", message.ID, "actor", actor.String())

	return nil
}

func (s *deletionService) RestoreForActor(ctx context.Context, messageID int64, actor domain.Actor) (bool, error) {
	message, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return false, err
	}
	removed, err := s.store.Deletions().Delete(ctx, messageID, actor)
	if err != nil {
		s.log.Error("Failed to restore message for actor", "error", err, "message_id", messageID, "actor", actor.String())
		return false, err
	}
	if removed {
		s.emit(ctx, s.event(domain.EventMessageRestoredForActor).WithMessage(message).WithActor(actor))
	}
	return removed, nil
}

func (s *deletionService) RestoreGlobally(ctx context.Context, messageID int64, actor domain.Actor) (bool, error) {
	message, thread, err := s.loadMessage(ctx, s.store, messageID)
	if err != nil {
		return false, err
	}
	if !message.IsDeleted() {
		return false, nil
	}
	if !s.messages.Delete(actor, message, thread) {
		return false, apperrors.Forbidden("only the sender or thread admins can restore this message")
	}

	message.Restore()
	if err := s.store.Messages().SetDeleted(ctx, message.ID, nil, nil); err != nil {
		s.log.Error("Failed to restore message", "error", err, "message_id", messageID)
		return false, err
	}

	s.emit(ctx, s.event(domain.EventMessageRestored).WithMessage(message).WithActor(actor))
	return true, nil
}

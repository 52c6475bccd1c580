package service

import (
	"context"
	"time"

	"chat_engine/internal/domain"
	"chat_engine/internal/repository"
	apperrors "chat_engine/pkg/errors"
)

type DeliveryService interface {
	MarkDelivered(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageDelivery, error)
	MarkRead(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageDelivery, error)
	// MarkThreadAsRead отмечает все еще не прочитанные актором чужие неудаленные сообщения
	// треда и возвращает их количество.
	MarkThreadAsRead(ctx context.Context, threadID int64, actor domain.Actor) (int, error)
	MarkThreadAsDelivered(ctx context.Context, threadID int64, actor domain.Actor) (int, error)
}

type deliveryService struct {
	*base
}

func NewDeliveryService(b *base) DeliveryService {
	return &deliveryService{base: b}
}

func (s *deliveryService) enabled(kind repository.MarkKind) error {
	switch kind {
	case repository.MarkRead:
		if !s.cfg.Delivery.TrackReads {
			return apperrors.Unsupported("read tracking is disabled")
		}
	default:
		if !s.cfg.Delivery.TrackDeliveries {
			return apperrors.Unsupported("delivery tracking is disabled")
		}
	}
	return nil
}

func eventForMark(kind repository.MarkKind) domain.EventType {
	if kind == repository.MarkRead {
		return domain.EventMessageRead
	}
	return domain.EventMessageDelivered
}

func mark(ctx context.Context, store repository.Store, kind repository.MarkKind, messageID int64, actor domain.Actor, at time.Time) (*domain.MessageDelivery, error) {
	if kind == repository.MarkRead {
		return store.Deliveries().MarkRead(ctx, messageID, actor, at)
	}
	return store.Deliveries().MarkDelivered(ctx, messageID, actor, at)
}

func (s *deliveryService) MarkDelivered(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageDelivery, error) {
	return s.markOne(ctx, repository.MarkDelivered, messageID, actor)
}

func (s *deliveryService) MarkRead(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageDelivery, error) {
	return s.markOne(ctx, repository.MarkRead, messageID, actor)
}

func (s *deliveryService) markOne(ctx context.Context, kind repository.MarkKind, messageID int64, actor domain.Actor) (*domain.MessageDelivery, error) {
	if err := s.enabled(kind); err != nil {
		return nil, err
	}
	message, thread, err := s.loadMessage(ctx, s.store, messageID)
	if err != nil {
		return nil, err
	}
	if !s.threads.View(actor, thread) {
		return nil, apperrors.Forbidden("actor is not a participant of this thread")
	}

	delivery, err := mark(ctx, s.store, kind, messageID, actor, s.now())
	if err != nil {
		s.log.Error("Failed to mark message", "error", err, "message_id", messageID, "actor", actor.String())
		return nil, err
	}

	s.emit(ctx, s.event(eventForMark(kind)).WithMessage(message).WithDelivery(delivery).WithActor(actor))
	return delivery, nil
}

func (s *deliveryService) MarkThreadAsRead(ctx context.Context, threadID int64, actor domain.Actor) (int, error) {
	return s.markThread(ctx, repository.MarkRead, threadID, actor)
}

func (s *deliveryService) MarkThreadAsDelivered(ctx context.Context, threadID int64, actor domain.Actor) (int, error) {
	return s.markThread(ctx, repository.MarkDelivered, threadID, actor)
}

func (s *deliveryService) markThread(ctx context.Context, kind repository.MarkKind, threadID int64, actor domain.Actor) (int, error) {
	if err := s.enabled(kind); err != nil {
		return 0, err
	}
	thread, err := s.loadThread(ctx, s.store, threadID)
	if err != nil {
		return 0, err
	}
	if !s.threads.View(actor, thread) {
		return 0, apperrors.Forbidden("actor is not a participant of this thread")
	}

	now := s.now()
	var deliveries []*domain.MessageDelivery
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		ids, err := tx.Messages().ListUnmarked(ctx, threadID, actor, kind)
		if err != nil {
			return err
		}
		for _, id := range ids {
			d, err := mark(ctx, tx, kind, id, actor, now)
			if err != nil {
				return err
			}
			deliveries = append(deliveries, d)
		}
		return nil
	})
	if err != nil {
		s.log.Error("Failed to mark thread", "error", err, "thread_id", threadID, "actor", actor.String())
		return 0, err
	}

	evs := make([]domain.Event, 0, len(deliveries))
	for _, d := range deliveries {
		ev := s.event(eventForMark(kind)).WithThread(thread).WithDelivery(d).WithActor(actor)
		ev.MessageID = d.MessageID
		evs = append(evs, ev)
	}
	s.emit(ctx, evs...)

	return len(deliveries), nil
}

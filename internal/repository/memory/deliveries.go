package memory

import (
	"context"
	"time"

	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"
)

type deliveryRepo struct{ s *Store }

func copyDelivery(d domain.MessageDelivery) *domain.MessageDelivery {
	c := d
	c.DeliveredAt = copyTime(d.DeliveredAt)
	c.ReadAt = copyTime(d.ReadAt)
	return &c
}

func (r deliveryRepo) upsert(messageID int64, actor domain.Actor, mark func(d *domain.MessageDelivery)) (*domain.MessageDelivery, error) {
	defer r.s.lock()()
	if _, ok := r.s.st.messages[messageID]; !ok {
		return nil, apperrors.NotFound("message")
	}
	key := domain.NewDeliveryKey(messageID, actor)
	d, ok := r.s.st.deliveries[key]
	if !ok {
		d = domain.MessageDelivery{MessageID: messageID, Actor: actor}
	}
	current := copyDelivery(d)
	mark(current)
	r.s.st.deliveries[key] = *current
	return copyDelivery(*current), nil
}

func (r deliveryRepo) MarkDelivered(ctx context.Context, messageID int64, actor domain.Actor, at time.Time) (*domain.MessageDelivery, error) {
	return r.upsert(messageID, actor, func(d *domain.MessageDelivery) { d.MarkDelivered(at) })
}

func (r deliveryRepo) MarkRead(ctx context.Context, messageID int64, actor domain.Actor, at time.Time) (*domain.MessageDelivery, error) {
	return r.upsert(messageID, actor, func(d *domain.MessageDelivery) { d.MarkRead(at) })
}

func (r deliveryRepo) Get(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageDelivery, error) {
	defer r.s.lock()()
	d, ok := r.s.st.deliveries[domain.NewDeliveryKey(messageID, actor)]
	if !ok {
		return nil, apperrors.NotFound("delivery")
	}
	return copyDelivery(d), nil
}

type deletionRepo struct{ s *Store }

func (r deletionRepo) Create(ctx context.Context, deletion *domain.MessageDeletion) (*domain.MessageDeletion, bool, error) {
	defer r.s.lock()()
	if _, ok := r.s.st.messages[deletion.MessageID]; !ok {
		return nil, false, apperrors.NotFound("message")
	}
	key := deletion.Key()
	if existing, ok := r.s.st.deletions[key]; ok {
		return &existing, false, nil
	}
	if deletion.DeletedAt.IsZero() {
		deletion.DeletedAt = r.s.now()
	}
	r.s.st.deletions[key] = *deletion
	created := *deletion
	return &created, true, nil
}

func (r deletionRepo) Delete(ctx context.Context, messageID int64, actor domain.Actor) (bool, error) {
	defer r.s.lock()()
	key := domain.NewDeliveryKey(messageID, actor)
	if _, ok := r.s.st.deletions[key]; !ok {
		return false, nil
	}
	delete(r.s.st.deletions, key)
	return true, nil
}

func (r deletionRepo) Get(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageDeletion, error) {
	defer r.s.lock()()
	d, ok := r.s.st.deletions[domain.NewDeliveryKey(messageID, actor)]
	if !ok {
		return nil, apperrors.NotFound("deletion")
	}
	return &d, nil
}

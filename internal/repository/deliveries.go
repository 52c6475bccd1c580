package repository

import (
	"context"
	"errors"
	"time"

	"chat_engine/internal/domain"

	"github.com/jackc/pgx/v5"
)

type deliveryRepository struct{ s *postgresStore }

func queryDeliveries(ctx context.Context, s *postgresStore, where string, args ...any) ([]*domain.MessageDelivery, error) {
	rows, err := s.db.Query(ctx, `SELECT message_id, actor_type, actor_id, delivered_at, read_at FROM message_deliveries `+where, args...)
	if err != nil {
		s.log.Error("Failed to query deliveries", "error", err)
		return nil, err
	}
	defer rows.Close()

	deliveries := make([]*domain.MessageDelivery, 0)
	for rows.Next() {
		d := &domain.MessageDelivery{}
		if err := rows.Scan(&d.MessageID, &d.Actor.Type, &d.Actor.ID, &d.DeliveredAt, &d.ReadAt); err != nil {
			s.log.Error("Failed to scan delivery", "error", err)
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// MarkDelivered не перезаписывает уже установленный delivered_at.
func (r *deliveryRepository) MarkDelivered(ctx context.Context, messageID int64, actor domain.Actor, at time.Time) (*domain.MessageDelivery, error) {
	query := `
		INSERT INTO message_deliveries (message_id, actor_type, actor_id, delivered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, actor_type, actor_id) DO UPDATE
		SET delivered_at = COALESCE(message_deliveries.delivered_at, EXCLUDED.delivered_at)
		RETURNING delivered_at, read_at
	`
	return r.upsert(ctx, query, messageID, actor, at)
}

// MarkRead заполняет delivered_at, если его не было, и никогда не уменьшает read_at.
func (r *deliveryRepository) MarkRead(ctx context.Context, messageID int64, actor domain.Actor, at time.Time) (*domain.MessageDelivery, error) {
	query := `
		INSERT INTO message_deliveries (message_id, actor_type, actor_id, delivered_at, read_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (message_id, actor_type, actor_id) DO UPDATE
		SET delivered_at = COALESCE(message_deliveries.delivered_at, EXCLUDED.delivered_at),
			read_at = GREATEST(message_deliveries.read_at, EXCLUDED.read_at)
		RETURNING delivered_at, read_at
	`
	return r.upsert(ctx, query, messageID, actor, at)
}

func (r *deliveryRepository) upsert(ctx context.Context, query string, messageID int64, actor domain.Actor, at time.Time) (*domain.MessageDelivery, error) {
	d := &domain.MessageDelivery{MessageID: messageID, Actor: actor}
	err := r.s.db.QueryRow(ctx, query, messageID, actor.Type, actor.ID, at).Scan(&d.DeliveredAt, &d.ReadAt)
	if err != nil {
		r.s.log.Error("Failed to upsert delivery", "error", err, "message_id", messageID)
		return nil, translate(err, "message")
	}
	return d, nil
}

func (r *deliveryRepository) Get(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageDelivery, error) {
	deliveries, err := queryDeliveries(ctx, r.s,
		`WHERE message_id = $1 AND actor_type = $2 AND actor_id = $3`, messageID, actor.Type, actor.ID)
	if err != nil {
		return nil, err
	}
	if len(deliveries) == 0 {
		return nil, translate(pgx.ErrNoRows, "delivery")
	}
	return deliveries[0], nil
}

type deletionRepository struct{ s *postgresStore }

func queryDeletions(ctx context.Context, s *postgresStore, where string, args ...any) ([]*domain.MessageDeletion, error) {
	rows, err := s.db.Query(ctx, `SELECT message_id, actor_type, actor_id, deleted_at FROM message_deletions `+where, args...)
	if err != nil {
		s.log.Error("Failed to query deletions", "error", err)
		return nil, err
	}
	defer rows.Close()

	deletions := make([]*domain.MessageDeletion, 0)
	for rows.Next() {
		d := &domain.MessageDeletion{}
		if err := rows.Scan(&d.MessageID, &d.Actor.Type, &d.Actor.ID, &d.DeletedAt); err != nil {
			s.log.Error("Failed to scan deletion", "error", err)
			return nil, err
		}
		deletions = append(deletions, d)
	}
	return deletions, rows.Err()
}

// Create вставляет пометку только если ее еще нет; иначе возвращает существующую.
func (r *deletionRepository) Create(ctx context.Context, deletion *domain.MessageDeletion) (*domain.MessageDeletion, bool, error) {
	query := `
		INSERT INTO message_deletions (message_id, actor_type, actor_id, deleted_at)
		VALUES ($1, $2, $3, COALESCE($4, NOW()))
		ON CONFLICT (message_id, actor_type, actor_id) DO NOTHING
		RETURNING deleted_at
	`
	var deletedAt any
	if !deletion.DeletedAt.IsZero() {
		deletedAt = deletion.DeletedAt
	}
	created := *deletion
	err := r.s.db.QueryRow(ctx, query, deletion.MessageID, deletion.Actor.Type, deletion.Actor.ID, deletedAt).
		Scan(&created.DeletedAt)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.s.log.Error("Failed to create message deletion", "error", err, "message_id", deletion.MessageID)
		return nil, false, translate(err, "message")
	}
	existing, err := r.Get(ctx, deletion.MessageID, deletion.Actor)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *deletionRepository) Delete(ctx context.Context, messageID int64, actor domain.Actor) (bool, error) {
	tag, err := r.s.db.Exec(ctx,
		`DELETE FROM message_deletions WHERE message_id = $1 AND actor_type = $2 AND actor_id = $3`,
		messageID, actor.Type, actor.ID)
	if err != nil {
		r.s.log.Error("Failed to delete message deletion", "error", err, "message_id", messageID)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *deletionRepository) Get(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageDeletion, error) {
	deletions, err := queryDeletions(ctx, r.s,
		`WHERE message_id = $1 AND actor_type = $2 AND actor_id = $3`, messageID, actor.Type, actor.ID)
	if err != nil {
		return nil, err
	}
	if len(deletions) == 0 {
		return nil, translate(pgx.ErrNoRows, "deletion")
	}
	return deletions[0], nil
}

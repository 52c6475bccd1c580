package repository

import (
	"context"
	"time"

	"chat_engine/internal/domain"

	"github.com/jackc/pgx/v5"
)

type attachmentRepository struct{ s *postgresStore }

const attachmentColumns = `id, message_id, type, disk, path, COALESCE(filename, ''), COALESCE(mime_type, ''), size,
	duration, width, height, thumbnail_path, blurhash, caption, view_once, viewed_at, metadata, position, created_at`

func queryAttachments(ctx context.Context, s *postgresStore, where string, args ...any) ([]*domain.MessageAttachment, error) {
	rows, err := s.db.Query(ctx, `SELECT `+attachmentColumns+` FROM message_attachments `+where, args...)
	if err != nil {
		s.log.Error("Failed to query attachments", "error", err)
		return nil, err
	}
	defer rows.Close()

	attachments := make([]*domain.MessageAttachment, 0)
	for rows.Next() {
		a := &domain.MessageAttachment{}
		err := rows.Scan(
			&a.ID, &a.MessageID, &a.Type, &a.Disk, &a.Path, &a.Filename, &a.MimeType, &a.Size,
			&a.Duration, &a.Width, &a.Height, &a.ThumbnailPath, &a.Blurhash, &a.Caption,
			&a.ViewOnce, &a.ViewedAt, &a.Metadata, &a.Order, &a.CreatedAt,
		)
		if err != nil {
			s.log.Error("Failed to scan attachment", "error", err)
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

func (r *attachmentRepository) Create(ctx context.Context, a *domain.MessageAttachment) error {
	query := `
		INSERT INTO message_attachments
			(message_id, type, disk, path, filename, mime_type, size, duration, width, height,
			 thumbnail_path, blurhash, caption, view_once, metadata, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, COALESCE($17, NOW()))
		RETURNING id, created_at
	`
	var createdAt any
	if !a.CreatedAt.IsZero() {
		createdAt = a.CreatedAt
	}
	err := r.s.db.QueryRow(ctx, query,
		a.MessageID, a.Type, a.Disk, a.Path, a.Filename, a.MimeType, a.Size, a.Duration, a.Width, a.Height,
		a.ThumbnailPath, a.Blurhash, a.Caption, a.ViewOnce, a.Metadata, a.Order, createdAt,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		r.s.log.Error("Failed to create attachment", "error", err, "message_id", a.MessageID)
		return translate(err, "message")
	}
	return nil
}

func (r *attachmentRepository) GetByID(ctx context.Context, id int64) (*domain.MessageAttachment, error) {
	attachments, err := queryAttachments(ctx, r.s, `WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(attachments) == 0 {
		return nil, translate(pgx.ErrNoRows, "attachment")
	}
	return attachments[0], nil
}

func (r *attachmentRepository) ListByMessage(ctx context.Context, messageID int64) ([]*domain.MessageAttachment, error) {
	return queryAttachments(ctx, r.s, `WHERE message_id = $1 ORDER BY position, id`, messageID)
}

func (r *attachmentRepository) ListByThread(ctx context.Context, threadID int64) ([]*domain.MessageAttachment, error) {
	return queryAttachments(ctx, r.s,
		`WHERE message_id IN (SELECT id FROM messages WHERE thread_id = $1) ORDER BY id`, threadID)
}

// Consume выполняет условный UPDATE, выигрывает только тот, кто первым выставил viewed_at.
func (r *attachmentRepository) Consume(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := r.s.db.Exec(ctx,
		`UPDATE message_attachments SET viewed_at = $2 WHERE id = $1 AND viewed_at IS NULL`, id, at)
	if err != nil {
		r.s.log.Error("Failed to consume attachment", "error", err, "attachment_id", id)
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

type retentionRepository struct{ s *postgresStore }

func (r *retentionRepository) purge(ctx context.Context, name, query string, args ...any) (int64, error) {
	tag, err := r.s.db.Exec(ctx, query, args...)
	if err != nil {
		r.s.log.Error("Failed to purge "+name, "error", err)
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *retentionRepository) PurgeDeletedMessages(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.purge(ctx, "deleted messages",
		`DELETE FROM messages WHERE deleted_at IS NOT NULL AND deleted_at < $1`, cutoff)
}

func (r *retentionRepository) PurgeReadDeliveries(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.purge(ctx, "deliveries",
		`DELETE FROM message_deliveries WHERE read_at IS NOT NULL AND read_at < $1`, cutoff)
}

func (r *retentionRepository) PurgeVersions(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.purge(ctx, "versions", `DELETE FROM message_versions WHERE created_at < $1`, cutoff)
}

func (r *retentionRepository) PurgeOrphanedDeletions(ctx context.Context) (int64, error) {
	return r.purge(ctx, "orphaned deletions", `
		DELETE FROM message_deletions d
		WHERE NOT EXISTS (SELECT 1 FROM messages m WHERE m.id = d.message_id)
	`)
}

package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"chat_engine/internal/domain"

	"github.com/jackc/pgx/v5"
)

type messageRepository struct{ s *postgresStore }

const messageColumns = `id, thread_id, sender_type, sender_id, author_type, author_id, type, payload,
	encrypted, encryption_driver, deleted_at, deleted_by_type, deleted_by_id, created_at`

func scanMessage(row interface{ Scan(...any) error }) (*domain.Message, error) {
	m := &domain.Message{}
	var author, deletedBy nullActor
	err := row.Scan(
		&m.ID, &m.ThreadID, &m.Sender.Type, &m.Sender.ID, &author.Type, &author.ID, &m.Type, &m.Payload,
		&m.Encrypted, &m.EncryptionDriver, &m.DeletedAt, &deletedBy.Type, &deletedBy.ID, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Author = author.actor()
	m.DeletedBy = deletedBy.actor()
	return m, nil
}

func (r *messageRepository) Create(ctx context.Context, m *domain.Message) error {
	query := `
		INSERT INTO messages
			(thread_id, sender_type, sender_id, author_type, author_id, type, payload, encrypted, encryption_driver, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))
		RETURNING id, created_at
	`
	authorType, authorID := actorColumns(m.Author)
	var createdAt any
	if !m.CreatedAt.IsZero() {
		createdAt = m.CreatedAt
	}
	err := r.s.db.QueryRow(ctx, query,
		m.ThreadID, m.Sender.Type, m.Sender.ID, authorType, authorID, m.Type,
		jsonObject(m.Payload), m.Encrypted, m.EncryptionDriver, createdAt,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		r.s.log.Error("Failed to create message", "error", err, "thread_id", m.ThreadID)
		return translate(err, "thread")
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	m, err := scanMessage(r.s.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "message")
	}
	if err := loadRelations(ctx, r.s, []*domain.Message{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *messageRepository) UpdatePayload(ctx context.Context, m *domain.Message) error {
	query := `UPDATE messages SET payload = $2, encrypted = $3, encryption_driver = $4 WHERE id = $1`
	tag, err := r.s.db.Exec(ctx, query, m.ID, jsonObject(m.Payload), m.Encrypted, m.EncryptionDriver)
	if err != nil {
		r.s.log.Error("Failed to update message payload", "error", err, "message_id", m.ID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "message")
	}
	return nil
}

func (r *messageRepository) SetDeleted(ctx context.Context, id int64, deletedAt *time.Time, deletedBy *domain.Actor) error {
	query := `UPDATE messages SET deleted_at = $2, deleted_by_type = $3, deleted_by_id = $4 WHERE id = $1`
	byType, byID := actorColumns(deletedBy)
	tag, err := r.s.db.Exec(ctx, query, id, deletedAt, byType, byID)
	if err != nil {
		r.s.log.Error("Failed to set message deletion", "error", err, "message_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "message")
	}
	return nil
}

func (r *messageRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.s.db.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		r.s.log.Error("Failed to delete message", "error", err, "message_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "message")
	}
	return nil
}

func (r *messageRepository) ListByThread(ctx context.Context, threadID int64, limit int, beforeID int64) ([]*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE thread_id = $1 AND ($2 = 0 OR id < $2)
		ORDER BY id DESC
		LIMIT $3
	`
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := r.s.db.Query(ctx, query, threadID, beforeID, lim)
	if err != nil {
		r.s.log.Error("Failed to list messages", "error", err, "thread_id", threadID)
		return nil, err
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			r.s.log.Error("Failed to scan message", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadRelations(ctx, r.s, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func markColumn(kind MarkKind) string {
	if kind == MarkRead {
		return "read_at"
	}
	return "delivered_at"
}

func (r *messageRepository) ListUnmarked(ctx context.Context, threadID int64, actor domain.Actor, kind MarkKind) ([]int64, error) {
	query := fmt.Sprintf(`
		SELECT m.id
		FROM messages m
		LEFT JOIN message_deliveries d
			ON d.message_id = m.id AND d.actor_type = $2 AND d.actor_id = $3
		WHERE m.thread_id = $1
			AND m.deleted_at IS NULL
			AND NOT (m.sender_type = $2 AND m.sender_id = $3)
			AND d.%s IS NULL
		ORDER BY m.id
	`, markColumn(kind))

	rows, err := r.s.db.Query(ctx, query, threadID, actor.Type, actor.ID)
	if err != nil {
		r.s.log.Error("Failed to list unmarked messages", "error", err, "thread_id", threadID)
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *messageRepository) CountUnread(ctx context.Context, threadID int64, actor domain.Actor) (int, error) {
	query := `SELECT COUNT(*) FROM messages m WHERE m.thread_id = $3 AND ` + unreadCondition
	var count int
	if err := r.s.db.QueryRow(ctx, query, actor.Type, actor.ID, threadID).Scan(&count); err != nil {
		r.s.log.Error("Failed to count unread messages", "error", err, "thread_id", threadID)
		return 0, err
	}
	return count, nil
}

// unreadCondition: сообщение не от актора ($1, $2), не удалено ни глобально, ни для него и не прочитано.
const unreadCondition = `
	m.deleted_at IS NULL
	AND NOT (m.sender_type = $1 AND m.sender_id = $2)
	AND NOT EXISTS (
		SELECT 1 FROM message_deliveries d
		WHERE d.message_id = m.id AND d.actor_type = $1 AND d.actor_id = $2 AND d.read_at IS NOT NULL
	)
	AND NOT EXISTS (
		SELECT 1 FROM message_deletions x
		WHERE x.message_id = m.id AND x.actor_type = $1 AND x.actor_id = $2
	)`

func (r *messageRepository) CountUnreadTotal(ctx context.Context, actor domain.Actor) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages m
		JOIN thread_participants p
			ON p.thread_id = m.thread_id AND p.actor_type = $1 AND p.actor_id = $2 AND p.left_at IS NULL
		WHERE ` + unreadCondition
	var count int
	if err := r.s.db.QueryRow(ctx, query, actor.Type, actor.ID).Scan(&count); err != nil {
		r.s.log.Error("Failed to count unread messages", "error", err, "actor", actor.String())
		return 0, err
	}
	return count, nil
}

// loadRelations догружает версии, квитанции, удаления, вложения и реакции пачкой запросов.
func loadRelations(ctx context.Context, s *postgresStore, messages []*domain.Message) error {
	if len(messages) == 0 {
		return nil
	}
	ids := make([]int64, len(messages))
	byID := make(map[int64]*domain.Message, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
		byID[m.ID] = m
	}

	versions, err := queryVersions(ctx, s, `WHERE message_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return err
	}
	for _, v := range versions {
		byID[v.MessageID].Versions = append(byID[v.MessageID].Versions, v)
	}

	deliveries, err := queryDeliveries(ctx, s, `WHERE message_id = ANY($1) ORDER BY actor_type, actor_id`, ids)
	if err != nil {
		return err
	}
	for _, d := range deliveries {
		byID[d.MessageID].Deliveries = append(byID[d.MessageID].Deliveries, d)
	}

	deletions, err := queryDeletions(ctx, s, `WHERE message_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	for _, d := range deletions {
		byID[d.MessageID].Deletions = append(byID[d.MessageID].Deletions, d)
	}

	attachments, err := queryAttachments(ctx, s, `WHERE message_id = ANY($1) ORDER BY position, id`, ids)
	if err != nil {
		return err
	}
	for _, a := range attachments {
		byID[a.MessageID].Attachments = append(byID[a.MessageID].Attachments, a)
	}
	reactions, err := queryReactions(ctx, s, `WHERE message_id = ANY($1) ORDER BY created_at, actor_type, actor_id`, ids)
	if err != nil {
		return err
	}
	for _, r := range reactions {
		byID[r.MessageID].Reactions = append(byID[r.MessageID].Reactions, r)
	}

	for _, m := range messages {
		sort.SliceStable(m.Attachments, func(i, j int) bool { return m.Attachments[i].Order < m.Attachments[j].Order })
	}
	return nil
}

type versionRepository struct{ s *postgresStore }

func queryVersions(ctx context.Context, s *postgresStore, where string, args ...any) ([]*domain.MessageVersion, error) {
	query := `
		SELECT id, message_id, payload, encrypted, encryption_driver, edited_by_type, edited_by_id, created_at
		FROM message_versions ` + where
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		s.log.Error("Failed to query message versions", "error", err)
		return nil, err
	}
	defer rows.Close()

	versions := make([]*domain.MessageVersion, 0)
	for rows.Next() {
		v := &domain.MessageVersion{}
		err := rows.Scan(&v.ID, &v.MessageID, &v.Payload, &v.Encrypted, &v.EncryptionDriver,
			&v.EditedBy.Type, &v.EditedBy.ID, &v.CreatedAt)
		if err != nil {
			s.log.Error("Failed to scan message version", "error", err)
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *versionRepository) Create(ctx context.Context, v *domain.MessageVersion) error {
	query := `
		INSERT INTO message_versions (message_id, payload, encrypted, encryption_driver, edited_by_type, edited_by_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		RETURNING id, created_at
	`
	var createdAt any
	if !v.CreatedAt.IsZero() {
		createdAt = v.CreatedAt
	}
	err := r.s.db.QueryRow(ctx, query,
		v.MessageID, jsonObject(v.Payload), v.Encrypted, v.EncryptionDriver,
		v.EditedBy.Type, v.EditedBy.ID, createdAt,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		r.s.log.Error("Failed to create message version", "error", err, "message_id", v.MessageID)
		return translate(err, "message")
	}
	return nil
}

func (r *versionRepository) ListByMessage(ctx context.Context, messageID int64) ([]*domain.MessageVersion, error) {
	return queryVersions(ctx, r.s, `WHERE message_id = $1 ORDER BY created_at, id`, messageID)
}

package repository

import (
	"context"

	"chat_engine/internal/domain"
	"chat_engine/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository пишет доменные события в таблицу audit_log.
type AuditRepository interface {
	Record(ctx context.Context, event domain.Event) error
	ListByThread(ctx context.Context, threadID int64, limit int) ([]*AuditEntry, error)
}

type AuditEntry struct {
	ID        int64                  `json:"id"`
	EventID   string                 `json:"event_id"`
	EventTime string                 `json:"event_time"`
	Actor     *domain.Actor          `json:"actor,omitempty"`
	ThreadID  *int64                 `json:"thread_id,omitempty"`
	MessageID *int64                 `json:"message_id,omitempty"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func (r *auditRepository) Record(ctx context.Context, event domain.Event) error {
	query := `
		INSERT INTO audit_log (event_id, event_time, actor_type, actor_id, thread_id, message_id, event_type, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	actorType, actorID := actorColumns(event.Actor)
	_, err := r.db.Exec(ctx, query,
		event.ID, event.OccurredAt, actorType, actorID,
		nullableID(event.ThreadID), nullableID(event.MessageID), string(event.Type), event.Data,
	)
	if err != nil {
		r.log.Error("Failed to create audit log", "error", err, "event_type", event.Type)
		return err
	}
	return nil
}

func (r *auditRepository) ListByThread(ctx context.Context, threadID int64, limit int) ([]*AuditEntry, error) {
	query := `
		SELECT id, event_id::text, to_char(event_time AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.MS"Z"'),
			actor_type, actor_id, thread_id, message_id, event_type, payload
		FROM audit_log
		WHERE thread_id = $1
		ORDER BY event_time DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, threadID, limit)
	if err != nil {
		r.log.Error("Failed to list audit log", "error", err, "thread_id", threadID)
		return nil, err
	}
	defer rows.Close()

	entries := make([]*AuditEntry, 0)
	for rows.Next() {
		e := &AuditEntry{}
		var actor nullActor
		err := rows.Scan(&e.ID, &e.EventID, &e.EventTime, &actor.Type, &actor.ID,
			&e.ThreadID, &e.MessageID, &e.EventType, &e.Payload)
		if err != nil {
			r.log.Error("Failed to scan audit log", "error", err)
			return nil, err
		}
		e.Actor = actor.actor()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

package repository

import (
	"context"

	"chat_engine/internal/domain"

	"github.com/jackc/pgx/v5"
)

type threadRepository struct{ s *postgresStore }

const threadColumns = `id, type, name, hash, metadata, is_locked, permissions, created_at`

func scanThread(row interface{ Scan(...any) error }) (*domain.Thread, error) {
	thread := &domain.Thread{}
	err := row.Scan(
		&thread.ID, &thread.Type, &thread.Name, &thread.Hash, &thread.Metadata,
		&thread.IsLocked, &thread.Permissions, &thread.CreatedAt,
	)
	return thread, err
}

func (r *threadRepository) Create(ctx context.Context, thread *domain.Thread) error {
	query := `
		INSERT INTO threads (type, name, hash, metadata, is_locked, permissions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		RETURNING id, created_at
	`
	var createdAt any
	if !thread.CreatedAt.IsZero() {
		createdAt = thread.CreatedAt
	}

	err := r.s.db.QueryRow(ctx, query,
		thread.Type, thread.Name, thread.Hash, thread.Metadata,
		thread.IsLocked, thread.Permissions, createdAt,
	).Scan(&thread.ID, &thread.CreatedAt)

	if err != nil {
		if code, constraint := pgErrorCode(err); code == codeUniqueViolation && constraint == "threads_hash_key" {
			return ErrDuplicateHash
		}
		r.s.log.Error("Failed to create thread", "error", err)
		return err
	}
	return nil
}

func (r *threadRepository) GetByID(ctx context.Context, id int64) (*domain.Thread, error) {
	query := `SELECT ` + threadColumns + ` FROM threads WHERE id = $1`
	thread, err := scanThread(r.s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err, "thread")
	}
	if err := r.attachParticipants(ctx, []*domain.Thread{thread}); err != nil {
		return nil, err
	}
	return thread, nil
}

func (r *threadRepository) FindByHash(ctx context.Context, hash string) (*domain.Thread, error) {
	var id int64
	err := r.s.db.QueryRow(ctx, `SELECT id FROM threads WHERE hash = $1`, hash).Scan(&id)
	if err != nil {
		return nil, translate(err, "thread")
	}
	return r.GetByID(ctx, id)
}

func (r *threadRepository) Update(ctx context.Context, thread *domain.Thread) error {
	query := `
		UPDATE threads
		SET name = $2, metadata = $3, permissions = $4, is_locked = $5
		WHERE id = $1
	`
	tag, err := r.s.db.Exec(ctx, query, thread.ID, thread.Name, thread.Metadata, thread.Permissions, thread.IsLocked)
	if err != nil {
		r.s.log.Error("Failed to update thread", "error", err, "thread_id", thread.ID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "thread")
	}
	return nil
}

func (r *threadRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.s.db.Exec(ctx, `DELETE FROM threads WHERE id = $1`, id)
	if err != nil {
		r.s.log.Error("Failed to delete thread", "error", err, "thread_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "thread")
	}
	return nil
}

func (r *threadRepository) ListForActor(ctx context.Context, actor domain.Actor, limit, offset int) ([]*domain.Thread, error) {
	query := `
		SELECT ` + threadColumns + `
		FROM threads t
		WHERE EXISTS (
			SELECT 1 FROM thread_participants p
			WHERE p.thread_id = t.id AND p.actor_type = $1 AND p.actor_id = $2
		)
		ORDER BY t.id DESC
		LIMIT $3 OFFSET $4
	`
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := r.s.db.Query(ctx, query, actor.Type, actor.ID, lim, offset)
	if err != nil {
		r.s.log.Error("Failed to list threads", "error", err, "actor", actor.String())
		return nil, err
	}
	defer rows.Close()

	threads := make([]*domain.Thread, 0)
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			r.s.log.Error("Failed to scan thread", "error", err)
			return nil, err
		}
		threads = append(threads, thread)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachParticipants(ctx, threads); err != nil {
		return nil, err
	}
	return threads, nil
}

func (r *threadRepository) attachParticipants(ctx context.Context, threads []*domain.Thread) error {
	if len(threads) == 0 {
		return nil
	}
	ids := make([]int64, len(threads))
	byID := make(map[int64]*domain.Thread, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
		byID[t.ID] = t
	}
	participants, err := queryParticipants(ctx, r.s, `WHERE thread_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	for _, p := range participants {
		if t, ok := byID[p.ThreadID]; ok {
			t.Participants = append(t.Participants, p)
		}
	}
	return nil
}

type participantRepository struct{ s *postgresStore }

const participantColumns = `id, thread_id, actor_type, actor_id, role, joined_at, left_at, chat_lock_pin, public_key, security_code`

func queryParticipants(ctx context.Context, s *postgresStore, where string, args ...any) ([]*domain.ThreadParticipant, error) {
	rows, err := s.db.Query(ctx, `SELECT `+participantColumns+` FROM thread_participants `+where, args...)
	if err != nil {
		s.log.Error("Failed to query participants", "error", err)
		return nil, err
	}
	defer rows.Close()

	participants := make([]*domain.ThreadParticipant, 0)
	for rows.Next() {
		p := &domain.ThreadParticipant{}
		err := rows.Scan(
			&p.ID, &p.ThreadID, &p.Actor.Type, &p.Actor.ID, &p.Role, &p.JoinedAt,
			&p.LeftAt, &p.ChatLockPin, &p.PublicKey, &p.SecurityCode,
		)
		if err != nil {
			s.log.Error("Failed to scan participant", "error", err)
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *participantRepository) Create(ctx context.Context, p *domain.ThreadParticipant) error {
	query := `
		INSERT INTO thread_participants
			(thread_id, actor_type, actor_id, role, joined_at, left_at, chat_lock_pin, public_key, security_code)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()), $6, $7, $8, $9)
		RETURNING id, joined_at
	`
	if p.Role == "" {
		p.Role = domain.RoleMember
	}
	var joinedAt any
	if !p.JoinedAt.IsZero() {
		joinedAt = p.JoinedAt
	}
	err := r.s.db.QueryRow(ctx, query,
		p.ThreadID, p.Actor.Type, p.Actor.ID, p.Role, joinedAt, p.LeftAt,
		p.ChatLockPin, p.PublicKey, p.SecurityCode,
	).Scan(&p.ID, &p.JoinedAt)
	if err != nil {
		if code, _ := pgErrorCode(err); code == "" {
			r.s.log.Error("Failed to create participant", "error", err, "thread_id", p.ThreadID)
		}
		return translate(err, "participant")
	}
	return nil
}

func (r *participantRepository) Update(ctx context.Context, p *domain.ThreadParticipant) error {
	query := `
		UPDATE thread_participants
		SET role = $2, joined_at = $3, left_at = $4, chat_lock_pin = $5, public_key = $6, security_code = $7
		WHERE id = $1
	`
	tag, err := r.s.db.Exec(ctx, query, p.ID, p.Role, p.JoinedAt, p.LeftAt, p.ChatLockPin, p.PublicKey, p.SecurityCode)
	if err != nil {
		r.s.log.Error("Failed to update participant", "error", err, "participant_id", p.ID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "participant")
	}
	return nil
}

func (r *participantRepository) Get(ctx context.Context, threadID int64, actor domain.Actor) (*domain.ThreadParticipant, error) {
	participants, err := queryParticipants(ctx, r.s,
		`WHERE thread_id = $1 AND actor_type = $2 AND actor_id = $3`, threadID, actor.Type, actor.ID)
	if err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		return nil, translate(pgx.ErrNoRows, "participant")
	}
	return participants[0], nil
}

func (r *participantRepository) ListByThread(ctx context.Context, threadID int64) ([]*domain.ThreadParticipant, error) {
	return queryParticipants(ctx, r.s, `WHERE thread_id = $1 ORDER BY id`, threadID)
}

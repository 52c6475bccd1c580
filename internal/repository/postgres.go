package repository

import (
	"context"
	"errors"
	"fmt"

	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"
	"chat_engine/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX: общее подмножество pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresStore struct {
	pool *pgxpool.Pool
	db   DBTX
	log  logger.Logger
}

// NewPostgresStore возвращает Store поверх пула соединений.
func NewPostgresStore(db *pgxpool.Pool, log logger.Logger) Store {
	return &postgresStore{pool: db, db: db, log: log}
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.pool == nil {
		// Уже внутри транзакции
		return fn(s)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		s.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&postgresStore{db: tx, log: s.log}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		s.log.Error("Failed to commit transaction", "error", err)
		return err
	}
	return nil
}

func (s *postgresStore) Threads() ThreadRepository           { return &threadRepository{s} }
func (s *postgresStore) Participants() ParticipantRepository { return &participantRepository{s} }
func (s *postgresStore) Messages() MessageRepository         { return &messageRepository{s} }
func (s *postgresStore) Versions() VersionRepository         { return &versionRepository{s} }
func (s *postgresStore) Deliveries() DeliveryRepository      { return &deliveryRepository{s} }
func (s *postgresStore) Deletions() DeletionRepository       { return &deletionRepository{s} }
func (s *postgresStore) Attachments() AttachmentRepository   { return &attachmentRepository{s} }
func (s *postgresStore) Reactions() ReactionRepository       { return &reactionRepository{s} }
func (s *postgresStore) Bookmarks() BookmarkRepository       { return &bookmarkRepository{s} }
func (s *postgresStore) Retention() RetentionRepository      { return &retentionRepository{s} }

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func pgErrorCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// translate приводит ошибки драйвера к видам ошибок движка.
func translate(err error, entity string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound(entity)
	}
	switch code, _ := pgErrorCode(err); code {
	case codeForeignKeyViolation:
		return apperrors.NotFound(entity)
	case codeUniqueViolation:
		return apperrors.Conflict(fmt.Sprintf("%s already exists", entity))
	}
	return err
}

// nullActor сканирует пару nullable-колонок (type, id).
type nullActor struct {
	Type *string
	ID   *string
}

func (n nullActor) actor() *domain.Actor {
	if n.Type == nil || n.ID == nil {
		return nil
	}
	a := domain.NewActor(*n.Type, *n.ID)
	return &a
}

func actorColumns(a *domain.Actor) (*string, *string) {
	if a == nil {
		return nil, nil
	}
	return &a.Type, &a.ID
}

func jsonObject(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

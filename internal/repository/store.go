package repository

import (
	"context"
	"errors"
	"time"

	"chat_engine/internal/domain"
)

// ErrDuplicateHash: нарушение уникальности hash треда (параллельное создание).
var ErrDuplicateHash = errors.New("thread with this participant hash already exists")

// Store объединяет хранилища сущностей и поддерживает транзакции.
type Store interface {
	Threads() ThreadRepository
	Participants() ParticipantRepository
	Messages() MessageRepository
	Versions() VersionRepository
	Deliveries() DeliveryRepository
	Deletions() DeletionRepository
	Attachments() AttachmentRepository
	Reactions() ReactionRepository
	Bookmarks() BookmarkRepository
	Retention() RetentionRepository

	// WithinTx выполняет fn в одной транзакции. Ошибка fn откатывает все записи.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type ThreadRepository interface {
	Create(ctx context.Context, thread *domain.Thread) error
	// GetByID загружает тред вместе со всеми участниками (включая покинувших).
	GetByID(ctx context.Context, id int64) (*domain.Thread, error)
	FindByHash(ctx context.Context, hash string) (*domain.Thread, error)
	Update(ctx context.Context, thread *domain.Thread) error
	Delete(ctx context.Context, id int64) error
	ListForActor(ctx context.Context, actor domain.Actor, limit, offset int) ([]*domain.Thread, error)
}

type ParticipantRepository interface {
	Create(ctx context.Context, participant *domain.ThreadParticipant) error
	Update(ctx context.Context, participant *domain.ThreadParticipant) error
	Get(ctx context.Context, threadID int64, actor domain.Actor) (*domain.ThreadParticipant, error)
	ListByThread(ctx context.Context, threadID int64) ([]*domain.ThreadParticipant, error)
}

// MarkKind выбирает, какая отметка квитанции учитывается.
type MarkKind int

const (
	MarkDelivered MarkKind = iota
	MarkRead
)

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	// GetByID загружает сообщение с версиями, квитанциями, удалениями и вложениями.
	GetByID(ctx context.Context, id int64) (*domain.Message, error)
	UpdatePayload(ctx context.Context, message *domain.Message) error
	SetDeleted(ctx context.Context, id int64, deletedAt *time.Time, deletedBy *domain.Actor) error
	Delete(ctx context.Context, id int64) error
	// ListByThread возвращает сообщения от новых к старым; beforeID > 0 задает курсор.
	ListByThread(ctx context.Context, threadID int64, limit int, beforeID int64) ([]*domain.Message, error)
	// ListUnmarked: ID сообщений треда без отметки kind у актора, не от него и не удаленных глобально.
	ListUnmarked(ctx context.Context, threadID int64, actor domain.Actor, kind MarkKind) ([]int64, error)
	CountUnread(ctx context.Context, threadID int64, actor domain.Actor) (int, error)
	// CountUnreadTotal считает непрочитанное по всем тредам, где актор активный участник.
	CountUnreadTotal(ctx context.Context, actor domain.Actor) (int, error)
}

type VersionRepository interface {
	Create(ctx context.Context, version *domain.MessageVersion) error
	ListByMessage(ctx context.Context, messageID int64) ([]*domain.MessageVersion, error)
}

type DeliveryRepository interface {
	// MarkDelivered и MarkRead: upsert по (message_id, actor_type, actor_id).
	MarkDelivered(ctx context.Context, messageID int64, actor domain.Actor, at time.Time) (*domain.MessageDelivery, error)
	MarkRead(ctx context.Context, messageID int64, actor domain.Actor, at time.Time) (*domain.MessageDelivery, error)
	Get(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageDelivery, error)
}

type DeletionRepository interface {
	// Create идемпотентен: при наличии записи возвращает ее и created=false.
	Create(ctx context.Context, deletion *domain.MessageDeletion) (*domain.MessageDeletion, bool, error)
	Delete(ctx context.Context, messageID int64, actor domain.Actor) (bool, error)
	Get(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageDeletion, error)
}

type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.MessageAttachment) error
	GetByID(ctx context.Context, id int64) (*domain.MessageAttachment, error)
	ListByMessage(ctx context.Context, messageID int64) ([]*domain.MessageAttachment, error)
	ListByThread(ctx context.Context, threadID int64) ([]*domain.MessageAttachment, error)
	// Consume атомарно выставляет viewed_at, если он пуст. true: вызывающий выиграл.
	Consume(ctx context.Context, id int64, at time.Time) (bool, error)
}

type ReactionRepository interface {
	// Set: upsert по (message_id, actor_type, actor_id).
	Set(ctx context.Context, reaction *domain.MessageReaction) error
	Delete(ctx context.Context, messageID int64, actor domain.Actor) (bool, error)
	ListByMessage(ctx context.Context, messageID int64) ([]*domain.MessageReaction, error)
	ListByActor(ctx context.Context, actor domain.Actor) ([]*domain.MessageReaction, error)
}

type BookmarkRepository interface {
	// Save: upsert, повторное сохранение обновляет коллекцию и метаданные.
	Save(ctx context.Context, bookmark *domain.MessageBookmark) error
	Delete(ctx context.Context, messageID int64, actor domain.Actor) (bool, error)
	Get(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageBookmark, error)
	// ListByActor: collectionID == nil возвращает все закладки актора.
	ListByActor(ctx context.Context, actor domain.Actor, collectionID *int64) ([]*domain.MessageBookmark, error)
	CountByMessage(ctx context.Context, messageID int64) (int, error)

	CreateCollection(ctx context.Context, collection *domain.BookmarkCollection) error
	GetCollection(ctx context.Context, id int64) (*domain.BookmarkCollection, error)
	ListCollections(ctx context.Context, owner domain.Actor) ([]*domain.BookmarkCollection, error)
}

type RetentionRepository interface {
	PurgeDeletedMessages(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeReadDeliveries(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeVersions(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeOrphanedDeletions(ctx context.Context) (int64, error)
}

package service

import (
	"context"
	"fmt"
	"time"

	"chat_engine/internal/config"
	"chat_engine/internal/domain"
	"chat_engine/internal/encryption"
	"chat_engine/internal/events"
	"chat_engine/internal/pipeline"
	"chat_engine/internal/policy"
	"chat_engine/internal/repository"
	"chat_engine/internal/storage"
	"chat_engine/pkg/logger"
)

type Services struct {
	Threads      ThreadService
	Messages     MessageService
	Deletions    DeletionService
	Deliveries   DeliveryService
	Participants ParticipantService
	Attachments  AttachmentService
	Reactions    ReactionService
	Bookmarks    BookmarkService
	Presence     PresenceService
	Retention    RetentionService
	RateLimit    RateLimitService
	Audit        AuditService
}

// Dependencies: все внешние зависимости движка. Обязательны только Store и Config,
// остальное заменяется безопасными значениями по умолчанию.
type Dependencies struct {
	Store      repository.Store
	Presence   repository.PresenceRepository
	Audit      repository.AuditRepository
	RateLimit  repository.RateLimitRepository
	Files      storage.FileStore
	Signer     *storage.Signer
	Encryption *encryption.Manager
	Events     events.Sink
	Config     config.ChatConfig
	Now        func() time.Time
}

func NewServices(deps Dependencies, log logger.Logger) (*Services, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Encryption == nil {
		manager, err := NewEncryptionManager(deps.Config.Encryption)
		if err != nil {
			return nil, err
		}
		deps.Encryption = manager
	}

	pipe, err := pipeline.Build(deps.Config.Pipeline, pipeline.Options{
		Profanity: pipeline.ProfanityOptions{
			Words:       deps.Config.Profanity.Words,
			Replacement: deps.Config.Profanity.Replacement,
			Mode:        deps.Config.Profanity.Mode,
		},
		Encryption: deps.Encryption,
	})
	if err != nil {
		return nil, fmt.Errorf("build message pipeline: %w", err)
	}

	b := &base{
		store:  deps.Store,
		events: deps.Events,
		files:  deps.Files,
		cfg:    deps.Config,
		now:    deps.Now,
		log:    log,
	}

	services := &Services{
		Threads:      NewThreadService(b),
		Messages:     NewMessageService(b, pipe, deps.Encryption),
		Deletions:    NewDeletionService(b),
		Deliveries:   NewDeliveryService(b),
		Participants: NewParticipantService(b),
		Attachments:  NewAttachmentService(b, deps.Signer),
		Reactions:    NewReactionService(b),
		Bookmarks:    NewBookmarkService(b),
		Presence:     NewPresenceService(b, deps.Presence),
		Retention:    NewRetentionService(b),
		RateLimit:    NewRateLimitService(deps.RateLimit, log),
		Audit:        NewAuditService(b, deps.Audit),
	}

	log.Info("Services initialized", "pipes", pipe.Len(), "encryption", deps.Encryption.IsEnabled())

	return services, nil
}

// NewEncryptionManager регистрирует встроенные драйверы согласно конфигурации.
func NewEncryptionManager(cfg config.EncryptionConfig) (*encryption.Manager, error) {
	manager := encryption.NewManager(cfg.Enabled, cfg.Driver)
	if cfg.Key != "" {
		driver, err := encryption.NewSymmetricDriver(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("symmetric driver: %w", err)
		}
		manager.Register(driver)
	}
	if cfg.Enabled {
		if _, err := manager.DefaultDriver(); err != nil {
			return nil, err
		}
	}
	return manager, nil
}

type base struct {
	store  repository.Store
	events events.Sink
	files  storage.FileStore
	cfg    config.ChatConfig
	now    func() time.Time
	log    logger.Logger

	threads  policy.ThreadPolicy
	messages policy.MessagePolicy
}

func (b *base) event(eventType domain.EventType) domain.Event {
	return domain.NewEvent(eventType, b.now())
}

// emit вызывается только после фиксации транзакции.
func (b *base) emit(ctx context.Context, evs ...domain.Event) {
	for _, e := range evs {
		b.events.Publish(ctx, e)
	}
}

func (b *base) loadThread(ctx context.Context, store repository.Store, threadID int64) (*domain.Thread, error) {
	thread, err := store.Threads().GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return thread, nil
}

// loadMessage загружает сообщение вместе с его тредом.
func (b *base) loadMessage(ctx context.Context, store repository.Store, messageID int64) (*domain.Message, *domain.Thread, error) {
	message, err := store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	thread, err := b.loadThread(ctx, store, message.ThreadID)
	if err != nil {
		return nil, nil, err
	}
	return message, thread, nil
}

func (b *base) deletionMode() domain.DeletionMode {
	mode := domain.DeletionMode(b.cfg.Messages.DeletionMode)
	if !mode.Valid() {
		return domain.DeletionModeSoft
	}
	return mode
}

// removeFiles удаляет файлы вложений (и миниатюры), если это разрешено конфигурацией.
// Ошибки хранилища только логируются: записи в БД к этому моменту уже удалены.
func (b *base) removeFiles(ctx context.Context, attachments []*domain.MessageAttachment) {
	if !b.cfg.Attachments.DeleteFilesOnDelete || b.files == nil {
		return
	}
	for _, a := range attachments {
		paths := []string{a.Path}
		if a.ThumbnailPath != nil {
			paths = append(paths, *a.ThumbnailPath)
		}
		for _, p := range paths {
			if _, err := b.files.Delete(ctx, p); err != nil {
				b.log.Error("Failed to delete attachment file", "error", err, "attachment_id", a.ID, "path", p)
			}
		}
	}
}

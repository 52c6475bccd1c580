package events

import (
	"context"

	"chat_engine/internal/domain"
	"chat_engine/internal/repository"
	"chat_engine/pkg/logger"
)

// AuditSink сохраняет каждое событие в журнал аудита.
type AuditSink struct {
	repo repository.AuditRepository
	log  logger.Logger
}

func NewAuditSink(repo repository.AuditRepository, log logger.Logger) *AuditSink {
	return &AuditSink{repo: repo, log: log}
}

func (s *AuditSink) Publish(ctx context.Context, event domain.Event) {
	if err := s.repo.Record(ctx, event); err != nil {
		s.log.Warn("Audit sink dropped event", "error", err, "event_id", event.ID)
	}
}

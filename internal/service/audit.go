package service

import (
	"context"

	"chat_engine/internal/domain"
	"chat_engine/internal/repository"
	apperrors "chat_engine/pkg/errors"
)

// AuditService читает журнал событий треда, записанный events.AuditSink.
type AuditService interface {
	History(ctx context.Context, actor domain.Actor, threadID int64, limit int) ([]*repository.AuditEntry, error)
}

type auditService struct {
	*base
	auditRepo repository.AuditRepository
}

func NewAuditService(b *base, auditRepo repository.AuditRepository) AuditService {
	return &auditService{base: b, auditRepo: auditRepo}
}

func (s *auditService) History(ctx context.Context, actor domain.Actor, threadID int64, limit int) ([]*repository.AuditEntry, error) {
	if s.auditRepo == nil {
		return nil, apperrors.Unsupported("audit log is not configured")
	}
	thread, err := s.loadThread(ctx, s.store, threadID)
	if err != nil {
		return nil, err
	}
	if !s.threads.Update(actor, thread) {
		return nil, apperrors.Forbidden("only admins and owners can read the audit log")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.auditRepo.ListByThread(ctx, threadID, limit)
}

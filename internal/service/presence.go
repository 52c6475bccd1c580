package service

import (
	"context"

	"chat_engine/internal/domain"
	"chat_engine/internal/repository"
	apperrors "chat_engine/pkg/errors"
)

// PresenceService хранит эфемерное состояние присутствия и транслирует его подписчикам.
type PresenceService interface {
	Typing(ctx context.Context, threadID int64, actor domain.Actor) error
	StopTyping(ctx context.Context, threadID int64, actor domain.Actor) error
	TypingIn(ctx context.Context, threadID int64) ([]domain.Actor, error)
	Online(ctx context.Context, actor domain.Actor) error
	Offline(ctx context.Context, actor domain.Actor) error
	Away(ctx context.Context, actor domain.Actor) error
	UpdateLastSeen(ctx context.Context, actor domain.Actor) error
	Status(ctx context.Context, actor domain.Actor) (*domain.Presence, error)
}

type presenceService struct {
	*base
	repo repository.PresenceRepository
}

func NewPresenceService(b *base, repo repository.PresenceRepository) PresenceService {
	return &presenceService{base: b, repo: repo}
}

func (s *presenceService) enabled() error {
	if !s.cfg.Presence.Enabled || s.repo == nil {
		return apperrors.Unsupported("presence is disabled")
	}
	return nil
}

func (s *presenceService) typingThread(ctx context.Context, threadID int64, actor domain.Actor) (*domain.Thread, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	thread, err := s.loadThread(ctx, s.store, threadID)
	if err != nil {
		return nil, err
	}
	if !s.threads.SendMessage(actor, thread) {
		return nil, apperrors.Forbidden("actor is not an active participant of this thread")
	}
	return thread, nil
}

func (s *presenceService) Typing(ctx context.Context, threadID int64, actor domain.Actor) error {
	thread, err := s.typingThread(ctx, threadID, actor)
	if err != nil {
		return err
	}
	if err := s.repo.StartTyping(ctx, threadID, actor, s.now().Add(s.cfg.Presence.TypingTTL)); err != nil {
		return err
	}
	s.emit(ctx, s.event(domain.EventTypingStarted).WithThread(thread).WithActor(actor))
	return nil
}

func (s *presenceService) StopTyping(ctx context.Context, threadID int64, actor domain.Actor) error {
	thread, err := s.typingThread(ctx, threadID, actor)
	if err != nil {
		return err
	}
	if err := s.repo.StopTyping(ctx, threadID, actor); err != nil {
		return err
	}
	s.emit(ctx, s.event(domain.EventTypingStopped).WithThread(thread).WithActor(actor))
	return nil
}

func (s *presenceService) TypingIn(ctx context.Context, threadID int64) ([]domain.Actor, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	return s.repo.Typing(ctx, threadID, s.now())
}

func (s *presenceService) Online(ctx context.Context, actor domain.Actor) error {
	return s.setStatus(ctx, actor, domain.PresenceOnline)
}

func (s *presenceService) Offline(ctx context.Context, actor domain.Actor) error {
	return s.setStatus(ctx, actor, domain.PresenceOffline)
}

func (s *presenceService) Away(ctx context.Context, actor domain.Actor) error {
	return s.setStatus(ctx, actor, domain.PresenceAway)
}

func (s *presenceService) setStatus(ctx context.Context, actor domain.Actor, status string) error {
	if err := s.enabled(); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, actor, status, s.cfg.Presence.TTL); err != nil {
		return err
	}
	if err := s.repo.TouchLastSeen(ctx, actor, s.now()); err != nil {
		return err
	}
	s.emit(ctx, s.event(domain.EventPresenceChanged).WithActor(actor).WithData("status", status))
	return nil
}

func (s *presenceService) UpdateLastSeen(ctx context.Context, actor domain.Actor) error {
	if err := s.enabled(); err != nil {
		return err
	}
	now := s.now()
	if err := s.repo.TouchLastSeen(ctx, actor, now); err != nil {
		return err
	}
	s.emit(ctx, s.event(domain.EventPresenceChanged).WithActor(actor).WithData("last_seen", now))
	return nil
}

func (s *presenceService) Status(ctx context.Context, actor domain.Actor) (*domain.Presence, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	return s.repo.GetStatus(ctx, actor)
}

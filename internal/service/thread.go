package service

import (
	"context"
	"errors"

	"chat_engine/internal/domain"
	"chat_engine/internal/hasher"
	"chat_engine/internal/repository"
	apperrors "chat_engine/pkg/errors"
)

// ThreadRequest описывает создаваемый тред. Собирается цепочкой методов:
//
//	service.Group("Команда").WithOwner(a).WithMember(b).Named("Backend")
type ThreadRequest struct {
	Type        domain.ThreadType
	Name        *string
	Members     []hasher.Member
	Metadata    map[string]interface{}
	Permissions map[string]interface{}
	// SkipDedup отключает поиск существующего треда по hash.
	SkipDedup bool
}

func NewThreadRequest(threadType domain.ThreadType) *ThreadRequest {
	return &ThreadRequest{Type: threadType}
}

// Between описывает личную переписку двух акторов.
func Between(a, b domain.Actor) *ThreadRequest {
	return NewThreadRequest(domain.ThreadTypeDirect).WithMember(a).WithMember(b)
}

func Group(name string) *ThreadRequest {
	return NewThreadRequest(domain.ThreadTypeGroup).Named(name)
}

func Channel(name string) *ThreadRequest {
	return NewThreadRequest(domain.ThreadTypeChannel).Named(name)
}

func Broadcast(name string) *ThreadRequest {
	return NewThreadRequest(domain.ThreadTypeBroadcast).Named(name)
}

func (r *ThreadRequest) Named(name string) *ThreadRequest {
	if name == "" {
		r.Name = nil
		return r
	}
	r.Name = &name
	return r
}

func (r *ThreadRequest) WithOwner(actor domain.Actor) *ThreadRequest {
	return r.WithParticipant(actor, domain.RoleOwner)
}

func (r *ThreadRequest) WithAdmin(actor domain.Actor) *ThreadRequest {
	return r.WithParticipant(actor, domain.RoleAdmin)
}

func (r *ThreadRequest) WithMember(actor domain.Actor) *ThreadRequest {
	return r.WithParticipant(actor, domain.RoleMember)
}

// WithParticipant добавляет актора; повторное добавление только меняет роль.
func (r *ThreadRequest) WithParticipant(actor domain.Actor, role domain.ParticipantRole) *ThreadRequest {
	for i := range r.Members {
		if r.Members[i].Actor.Equal(actor) {
			r.Members[i].Role = role
			return r
		}
	}
	r.Members = append(r.Members, hasher.Member{Actor: actor, Role: role})
	return r
}

func (r *ThreadRequest) WithMetadata(metadata map[string]interface{}) *ThreadRequest {
	r.Metadata = metadata
	return r
}

func (r *ThreadRequest) WithPermissions(permissions map[string]interface{}) *ThreadRequest {
	r.Permissions = permissions
	return r
}

// AlwaysNew создает тред даже при наличии треда с тем же составом.
func (r *ThreadRequest) AlwaysNew() *ThreadRequest {
	r.SkipDedup = true
	return r
}

func (r *ThreadRequest) validate() error {
	if r.Type == "" {
		r.Type = domain.ThreadTypeGroup
	}
	if !r.Type.Valid() {
		return apperrors.Validation("type", "unknown thread type "+string(r.Type))
	}
	if len(r.Members) == 0 {
		return apperrors.Validation("participants", "thread requires at least one participant")
	}
	if need := r.Type.RequiredParticipants(); need > 0 && len(r.Members) != need {
		return apperrors.Validation("participants", "direct thread requires exactly 2 participants")
	}
	for _, m := range r.Members {
		if m.Actor.Type == "" || m.Actor.ID == "" {
			return apperrors.Validation("participants", "participant actor type and id are required")
		}
		if !m.Role.Valid() {
			return apperrors.Validation("role", "unknown participant role "+string(m.Role))
		}
	}
	return nil
}

type ThreadUpdate struct {
	Name     *string
	Metadata map[string]interface{}
}

type ThreadService interface {
	Create(ctx context.Context, req *ThreadRequest) (*domain.Thread, error)
	Between(ctx context.Context, a, b domain.Actor) (*domain.Thread, error)
	// FindDirect возвращает nil, nil если личной переписки еще нет.
	FindDirect(ctx context.Context, a, b domain.Actor) (*domain.Thread, error)
	Get(ctx context.Context, actor domain.Actor, threadID int64) (*domain.Thread, error)
	ListForActor(ctx context.Context, actor domain.Actor, limit, offset int) ([]*domain.Thread, error)
	Update(ctx context.Context, actor domain.Actor, threadID int64, update ThreadUpdate) (*domain.Thread, error)
	Lock(ctx context.Context, actor domain.Actor, threadID int64) (*domain.Thread, error)
	Unlock(ctx context.Context, actor domain.Actor, threadID int64) (*domain.Thread, error)
	Delete(ctx context.Context, actor domain.Actor, threadID int64) error
	UnreadCount(ctx context.Context, actor domain.Actor, threadID int64) (int, error)
	// UnreadTotal считает непрочитанное по всем тредам, где актор остается участником.
	UnreadTotal(ctx context.Context, actor domain.Actor) (int, error)
}

type threadService struct {
	*base
}

func NewThreadService(b *base) ThreadService {
	return &threadService{base: b}
}

func (s *threadService) hashFor(req *ThreadRequest) *string {
	if !s.cfg.Threads.HashParticipants || req.SkipDedup {
		return nil
	}
	hash := hasher.Generate(req.Members, s.cfg.Threads.IncludeRolesInHash, req.Type)
	return &hash
}

func (s *threadService) findByHash(ctx context.Context, hash string) (*domain.Thread, error) {
	thread, err := s.store.Threads().FindByHash(ctx, hash)
	if apperrors.IsNotFound(err) {
		return nil, nil
	}
	return thread, err
}

func (s *threadService) Create(ctx context.Context, req *ThreadRequest) (*domain.Thread, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	hash := s.hashFor(req)
	if hash != nil {
		existing, err := s.findByHash(ctx, *hash)
		if err != nil {
			s.log.Error("Failed to find thread by hash", "error", err)
			return nil, err
		}
		if existing != nil {
			if !s.cfg.Threads.AllowDuplicates {
				return existing, nil
			}
			// Дубликат разрешен, но hash уникален: новый тред остается без него.
			hash = nil
		}
	}

	thread, err := s.insert(ctx, req, hash)
	if errors.Is(err, repository.ErrDuplicateHash) {
		// Параллельный запрос успел создать тред с тем же составом.
		if s.cfg.Threads.AllowDuplicates {
			thread, err = s.insert(ctx, req, nil)
		} else {
			thread, err = s.findByHash(ctx, *hash)
			if err == nil && thread == nil {
				err = apperrors.NotFound("thread")
			}
			if err == nil {
				return thread, nil
			}
		}
	}
	if err != nil {
		s.log.Error("Failed to create thread", "error", err, "type", req.Type)
		return nil, err
	}

	evs := []domain.Event{s.event(domain.EventThreadCreated).WithThread(thread)}
	for _, p := range thread.Participants {
		evs = append(evs, s.event(domain.EventParticipantAdded).WithParticipant(p).WithActor(p.Actor))
	}
	s.emit(ctx, evs...)

	s.log.Info("Thread created", "thread_id", thread.ID, "type", thread.Type, "participants", len(thread.Participants))

	return thread, nil
}

func (s *threadService) insert(ctx context.Context, req *ThreadRequest, hash *string) (*domain.Thread, error) {
	now := s.now()
	thread := &domain.Thread{
		Type:        req.Type,
		Name:        req.Name,
		Hash:        hash,
		Metadata:    req.Metadata,
		Permissions: req.Permissions,
		CreatedAt:   now,
	}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Threads().Create(ctx, thread); err != nil {
			return err
		}
		for _, m := range req.Members {
			p := &domain.ThreadParticipant{
				ThreadID: thread.ID,
				Actor:    m.Actor,
				Role:     m.Role,
				JoinedAt: now,
			}
			if err := tx.Participants().Create(ctx, p); err != nil {
				return err
			}
			thread.Participants = append(thread.Participants, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return thread, nil
}

func (s *threadService) Between(ctx context.Context, a, b domain.Actor) (*domain.Thread, error) {
	return s.Create(ctx, Between(a, b))
}

func (s *threadService) FindDirect(ctx context.Context, a, b domain.Actor) (*domain.Thread, error) {
	req := Between(a, b)
	if err := req.validate(); err != nil {
		return nil, err
	}
	hash := hasher.Generate(req.Members, s.cfg.Threads.IncludeRolesInHash, req.Type)
	return s.findByHash(ctx, hash)
}

func (s *threadService) Get(ctx context.Context, actor domain.Actor, threadID int64) (*domain.Thread, error) {
	thread, err := s.loadThread(ctx, s.store, threadID)
	if err != nil {
		return nil, err
	}
	if !s.threads.View(actor, thread) {
		return nil, apperrors.Forbidden("actor is not a participant of this thread")
	}
	return thread, nil
}

func (s *threadService) ListForActor(ctx context.Context, actor domain.Actor, limit, offset int) ([]*domain.Thread, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	threads, err := s.store.Threads().ListForActor(ctx, actor, limit, offset)
	if err != nil {
		s.log.Error("Failed to list threads", "error", err, "actor", actor.String())
		return nil, err
	}
	return threads, nil
}

func (s *threadService) Update(ctx context.Context, actor domain.Actor, threadID int64, update ThreadUpdate) (*domain.Thread, error) {
	return s.mutate(ctx, actor, threadID, func(thread *domain.Thread) map[string]interface{} {
		changes := make(map[string]interface{})
		if update.Name != nil {
			thread.Name = update.Name
			changes["name"] = *update.Name
		}
		if update.Metadata != nil {
			thread.Metadata = update.Metadata
			changes["metadata"] = update.Metadata
		}
		return changes
	})
}

func (s *threadService) Lock(ctx context.Context, actor domain.Actor, threadID int64) (*domain.Thread, error) {
	return s.mutate(ctx, actor, threadID, func(thread *domain.Thread) map[string]interface{} {
		thread.Lock()
		return map[string]interface{}{"is_locked": true}
	})
}

func (s *threadService) Unlock(ctx context.Context, actor domain.Actor, threadID int64) (*domain.Thread, error) {
	return s.mutate(ctx, actor, threadID, func(thread *domain.Thread) map[string]interface{} {
		thread.Unlock()
		return map[string]interface{}{"is_locked": false}
	})
}

// mutate применяет изменение под политикой update и публикует thread.updated.
func (s *threadService) mutate(ctx context.Context, actor domain.Actor, threadID int64, apply func(*domain.Thread) map[string]interface{}) (*domain.Thread, error) {
	thread, err := s.loadThread(ctx, s.store, threadID)
	if err != nil {
		return nil, err
	}
	if !s.threads.Update(actor, thread) {
		return nil, apperrors.Forbidden("only admins and owners can update the thread")
	}

	changes := apply(thread)
	if len(changes) == 0 {
		return thread, nil
	}
	if err := s.store.Threads().Update(ctx, thread); err != nil {
		s.log.Error("Failed to update thread", "error", err, "thread_id", threadID)
		return nil, err
	}

	s.emit(ctx, s.event(domain.EventThreadUpdated).WithThread(thread).WithActor(actor).WithData("changes", changes))
	return thread, nil
}

func (s *threadService) Delete(ctx context.Context, actor domain.Actor, threadID int64) error {
	thread, err := s.loadThread(ctx, s.store, threadID)
	if err != nil {
		return err
	}
	if !s.threads.Delete(actor, thread) {
		return apperrors.Forbidden("only the owner can delete the thread")
	}

	var attachments []*domain.MessageAttachment
	if s.cfg.Attachments.DeleteFilesOnDelete {
		if attachments, err = s.store.Attachments().ListByThread(ctx, threadID); err != nil {
			s.log.Error("Failed to list thread attachments", "error", err, "thread_id", threadID)
			return err
		}
	}

	if err := s.store.Threads().Delete(ctx, threadID); err != nil {
		s.log.Error("Failed to delete thread", "error", err, "thread_id", threadID)
		return err
	}
	s.removeFiles(ctx, attachments)

	s.emit(ctx, s.event(domain.EventThreadDeleted).WithThread(thread).WithActor(actor))

	s.log.Info("Thread deleted", "thread_id", threadID, "actor", actor.String())

	return nil
}

func (s *threadService) UnreadCount(ctx context.Context, actor domain.Actor, threadID int64) (int, error) {
	thread, err := s.Get(ctx, actor, threadID)
	if err != nil {
		return 0, err
	}
	return s.store.Messages().CountUnread(ctx, thread.ID, actor)
}

func (s *threadService) UnreadTotal(ctx context.Context, actor domain.Actor) (int, error) {
	total, err := s.store.Messages().CountUnreadTotal(ctx, actor)
	if err != nil {
		s.log.Error("Failed to count unread messages", "error", err, "actor", actor.String())
		return 0, err
	}
	return total, nil
}

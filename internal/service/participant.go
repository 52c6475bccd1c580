package service

import (
	"context"

	"chat_engine/internal/domain"
	"chat_engine/internal/repository"
	apperrors "chat_engine/pkg/errors"
)

type ParticipantService interface {
	// Add идемпотентен для активного участника и возвращает покинувшего тред участника обратно.
	// Без проверки прав by может только сам вступить рядовым участником.
	Add(ctx context.Context, threadID int64, actor domain.Actor, role domain.ParticipantRole, by domain.Actor) (*domain.ThreadParticipant, error)
	Remove(ctx context.Context, threadID int64, actor domain.Actor, by domain.Actor) (bool, error)
	UpdateRole(ctx context.Context, threadID int64, actor domain.Actor, role domain.ParticipantRole, by domain.Actor) (*domain.ThreadParticipant, error)
	TransferOwnership(ctx context.Context, threadID int64, currentOwner, newOwner domain.Actor) error
	Leave(ctx context.Context, threadID int64, actor domain.Actor) error
	List(ctx context.Context, threadID int64, viewer domain.Actor) ([]*domain.ThreadParticipant, error)

	LockChat(ctx context.Context, threadID int64, actor domain.Actor, pin string) error
	UnlockChat(ctx context.Context, threadID int64, actor domain.Actor, pin string) error
	SetPublicKey(ctx context.Context, threadID int64, actor domain.Actor, publicKey string) (*domain.ThreadParticipant, error)
	VerifySecurity(ctx context.Context, threadID int64, actor, other domain.Actor) (bool, error)
}

type participantService struct {
	*base
}

func NewParticipantService(b *base) ParticipantService {
	return &participantService{base: b}
}

func (s *participantService) Add(ctx context.Context, threadID int64, actor domain.Actor, role domain.ParticipantRole, by domain.Actor) (*domain.ThreadParticipant, error) {
	if role == "" {
		role = domain.RoleMember
	}
	if !role.Valid() {
		return nil, apperrors.Validation("role", "unknown participant role "+string(role))
	}
	thread, err := s.loadThread(ctx, s.store, threadID)
	if err != nil {
		return nil, err
	}
	selfJoin := by.Equal(actor) && role == domain.RoleMember
	if !selfJoin && !s.threads.AddParticipant(by, thread) {
		return nil, apperrors.Forbidden("only admins and owners can add participants")
	}

	participant := thread.Participant(actor)
	switch {
	case participant != nil && participant.IsActive():
		return participant, nil
	case participant != nil:
		participant.Rejoin(s.now())
		participant.Role = role
		err = s.store.Participants().Update(ctx, participant)
	default:
		if thread.IsDirect() {
			return nil, apperrors.Validation("participants", "direct thread participants cannot change")
		}
		participant = &domain.ThreadParticipant{
			ThreadID: threadID,
			Actor:    actor,
			Role:     role,
			JoinedAt: s.now(),
		}
		err = s.store.Participants().Create(ctx, participant)
	}
	if err != nil {
		s.log.Error("Failed to add participant", "error", err, "thread_id", threadID, "actor", actor.String())
		return nil, err
	}

	s.emit(ctx, s.event(domain.EventParticipantAdded).WithThread(thread).WithParticipant(participant).WithActor(by))

	s.log.Info("Participant added", "thread_id", threadID, "actor", actor.String(), "role", role)

	return participant, nil
}

func (s *participantService) Remove(ctx context.Context, threadID int64, actor domain.Actor, by domain.Actor) (bool, error) {
	thread, err := s.loadThread(ctx, s.store, threadID)
	if err != nil {
		return false, err
	}
	if !by.Equal(actor) && !s.threads.RemoveParticipant(by, thread) {
		return false, apperrors.Forbidden("only admins and owners can remove participants")
	}
	return s.leave(ctx, thread, actor, by)
}

func (s *participantService) Leave(ctx context.Context, threadID int64, actor domain.Actor) error {
	thread, err := s.loadThread(ctx, s.store, threadID)
	if err != nil {
		return err
	}
	if !s.threads.Leave(actor, thread) {
		return apperrors.Forbidden("actor is not an active participant of this thread")
	}
	_, err = s.leave(ctx, thread, actor, actor)
	return err
}

func (s *participantService) leave(ctx context.Context, thread *domain.Thread, actor domain.Actor, by domain.Actor) (bool, error) {
	participant := thread.ActiveParticipant(actor)
	if participant == nil {
		return false, nil
	}
	participant.Leave(s.now())
	if err := s.store.Participants().Update(ctx, participant); err != nil {
		s.log.Error("Failed to remove participant", "error", err, "thread_id", thread.ID, "actor", actor.String())
		return false, err
	}

	s.emit(ctx, s.event(domain.EventParticipantRemoved).WithThread(thread).WithParticipant(participant).WithActor(by))
	return true, nil
}

func (s *participantService) UpdateRole(ctx context.Context, threadID int64, actor domain.Actor, role domain.ParticipantRole, by domain.Actor) (*domain.ThreadParticipant, error) {
	if !role.Valid() {
		return nil, apperrors.Validation("role", "unknown participant role "+string(role))
	}
	thread, err := s.loadThread(ctx, s.store, threadID)
	if err != nil {
		return nil, err
	}
	if !s.threads.Update(by, thread) {
		return nil, apperrors.Forbidden("only admins and owners can change roles")
	}
	participant := thread.ActiveParticipant(actor)
	if participant == nil {
		return nil, apperrors.NotFound("participant")
	}
	if participant.Role == role {
		return participant, nil
	}

	previous := participant.Role
	participant.Role = role
	if err := s.store.Participants().Update(ctx, participant); err != nil {
		s.log.Error("Failed to update participant role", "error", err, "thread_id", threadID, "actor", actor.String())
		return nil, err
	}

	s.emit(ctx, s.event(domain.EventParticipantRoleUpdated).WithThread(thread).WithParticipant(participant).
		WithActor(by).WithData("previous_role", string(previous)))
	return participant, nil
}

// TransferOwnership понижает текущего владельца до admin и повышает нового в одной транзакции.
func (s *participantService) TransferOwnership(ctx context.Context, threadID int64, currentOwner, newOwner domain.Actor) error {
	thread, err := s.loadThread(ctx, s.store, threadID)
	if err != nil {
		return err
	}
	current := thread.ActiveParticipant(currentOwner)
	if current == nil || current.Role != domain.RoleOwner {
		return apperrors.Validation("owner", "current actor is not the thread owner")
	}
	next := thread.ActiveParticipant(newOwner)
	if next == nil {
		return apperrors.Validation("new_owner", "new owner must be an active participant")
	}
	if current.Actor.Equal(next.Actor) {
		return nil
	}

	nextPrevious := next.Role
	current.Role = domain.RoleAdmin
	next.Role = domain.RoleOwner
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Participants().Update(ctx, current); err != nil {
			return err
		}
		return tx.Participants().Update(ctx, next)
	})
	if err != nil {
		s.log.Error("Failed to transfer ownership", "error", err, "thread_id", threadID)
		return err
	}

	s.emit(ctx,
		s.event(domain.EventParticipantRoleUpdated).WithThread(thread).WithParticipant(current).
			WithActor(currentOwner).WithData("previous_role", string(domain.RoleOwner)),
		s.event(domain.EventParticipantRoleUpdated).WithThread(thread).WithParticipant(next).
			WithActor(currentOwner).WithData("previous_role", string(nextPrevious)),
	)

	s.log.Info("Thread ownership transferred", "thread_id", threadID, "from", currentOwner.String(), "to", newOwner.String())

	return nil
}

func (s *participantService) List(ctx context.Context, threadID int64, viewer domain.Actor) ([]*domain.ThreadParticipant, error) {
	thread, err := s.loadThread(ctx, s.store, threadID)
	if err != nil {
		return nil, err
	}
	if !s.threads.View(viewer, thread) {
		return nil, apperrors.Forbidden("actor is not a participant of this thread")
	}
	return thread.ActiveParticipants(), nil
}

func (s *participantService) active(ctx context.Context, threadID int64, actor domain.Actor) (*domain.ThreadParticipant, error) {
	participant, err := s.store.Participants().Get(ctx, threadID, actor)
	if err != nil {
		return nil, err
	}
	if !participant.IsActive() {
		return nil, apperrors.Forbidden("actor has left this thread")
	}
	return participant, nil
}

func (s *participantService) LockChat(ctx context.Context, threadID int64, actor domain.Actor, pin string) error {
	if pin == "" {
		return apperrors.Validation("pin", "pin cannot be empty")
	}
	participant, err := s.active(ctx, threadID, actor)
	if err != nil {
		return err
	}
	if err := participant.LockChat(pin); err != nil {
		return err
	}
	if err := s.store.Participants().Update(ctx, participant); err != nil {
		s.log.Error("Failed to lock chat", "error", err, "thread_id", threadID, "actor", actor.String())
		return err
	}
	return nil
}

func (s *participantService) UnlockChat(ctx context.Context, threadID int64, actor domain.Actor, pin string) error {
	participant, err := s.active(ctx, threadID, actor)
	if err != nil {
		return err
	}
	if !participant.IsChatLocked() {
		return nil
	}
	if !participant.CheckPin(pin) {
		return apperrors.Forbidden("invalid pin")
	}
	participant.UnlockChat()
	if err := s.store.Participants().Update(ctx, participant); err != nil {
		s.log.Error("Failed to unlock chat", "error", err, "thread_id", threadID, "actor", actor.String())
		return err
	}
	return nil
}

func (s *participantService) SetPublicKey(ctx context.Context, threadID int64, actor domain.Actor, publicKey string) (*domain.ThreadParticipant, error) {
	if publicKey == "" {
		return nil, apperrors.Validation("public_key", "public key cannot be empty")
	}
	participant, err := s.active(ctx, threadID, actor)
	if err != nil {
		return nil, err
	}
	participant.SetPublicKey(publicKey)
	if err := s.store.Participants().Update(ctx, participant); err != nil {
		s.log.Error("Failed to set public key", "error", err, "thread_id", threadID, "actor", actor.String())
		return nil, err
	}
	return participant, nil
}

func (s *participantService) VerifySecurity(ctx context.Context, threadID int64, actor, other domain.Actor) (bool, error) {
	thread, err := s.loadThread(ctx, s.store, threadID)
	if err != nil {
		return false, err
	}
	p, q := thread.ActiveParticipant(actor), thread.ActiveParticipant(other)
	if p == nil || q == nil {
		return false, apperrors.Forbidden("both actors must be active participants")
	}
	return p.VerifySecurityWith(q), nil
}

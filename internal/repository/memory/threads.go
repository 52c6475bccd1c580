package memory

import (
	"context"
	"sort"

	"chat_engine/internal/domain"
	"chat_engine/internal/repository"
	apperrors "chat_engine/pkg/errors"
)

type threadRepo struct{ s *Store }

func (r threadRepo) Create(ctx context.Context, thread *domain.Thread) error {
	defer r.s.lock()()
	st := r.s.st
	if thread.Hash != nil {
		if _, exists := st.hashes[*thread.Hash]; exists {
			return repository.ErrDuplicateHash
		}
	}
	thread.ID = st.nextID()
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = r.s.now()
	}
	st.threads[thread.ID] = storedThread(thread)
	if thread.Hash != nil {
		st.hashes[*thread.Hash] = thread.ID
	}
	return nil
}

func storedThread(thread *domain.Thread) domain.Thread {
	stored := *thread
	stored.Name = copyString(thread.Name)
	stored.Hash = copyString(thread.Hash)
	stored.Metadata = copyMap(thread.Metadata)
	stored.Permissions = copyMap(thread.Permissions)
	stored.Participants = nil
	return stored
}

func (r threadRepo) load(id int64) (*domain.Thread, error) {
	stored, ok := r.s.st.threads[id]
	if !ok {
		return nil, apperrors.NotFound("thread")
	}
	thread := storedThread(&stored)
	thread.Participants = participantsOf(r.s.st, id)
	return &thread, nil
}

func participantsOf(st *state, threadID int64) []*domain.ThreadParticipant {
	var out []*domain.ThreadParticipant
	for _, p := range st.participants {
		if p.ThreadID == threadID {
			out = append(out, copyParticipant(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r threadRepo) GetByID(ctx context.Context, id int64) (*domain.Thread, error) {
	defer r.s.lock()()
	return r.load(id)
}

func (r threadRepo) FindByHash(ctx context.Context, hash string) (*domain.Thread, error) {
	defer r.s.lock()()
	id, ok := r.s.st.hashes[hash]
	if !ok {
		return nil, apperrors.NotFound("thread")
	}
	return r.load(id)
}

func (r threadRepo) Update(ctx context.Context, thread *domain.Thread) error {
	defer r.s.lock()()
	stored, ok := r.s.st.threads[thread.ID]
	if !ok {
		return apperrors.NotFound("thread")
	}
	stored.Name = copyString(thread.Name)
	stored.Metadata = copyMap(thread.Metadata)
	stored.Permissions = copyMap(thread.Permissions)
	stored.IsLocked = thread.IsLocked
	r.s.st.threads[thread.ID] = stored
	return nil
}

// Delete удаляет тред и каскадно всех участников, сообщения и их зависимые записи.
func (r threadRepo) Delete(ctx context.Context, id int64) error {
	defer r.s.lock()()
	st := r.s.st
	stored, ok := st.threads[id]
	if !ok {
		return apperrors.NotFound("thread")
	}
	for pid, p := range st.participants {
		if p.ThreadID == id {
			delete(st.participants, pid)
		}
	}
	for mid, m := range st.messages {
		if m.ThreadID == id {
			deleteMessageCascade(st, mid)
		}
	}
	if stored.Hash != nil {
		delete(st.hashes, *stored.Hash)
	}
	delete(st.threads, id)
	return nil
}

func (r threadRepo) ListForActor(ctx context.Context, actor domain.Actor, limit, offset int) ([]*domain.Thread, error) {
	defer r.s.lock()()
	var ids []int64
	for _, p := range r.s.st.participants {
		if p.Actor.Equal(actor) {
			ids = append(ids, p.ThreadID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	if offset >= len(ids) {
		return []*domain.Thread{}, nil
	}
	ids = ids[offset:]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	threads := make([]*domain.Thread, 0, len(ids))
	for _, id := range ids {
		thread, err := r.load(id)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

type participantRepo struct{ s *Store }

func copyParticipant(p domain.ThreadParticipant) *domain.ThreadParticipant {
	c := p
	c.LeftAt = copyTime(p.LeftAt)
	c.ChatLockPin = copyString(p.ChatLockPin)
	c.PublicKey = copyString(p.PublicKey)
	c.SecurityCode = copyString(p.SecurityCode)
	return &c
}

func (r participantRepo) Create(ctx context.Context, participant *domain.ThreadParticipant) error {
	defer r.s.lock()()
	st := r.s.st
	if _, ok := st.threads[participant.ThreadID]; !ok {
		return apperrors.NotFound("thread")
	}
	for _, p := range st.participants {
		if p.ThreadID == participant.ThreadID && p.Actor.Equal(participant.Actor) {
			return apperrors.Conflict("participant already exists")
		}
	}
	participant.ID = st.nextID()
	if participant.JoinedAt.IsZero() {
		participant.JoinedAt = r.s.now()
	}
	if participant.Role == "" {
		participant.Role = domain.RoleMember
	}
	st.participants[participant.ID] = *copyParticipant(*participant)
	return nil
}

func (r participantRepo) Update(ctx context.Context, participant *domain.ThreadParticipant) error {
	defer r.s.lock()()
	if _, ok := r.s.st.participants[participant.ID]; !ok {
		return apperrors.NotFound("participant")
	}
	r.s.st.participants[participant.ID] = *copyParticipant(*participant)
	return nil
}

func (r participantRepo) Get(ctx context.Context, threadID int64, actor domain.Actor) (*domain.ThreadParticipant, error) {
	defer r.s.lock()()
	for _, p := range r.s.st.participants {
		if p.ThreadID == threadID && p.Actor.Equal(actor) {
			return copyParticipant(p), nil
		}
	}
	return nil, apperrors.NotFound("participant")
}

func (r participantRepo) ListByThread(ctx context.Context, threadID int64) ([]*domain.ThreadParticipant, error) {
	defer r.s.lock()()
	return participantsOf(r.s.st, threadID), nil
}

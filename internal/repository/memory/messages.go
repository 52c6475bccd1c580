package memory

import (
	"context"
	"sort"
	"time"

	"chat_engine/internal/domain"
	"chat_engine/internal/repository"
	apperrors "chat_engine/pkg/errors"
)

type messageRepo struct{ s *Store }

func storedMessage(m *domain.Message) domain.Message {
	stored := *m
	stored.Author = copyActor(m.Author)
	stored.Payload = copyMap(m.Payload)
	stored.EncryptionDriver = copyString(m.EncryptionDriver)
	stored.DeletedAt = copyTime(m.DeletedAt)
	stored.DeletedBy = copyActor(m.DeletedBy)
	stored.Versions = nil
	stored.Deliveries = nil
	stored.Deletions = nil
	stored.Attachments = nil
	stored.Reactions = nil
	return stored
}

func (r messageRepo) Create(ctx context.Context, message *domain.Message) error {
	defer r.s.lock()()
	st := r.s.st
	if _, ok := st.threads[message.ThreadID]; !ok {
		return apperrors.NotFound("thread")
	}
	message.ID = st.nextID()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = r.s.now()
	}
	st.messages[message.ID] = storedMessage(message)
	return nil
}

// hydrate собирает сообщение со всеми связанными записями.
func hydrate(st *state, stored domain.Message) *domain.Message {
	m := storedMessage(&stored)
	for _, v := range st.versions {
		if v.MessageID == m.ID {
			m.Versions = append(m.Versions, copyVersion(v))
		}
	}
	sort.Slice(m.Versions, func(i, j int) bool {
		if m.Versions[i].CreatedAt.Equal(m.Versions[j].CreatedAt) {
			return m.Versions[i].ID < m.Versions[j].ID
		}
		return m.Versions[i].CreatedAt.Before(m.Versions[j].CreatedAt)
	})
	for k, d := range st.deliveries {
		if k.MessageID == m.ID {
			m.Deliveries = append(m.Deliveries, copyDelivery(d))
		}
	}
	sort.Slice(m.Deliveries, func(i, j int) bool {
		return m.Deliveries[i].Actor.String() < m.Deliveries[j].Actor.String()
	})
	for k, d := range st.deletions {
		if k.MessageID == m.ID {
			deletion := d
			m.Deletions = append(m.Deletions, &deletion)
		}
	}
	m.Attachments = attachmentsOf(st, m.ID)
	m.Reactions = reactionsOf(st, m.ID)
	return &m
}

func (r messageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	defer r.s.lock()()
	stored, ok := r.s.st.messages[id]
	if !ok {
		return nil, apperrors.NotFound("message")
	}
	return hydrate(r.s.st, stored), nil
}

func (r messageRepo) UpdatePayload(ctx context.Context, message *domain.Message) error {
	defer r.s.lock()()
	stored, ok := r.s.st.messages[message.ID]
	if !ok {
		return apperrors.NotFound("message")
	}
	stored.Payload = copyMap(message.Payload)
	stored.Encrypted = message.Encrypted
	stored.EncryptionDriver = copyString(message.EncryptionDriver)
	r.s.st.messages[message.ID] = stored
	return nil
}

func (r messageRepo) SetDeleted(ctx context.Context, id int64, deletedAt *time.Time, deletedBy *domain.Actor) error {
	defer r.s.lock()()
	stored, ok := r.s.st.messages[id]
	if !ok {
		return apperrors.NotFound("message")
	}
	stored.DeletedAt = copyTime(deletedAt)
	stored.DeletedBy = copyActor(deletedBy)
	r.s.st.messages[id] = stored
	return nil
}

func (r messageRepo) Delete(ctx context.Context, id int64) error {
	defer r.s.lock()()
	if _, ok := r.s.st.messages[id]; !ok {
		return apperrors.NotFound("message")
	}
	deleteMessageCascade(r.s.st, id)
	return nil
}

func deleteMessageCascade(st *state, id int64) {
	for vid, v := range st.versions {
		if v.MessageID == id {
			delete(st.versions, vid)
		}
	}
	for k := range st.deliveries {
		if k.MessageID == id {
			delete(st.deliveries, k)
		}
	}
	for k := range st.deletions {
		if k.MessageID == id {
			delete(st.deletions, k)
		}
	}
	for aid, a := range st.attachments {
		if a.MessageID == id {
			delete(st.attachments, aid)
		}
	}
	for k := range st.reactions {
		if k.MessageID == id {
			delete(st.reactions, k)
		}
	}
	for k := range st.bookmarks {
		if k.MessageID == id {
			delete(st.bookmarks, k)
		}
	}
	delete(st.messages, id)
}

func (r messageRepo) threadMessages(threadID int64) []domain.Message {
	var out []domain.Message
	for _, m := range r.s.st.messages {
		if m.ThreadID == threadID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r messageRepo) ListByThread(ctx context.Context, threadID int64, limit int, beforeID int64) ([]*domain.Message, error) {
	defer r.s.lock()()
	messages := make([]*domain.Message, 0)
	for _, m := range r.threadMessages(threadID) {
		if beforeID > 0 && m.ID >= beforeID {
			continue
		}
		messages = append(messages, hydrate(r.s.st, m))
		if limit > 0 && len(messages) == limit {
			break
		}
	}
	return messages, nil
}

func (r messageRepo) ListUnmarked(ctx context.Context, threadID int64, actor domain.Actor, kind repository.MarkKind) ([]int64, error) {
	defer r.s.lock()()
	var ids []int64
	for _, m := range r.threadMessages(threadID) {
		if m.DeletedAt != nil || m.Sender.Equal(actor) {
			continue
		}
		d, ok := r.s.st.deliveries[domain.NewDeliveryKey(m.ID, actor)]
		if ok && ((kind == repository.MarkRead && d.ReadAt != nil) || (kind == repository.MarkDelivered && d.DeliveredAt != nil)) {
			continue
		}
		ids = append(ids, m.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r messageRepo) CountUnread(ctx context.Context, threadID int64, actor domain.Actor) (int, error) {
	defer r.s.lock()()
	return r.countUnread(threadID, actor), nil
}

func (r messageRepo) countUnread(threadID int64, actor domain.Actor) int {
	count := 0
	for _, m := range r.threadMessages(threadID) {
		if m.DeletedAt != nil || m.Sender.Equal(actor) {
			continue
		}
		key := domain.NewDeliveryKey(m.ID, actor)
		if _, hidden := r.s.st.deletions[key]; hidden {
			continue
		}
		if d, ok := r.s.st.deliveries[key]; ok && d.ReadAt != nil {
			continue
		}
		count++
	}
	return count
}

func (r messageRepo) CountUnreadTotal(ctx context.Context, actor domain.Actor) (int, error) {
	defer r.s.lock()()
	total := 0
	for _, p := range r.s.st.participants {
		if p.Actor.Equal(actor) && p.IsActive() {
			total += r.countUnread(p.ThreadID, actor)
		}
	}
	return total, nil
}

type versionRepo struct{ s *Store }

func copyVersion(v domain.MessageVersion) *domain.MessageVersion {
	c := v
	c.Payload = copyMap(v.Payload)
	c.EncryptionDriver = copyString(v.EncryptionDriver)
	return &c
}

func (r versionRepo) Create(ctx context.Context, version *domain.MessageVersion) error {
	defer r.s.lock()()
	if _, ok := r.s.st.messages[version.MessageID]; !ok {
		return apperrors.NotFound("message")
	}
	version.ID = r.s.st.nextID()
	if version.CreatedAt.IsZero() {
		version.CreatedAt = r.s.now()
	}
	r.s.st.versions[version.ID] = *copyVersion(*version)
	return nil
}

func (r versionRepo) ListByMessage(ctx context.Context, messageID int64) ([]*domain.MessageVersion, error) {
	defer r.s.lock()()
	m, ok := r.s.st.messages[messageID]
	if !ok {
		return nil, apperrors.NotFound("message")
	}
	return hydrate(r.s.st, m).Versions, nil
}

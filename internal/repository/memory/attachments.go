package memory

import (
	"context"
	"sort"
	"time"

	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"
)

type attachmentRepo struct{ s *Store }

func copyAttachment(a domain.MessageAttachment) *domain.MessageAttachment {
	c := a
	c.ViewedAt = copyTime(a.ViewedAt)
	c.Caption = copyString(a.Caption)
	c.ThumbnailPath = copyString(a.ThumbnailPath)
	c.Blurhash = copyString(a.Blurhash)
	c.Metadata = copyMap(a.Metadata)
	return &c
}

func attachmentsOf(st *state, messageID int64) []*domain.MessageAttachment {
	var out []*domain.MessageAttachment
	for _, a := range st.attachments {
		if a.MessageID == messageID {
			out = append(out, copyAttachment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order == out[j].Order {
			return out[i].ID < out[j].ID
		}
		return out[i].Order < out[j].Order
	})
	return out
}

func (r attachmentRepo) Create(ctx context.Context, attachment *domain.MessageAttachment) error {
	defer r.s.lock()()
	if _, ok := r.s.st.messages[attachment.MessageID]; !ok {
		return apperrors.NotFound("message")
	}
	attachment.ID = r.s.st.nextID()
	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = r.s.now()
	}
	r.s.st.attachments[attachment.ID] = *copyAttachment(*attachment)
	return nil
}

func (r attachmentRepo) GetByID(ctx context.Context, id int64) (*domain.MessageAttachment, error) {
	defer r.s.lock()()
	a, ok := r.s.st.attachments[id]
	if !ok {
		return nil, apperrors.NotFound("attachment")
	}
	return copyAttachment(a), nil
}

func (r attachmentRepo) ListByMessage(ctx context.Context, messageID int64) ([]*domain.MessageAttachment, error) {
	defer r.s.lock()()
	return attachmentsOf(r.s.st, messageID), nil
}

func (r attachmentRepo) ListByThread(ctx context.Context, threadID int64) ([]*domain.MessageAttachment, error) {
	defer r.s.lock()()
	var out []*domain.MessageAttachment
	for _, a := range r.s.st.attachments {
		if m, ok := r.s.st.messages[a.MessageID]; ok && m.ThreadID == threadID {
			out = append(out, copyAttachment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Consume делает compare-and-swap по viewed_at под мьютексом хранилища.
func (r attachmentRepo) Consume(ctx context.Context, id int64, at time.Time) (bool, error) {
	defer r.s.lock()()
	a, ok := r.s.st.attachments[id]
	if !ok {
		return false, apperrors.NotFound("attachment")
	}
	if a.ViewedAt != nil {
		return false, nil
	}
	a.ViewedAt = &at
	r.s.st.attachments[id] = a
	return true, nil
}

type retentionRepo struct{ s *Store }

func (r retentionRepo) PurgeDeletedMessages(ctx context.Context, cutoff time.Time) (int64, error) {
	defer r.s.lock()()
	var n int64
	for id, m := range r.s.st.messages {
		if m.DeletedAt != nil && m.DeletedAt.Before(cutoff) {
			deleteMessageCascade(r.s.st, id)
			n++
		}
	}
	return n, nil
}

func (r retentionRepo) PurgeReadDeliveries(ctx context.Context, cutoff time.Time) (int64, error) {
	defer r.s.lock()()
	var n int64
	for k, d := range r.s.st.deliveries {
		if d.ReadAt != nil && d.ReadAt.Before(cutoff) {
			delete(r.s.st.deliveries, k)
			n++
		}
	}
	return n, nil
}

func (r retentionRepo) PurgeVersions(ctx context.Context, cutoff time.Time) (int64, error) {
	defer r.s.lock()()
	var n int64
	for id, v := range r.s.st.versions {
		if v.CreatedAt.Before(cutoff) {
			delete(r.s.st.versions, id)
			n++
		}
	}
	return n, nil
}

func (r retentionRepo) PurgeOrphanedDeletions(ctx context.Context) (int64, error) {
	defer r.s.lock()()
	var n int64
	for k := range r.s.st.deletions {
		if _, ok := r.s.st.messages[k.MessageID]; !ok {
			delete(r.s.st.deletions, k)
			n++
		}
	}
	return n, nil
}

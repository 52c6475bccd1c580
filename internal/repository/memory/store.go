// Package memory: потокобезопасная реализация repository.Store в памяти.
// Транзакции сериализуются и откатываются по снимку состояния.
package memory

import (
	"context"
	"sync"
	"time"

	"chat_engine/internal/domain"
	"chat_engine/internal/repository"
)

type state struct {
	threads      map[int64]domain.Thread
	hashes       map[string]int64
	participants map[int64]domain.ThreadParticipant
	messages     map[int64]domain.Message
	versions     map[int64]domain.MessageVersion
	deliveries   map[domain.DeliveryKey]domain.MessageDelivery
	deletions    map[domain.DeliveryKey]domain.MessageDeletion
	attachments  map[int64]domain.MessageAttachment
	reactions    map[domain.DeliveryKey]domain.MessageReaction
	bookmarks    map[domain.DeliveryKey]domain.MessageBookmark
	collections  map[int64]domain.BookmarkCollection
	seq          int64
}

func newState() *state {
	return &state{
		threads:      make(map[int64]domain.Thread),
		hashes:       make(map[string]int64),
		participants: make(map[int64]domain.ThreadParticipant),
		messages:     make(map[int64]domain.Message),
		versions:     make(map[int64]domain.MessageVersion),
		deliveries:   make(map[domain.DeliveryKey]domain.MessageDelivery),
		deletions:    make(map[domain.DeliveryKey]domain.MessageDeletion),
		attachments:  make(map[int64]domain.MessageAttachment),
		reactions:    make(map[domain.DeliveryKey]domain.MessageReaction),
		bookmarks:    make(map[domain.DeliveryKey]domain.MessageBookmark),
		collections:  make(map[int64]domain.BookmarkCollection),
	}
}

func (s *state) clone() *state {
	c := &state{
		threads:      make(map[int64]domain.Thread, len(s.threads)),
		hashes:       make(map[string]int64, len(s.hashes)),
		participants: make(map[int64]domain.ThreadParticipant, len(s.participants)),
		messages:     make(map[int64]domain.Message, len(s.messages)),
		versions:     make(map[int64]domain.MessageVersion, len(s.versions)),
		deliveries:   make(map[domain.DeliveryKey]domain.MessageDelivery, len(s.deliveries)),
		deletions:    make(map[domain.DeliveryKey]domain.MessageDeletion, len(s.deletions)),
		attachments:  make(map[int64]domain.MessageAttachment, len(s.attachments)),
		reactions:    make(map[domain.DeliveryKey]domain.MessageReaction, len(s.reactions)),
		bookmarks:    make(map[domain.DeliveryKey]domain.MessageBookmark, len(s.bookmarks)),
		collections:  make(map[int64]domain.BookmarkCollection, len(s.collections)),
		seq:          s.seq,
	}
	for k, v := range s.threads {
		c.threads[k] = v
	}
	for k, v := range s.hashes {
		c.hashes[k] = v
	}
	for k, v := range s.participants {
		c.participants[k] = v
	}
	for k, v := range s.messages {
		c.messages[k] = v
	}
	for k, v := range s.versions {
		c.versions[k] = v
	}
	for k, v := range s.deliveries {
		c.deliveries[k] = v
	}
	for k, v := range s.deletions {
		c.deletions[k] = v
	}
	for k, v := range s.attachments {
		c.attachments[k] = v
	}
	for k, v := range s.reactions {
		c.reactions[k] = v
	}
	for k, v := range s.bookmarks {
		c.bookmarks[k] = v
	}
	for k, v := range s.collections {
		c.collections[k] = v
	}
	return c
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState(), now: time.Now}
}

// lock не блокирует повторно внутри транзакции: мьютекс уже удерживается WithinTx.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.st.clone()
	tx := &Store{mu: s.mu, st: s.st, inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		*s.st = *snapshot
		return err
	}
	return nil
}

func (s *Store) Threads() repository.ThreadRepository           { return threadRepo{s} }
func (s *Store) Participants() repository.ParticipantRepository { return participantRepo{s} }
func (s *Store) Messages() repository.MessageRepository         { return messageRepo{s} }
func (s *Store) Versions() repository.VersionRepository         { return versionRepo{s} }
func (s *Store) Deliveries() repository.DeliveryRepository      { return deliveryRepo{s} }
func (s *Store) Deletions() repository.DeletionRepository       { return deletionRepo{s} }
func (s *Store) Attachments() repository.AttachmentRepository   { return attachmentRepo{s} }
func (s *Store) Reactions() repository.ReactionRepository       { return reactionRepo{s} }
func (s *Store) Bookmarks() repository.BookmarkRepository       { return bookmarkRepo{s} }
func (s *Store) Retention() repository.RetentionRepository      { return retentionRepo{s} }

// Count возвращает число строк по таблицам. Используется в тестах каскадного удаления.
func (s *Store) Count() map[string]int {
	defer s.lock()()
	return map[string]int{
		"threads":      len(s.st.threads),
		"participants": len(s.st.participants),
		"messages":     len(s.st.messages),
		"versions":     len(s.st.versions),
		"deliveries":   len(s.st.deliveries),
		"deletions":    len(s.st.deletions),
		"attachments":  len(s.st.attachments),
		"reactions":    len(s.st.reactions),
		"bookmarks":    len(s.st.bookmarks),
	}
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	c := make(map[string]interface{}, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyActor(a *domain.Actor) *domain.Actor {
	if a == nil {
		return nil
	}
	v := *a
	return &v
}

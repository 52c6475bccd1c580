package service

import (
	"context"
	"testing"
	"time"

	"chat_engine/internal/config"
	"chat_engine/internal/domain"
	"chat_engine/internal/events"
	"chat_engine/internal/repository/memory"
	"chat_engine/internal/storage"
	"chat_engine/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = domain.NewActor("user", "1")
	bob   = domain.NewActor("user", "2")
	carol = domain.NewActor("user", "3")
	bot   = domain.NewActor("bot", "1")
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type fixture struct {
	ctx    context.Context
	svc    *Services
	store  *memory.Store
	files  *storage.LocalStore
	events *events.Collector
	clock  *fakeClock
	cfg    config.ChatConfig
}

func newFixture(t *testing.T, opts ...func(*config.ChatConfig)) *fixture {
	t.Helper()
	cfg := config.DefaultChatConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	collector := events.NewCollector()
	files, err := storage.NewLocalStore(t.TempDir(), "/files", logger.NewNop())
	require.NoError(t, err)

	svc, err := NewServices(Dependencies{
		Store:    store,
		Presence: memory.NewPresence(clock.Now),
		Files:    files,
		Signer:   storage.NewSigner("test-secret", "chat-engine"),
		Events:   collector,
		Config:   cfg,
		Now:      clock.Now,
	}, logger.NewNop())
	require.NoError(t, err)

	return &fixture{
		ctx:    context.Background(),
		svc:    svc,
		store:  store,
		files:  files,
		events: collector,
		clock:  clock,
		cfg:    cfg,
	}
}

func (f *fixture) direct(t *testing.T, a, b domain.Actor) *domain.Thread {
	t.Helper()
	thread, err := f.svc.Threads.Between(f.ctx, a, b)
	require.NoError(t, err)
	return thread
}

// group: владелец alice, admin bob, member carol.
func (f *fixture) group(t *testing.T) *domain.Thread {
	t.Helper()
	thread, err := f.svc.Threads.Create(f.ctx, Group("team").WithOwner(alice).WithAdmin(bob).WithMember(carol))
	require.NoError(t, err)
	return thread
}

func (f *fixture) text(t *testing.T, threadID int64, sender domain.Actor, content string) *domain.Message {
	t.Helper()
	msg, err := f.svc.Messages.Compose(f.ctx, Compose(threadID, sender).Text(content))
	require.NoError(t, err)
	return msg
}

func (f *fixture) reloadThread(t *testing.T, id int64) *domain.Thread {
	t.Helper()
	thread, err := f.store.Threads().GetByID(f.ctx, id)
	require.NoError(t, err)
	return thread
}

func (f *fixture) reload(t *testing.T, id int64) *domain.Message {
	t.Helper()
	msg, err := f.store.Messages().GetByID(f.ctx, id)
	require.NoError(t, err)
	return msg
}

func TestNewServicesRejectsBadPipeline(t *testing.T) {
	cfg := config.DefaultChatConfig()
	cfg.Pipeline = []string{"encrypt", "sanitize"}
	_, err := NewServices(Dependencies{Store: memory.NewStore(), Config: cfg}, logger.NewNop())
	assert.Error(t, err)

	_, err = NewServices(Dependencies{Config: config.DefaultChatConfig()}, logger.NewNop())
	assert.Error(t, err)
}

func TestNewEncryptionManagerRequiresKeyForSymmetric(t *testing.T) {
	_, err := NewEncryptionManager(config.EncryptionConfig{Enabled: true, Driver: "symmetric"})
	assert.Error(t, err)

	manager, err := NewEncryptionManager(config.EncryptionConfig{Enabled: true, Driver: "symmetric", Key: "app-key"})
	require.NoError(t, err)
	assert.True(t, manager.IsEnabled())
	assert.Contains(t, manager.RegisteredDrivers(), "symmetric")
}

// Сценарий целиком: личный тред, отправка, прочтение, правка и удаление для собеседника.
func TestConversationScenario(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)

	m1 := f.text(t, thread.ID, alice, "hi")
	assert.True(t, f.reload(t, m1.ID).IsReadBy(alice))
	assert.False(t, f.reload(t, m1.ID).IsReadBy(bob))

	unread, err := f.svc.Threads.UnreadCount(f.ctx, bob, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	f.clock.Advance(time.Minute)
	delivery, err := f.svc.Deliveries.MarkRead(f.ctx, m1.ID, bob)
	require.NoError(t, err)
	require.NotNil(t, delivery.ReadAt)
	require.NotNil(t, delivery.DeliveredAt)
	assert.Equal(t, *delivery.ReadAt, *delivery.DeliveredAt)

	edited, err := f.svc.Messages.Edit(f.ctx, m1.ID, alice, map[string]interface{}{"content": "hi there"})
	require.NoError(t, err)
	require.Len(t, edited.Versions, 1)

	stored := f.reload(t, m1.ID)
	assert.Equal(t, "hi", stored.Payload["content"])
	assert.Equal(t, "hi there", stored.CurrentPayload()["content"])

	_, err = f.svc.Deletions.DeleteForActor(f.ctx, m1.ID, bob)
	require.NoError(t, err)

	_, err = f.svc.Messages.Get(f.ctx, bob, m1.ID)
	assert.Error(t, err)
	view, err := f.svc.Messages.Get(f.ctx, alice, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi there", view.Content["content"])
	assert.True(t, view.Edited)

	assert.Equal(t, []domain.EventType{
		domain.EventThreadCreated,
		domain.EventParticipantAdded,
		domain.EventParticipantAdded,
		domain.EventMessageSent,
		domain.EventMessageRead,
		domain.EventMessageEdited,
		domain.EventMessageDeletedForActor,
	}, f.events.Types())
}

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"
	"chat_engine/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Интеграционные тесты запускаются только при заданной CHAT_TEST_DATABASE_URL.
func testStore(t *testing.T) Store {
	t.Helper()
	dsn := os.Getenv("CHAT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CHAT_TEST_DATABASE_URL is not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	return NewPostgresStore(pool, logger.NewNop())
}

// uniqueActor изолирует прогоны друг от друга в общей базе.
func uniqueActor() domain.Actor {
	return domain.NewActor("user", uuid.NewString())
}

func seedDirect(t *testing.T, s Store, sender, reader domain.Actor) (*domain.ThreadParticipant, *domain.Message) {
	t.Helper()
	ctx := context.Background()
	thread := &domain.Thread{Type: domain.ThreadTypeDirect}
	require.NoError(t, s.Threads().Create(ctx, thread))
	require.NoError(t, s.Participants().Create(ctx, &domain.ThreadParticipant{ThreadID: thread.ID, Actor: sender}))
	p := &domain.ThreadParticipant{ThreadID: thread.ID, Actor: reader}
	require.NoError(t, s.Participants().Create(ctx, p))
	msg := &domain.Message{
		ThreadID: thread.ID,
		Sender:   sender,
		Type:     domain.MessageTypeText,
		Payload:  map[string]interface{}{"content": "hi"},
	}
	require.NoError(t, s.Messages().Create(ctx, msg))
	return p, msg
}

func TestPostgresCountUnreadTotal(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sender, reader := uniqueActor(), uniqueActor()

	_, read := seedDirect(t, s, sender, reader)
	left, _ := seedDirect(t, s, sender, reader)
	_, hidden := seedDirect(t, s, sender, reader)
	_, kept := seedDirect(t, s, sender, reader)

	total, err := s.Messages().CountUnreadTotal(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	_, err = s.Deliveries().MarkRead(ctx, read.ID, reader, time.Now())
	require.NoError(t, err)
	_, _, err = s.Deletions().Create(ctx, &domain.MessageDeletion{MessageID: hidden.ID, Actor: reader, DeletedAt: time.Now()})
	require.NoError(t, err)
	now := time.Now()
	left.LeftAt = &now
	require.NoError(t, s.Participants().Update(ctx, left))

	total, err = s.Messages().CountUnreadTotal(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	single, err := s.Messages().CountUnread(ctx, kept.ThreadID, reader)
	require.NoError(t, err)
	assert.Equal(t, 1, single)

	own, err := s.Messages().CountUnreadTotal(ctx, sender)
	require.NoError(t, err)
	assert.Zero(t, own)
}

func TestPostgresReactionsAndBookmarks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sender, reader := uniqueActor(), uniqueActor()
	_, msg := seedDirect(t, s, sender, reader)

	require.NoError(t, s.Reactions().Set(ctx, &domain.MessageReaction{MessageID: msg.ID, Actor: reader, Reaction: "like"}))
	require.NoError(t, s.Reactions().Set(ctx, &domain.MessageReaction{MessageID: msg.ID, Actor: reader, Reaction: "love"}))
	loaded, err := s.Messages().GetByID(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Reactions, 1)
	assert.Equal(t, "love", loaded.Reactions[0].Reaction)

	collection := &domain.BookmarkCollection{Owner: reader, Name: "Work"}
	require.NoError(t, s.Bookmarks().CreateCollection(ctx, collection))
	first := &domain.MessageBookmark{MessageID: msg.ID, Actor: reader, Metadata: map[string]interface{}{"note": "later"}}
	require.NoError(t, s.Bookmarks().Save(ctx, first))
	again := &domain.MessageBookmark{MessageID: msg.ID, Actor: reader, CollectionID: &collection.ID, CreatedAt: first.CreatedAt.Add(time.Hour)}
	require.NoError(t, s.Bookmarks().Save(ctx, again))
	assert.True(t, first.CreatedAt.Equal(again.CreatedAt))

	inCollection, err := s.Bookmarks().ListByActor(ctx, reader, &collection.ID)
	require.NoError(t, err)
	assert.Len(t, inCollection, 1)

	require.NoError(t, s.Messages().Delete(ctx, msg.ID))
	_, err = s.Bookmarks().Get(ctx, msg.ID, reader)
	assert.True(t, apperrors.IsNotFound(err))
	reactions, err := s.Reactions().ListByActor(ctx, reader)
	require.NoError(t, err)
	assert.Empty(t, reactions)
}

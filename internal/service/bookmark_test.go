package service

import (
	"testing"
	"time"

	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndUnsaveBookmark(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)
	msg := f.text(t, thread.ID, alice, "keep this")

	_, err := f.svc.Bookmarks.Save(f.ctx, msg.ID, bob, BookmarkRequest{})
	require.NoError(t, err)
	saved, err := f.svc.Bookmarks.IsSaved(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.True(t, saved)

	// повторное сохранение не создает дубликат
	_, err = f.svc.Bookmarks.Save(f.ctx, msg.ID, bob, BookmarkRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.Count()["bookmarks"])

	removed, err := f.svc.Bookmarks.Unsave(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.True(t, removed)
	saved, err = f.svc.Bookmarks.IsSaved(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.False(t, saved)

	assert.Len(t, f.events.OfType(domain.EventMessageBookmarked), 2)
	assert.Len(t, f.events.OfType(domain.EventMessageUnbookmarked), 1)
}

func TestToggleBookmark(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)
	msg := f.text(t, thread.ID, alice, "toggle")

	saved, err := f.svc.Bookmarks.Toggle(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = f.svc.Bookmarks.Toggle(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Zero(t, f.store.Count()["bookmarks"])
}

func TestBookmarksAreIndependentPerActor(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)
	msg := f.text(t, thread.ID, alice, "shared")

	for _, actor := range []domain.Actor{alice, bob} {
		_, err := f.svc.Bookmarks.Save(f.ctx, msg.ID, actor, BookmarkRequest{})
		require.NoError(t, err)
	}
	times, err := f.svc.Bookmarks.TimesSaved(f.ctx, msg.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, times)

	_, err = f.svc.Bookmarks.Unsave(f.ctx, msg.ID, alice)
	require.NoError(t, err)

	aliceSaved, err := f.svc.Bookmarks.IsSaved(f.ctx, msg.ID, alice)
	require.NoError(t, err)
	bobSaved, err := f.svc.Bookmarks.IsSaved(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.False(t, aliceSaved)
	assert.True(t, bobSaved)
}

func TestBookmarkListNewestFirstWithMetadata(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)
	first := f.text(t, thread.ID, alice, "one")
	f.text(t, thread.ID, alice, "two")
	third := f.text(t, thread.ID, alice, "three")

	_, err := f.svc.Bookmarks.Save(f.ctx, first.ID, bob, BookmarkRequest{Metadata: map[string]interface{}{"note": "Remember this"}})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.Bookmarks.Save(f.ctx, third.ID, bob, BookmarkRequest{})
	require.NoError(t, err)

	list, err := f.svc.Bookmarks.List(f.ctx, bob, nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, third.ID, list[0].MessageID)
	assert.Equal(t, first.ID, list[1].MessageID)

	record, err := f.svc.Bookmarks.Get(f.ctx, first.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"note": "Remember this"}, record.Metadata)

	_, err = f.svc.Bookmarks.Get(f.ctx, first.ID, alice)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBookmarkCollections(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)
	msg := f.text(t, thread.ID, bob, "work related")
	other := f.text(t, thread.ID, bob, "personal")

	work, err := f.svc.Bookmarks.CreateCollection(f.ctx, alice, "Work")
	require.NoError(t, err)
	assert.Equal(t, "Work", work.Name)
	assert.Equal(t, alice, work.Owner)
	_, err = f.svc.Bookmarks.CreateCollection(f.ctx, alice, "Personal")
	require.NoError(t, err)
	_, err = f.svc.Bookmarks.CreateCollection(f.ctx, alice, "  ")
	assert.True(t, apperrors.IsValidation(err))

	collections, err := f.svc.Bookmarks.ListCollections(f.ctx, alice)
	require.NoError(t, err)
	assert.Len(t, collections, 2)

	_, err = f.svc.Bookmarks.Save(f.ctx, msg.ID, alice, BookmarkRequest{CollectionID: &work.ID})
	require.NoError(t, err)
	_, err = f.svc.Bookmarks.Save(f.ctx, other.ID, alice, BookmarkRequest{})
	require.NoError(t, err)

	items, err := f.svc.Bookmarks.List(f.ctx, alice, &work.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, msg.ID, items[0].MessageID)

	// чужая коллекция недоступна
	_, err = f.svc.Bookmarks.Save(f.ctx, msg.ID, bob, BookmarkRequest{CollectionID: &work.ID})
	assert.True(t, apperrors.IsForbidden(err))
	_, err = f.svc.Bookmarks.List(f.ctx, bob, &work.ID)
	assert.True(t, apperrors.IsForbidden(err))

	missing := int64(999)
	_, err = f.svc.Bookmarks.Save(f.ctx, msg.ID, alice, BookmarkRequest{CollectionID: &missing})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBookmarkRequiresVisibleMessage(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)
	msg := f.text(t, thread.ID, alice, "private")

	_, err := f.svc.Bookmarks.Save(f.ctx, msg.ID, carol, BookmarkRequest{})
	assert.True(t, apperrors.IsForbidden(err))
	_, err = f.svc.Bookmarks.TimesSaved(f.ctx, msg.ID, carol)
	assert.True(t, apperrors.IsForbidden(err))

	_, err = f.svc.Bookmarks.Save(f.ctx, msg.ID, bob, BookmarkRequest{})
	require.NoError(t, err)
	require.NoError(t, f.svc.Deletions.DeleteGlobally(f.ctx, msg.ID, alice))

	// снять закладку можно и после удаления
	_, err = f.svc.Bookmarks.Save(f.ctx, msg.ID, bob, BookmarkRequest{})
	assert.True(t, apperrors.IsForbidden(err))
	removed, err := f.svc.Bookmarks.Unsave(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.True(t, removed)
}

package service

import (
	"bytes"
	"testing"

	"chat_engine/internal/config"
	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteForActorIsIdempotentAndRestorable(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)
	msg := f.text(t, thread.ID, alice, "hello")

	first, err := f.svc.Deletions.DeleteForActor(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	second, err := f.svc.Deletions.DeleteForActor(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, first.DeletedAt, second.DeletedAt)
	assert.Equal(t, 1, f.store.Count()["deletions"])
	assert.Len(t, f.events.OfType(domain.EventMessageDeletedForActor), 1)

	stored := f.reload(t, msg.ID)
	assert.True(t, stored.IsDeletedFor(bob))
	assert.False(t, stored.IsDeletedFor(alice))

	_, err = f.svc.Deletions.DeleteForActor(f.ctx, msg.ID, carol)
	assert.True(t, apperrors.IsForbidden(err))

	restored, err := f.svc.Deletions.RestoreForActor(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.True(t, restored)
	restored, err = f.svc.Deletions.RestoreForActor(f.ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.False(t, restored)

	_, err = f.svc.Messages.Get(f.ctx, bob, msg.ID)
	assert.NoError(t, err)
	assert.Len(t, f.events.OfType(domain.EventMessageRestoredForActor), 1)
}

func TestSoftDeleteHidesMessageForEveryone(t *testing.T) {
	f := newFixture(t)
	thread := f.group(t)
	msg := f.text(t, thread.ID, carol, "oops")

	err := f.svc.Deletions.DeleteGlobally(f.ctx, msg.ID, alice)
	require.NoError(t, err)
	require.NoError(t, f.svc.Deletions.DeleteGlobally(f.ctx, msg.ID, carol))

	stored := f.reload(t, msg.ID)
	assert.True(t, stored.IsDeleted())
	require.NotNil(t, stored.DeletedBy)
	assert.Equal(t, alice, *stored.DeletedBy)

	for _, actor := range []domain.Actor{alice, bob, carol} {
		_, err := f.svc.Messages.Get(f.ctx, actor, msg.ID)
		assert.True(t, apperrors.IsForbidden(err), actor.String())
	}

	deleted := f.events.OfType(domain.EventMessageDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, "soft", deleted[0].Data["mode"])

	err = f.svc.Deletions.HardDelete(f.ctx, msg.ID, alice)
	assert.True(t, apperrors.IsConflict(err))
}

func TestOnlySenderOrManagerDeletesGlobally(t *testing.T) {
	f := newFixture(t)
	thread := f.group(t)
	msg := f.text(t, thread.ID, bob, "admin post")

	err := f.svc.Deletions.DeleteGlobally(f.ctx, msg.ID, carol)
	assert.True(t, apperrors.IsForbidden(err))
	assert.False(t, f.reload(t, msg.ID).IsDeleted())
}

func TestRestoreGlobally(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)
	msg := f.text(t, thread.ID, alice, "hello")

	restored, err := f.svc.Deletions.RestoreGlobally(f.ctx, msg.ID, alice)
	require.NoError(t, err)
	assert.False(t, restored)

	require.NoError(t, f.svc.Deletions.DeleteGlobally(f.ctx, msg.ID, alice))

	_, err = f.svc.Deletions.RestoreGlobally(f.ctx, msg.ID, bob)
	assert.True(t, apperrors.IsForbidden(err))

	restored, err = f.svc.Deletions.RestoreGlobally(f.ctx, msg.ID, alice)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.False(t, f.reload(t, msg.ID).IsDeleted())
	assert.Len(t, f.events.OfType(domain.EventMessageRestored), 1)
}

func TestHardDeletionModeRemovesRowsAndFiles(t *testing.T) {
	f := newFixture(t, func(c *config.ChatConfig) {
		c.Messages.DeletionMode = string(domain.DeletionModeHard)
		c.Attachments.DeleteFilesOnDelete = true
	})
	thread := f.direct(t, alice, bob)

	uploaded, err := f.svc.Attachments.Upload(f.ctx, UploadInput{Reader: bytes.NewReader(pngBytes), Filename: "dot.png"})
	require.NoError(t, err)
	msg, err := f.svc.Messages.Compose(f.ctx, Compose(thread.ID, alice).Text("look").Attach(uploaded))
	require.NoError(t, err)
	_, err = f.svc.Messages.Edit(f.ctx, msg.ID, alice, map[string]interface{}{"content": "look!"})
	require.NoError(t, err)
	_, err = f.svc.Deliveries.MarkRead(f.ctx, msg.ID, bob)
	require.NoError(t, err)

	require.NoError(t, f.svc.Deletions.DeleteGlobally(f.ctx, msg.ID, alice))

	_, err = f.store.Messages().GetByID(f.ctx, msg.ID)
	assert.True(t, apperrors.IsNotFound(err))
	counts := f.store.Count()
	for _, table := range []string{"messages", "attachments", "versions", "deliveries"} {
		assert.Zero(t, counts[table], table)
	}

	_, err = f.files.Open(f.ctx, uploaded.Path)
	assert.Error(t, err)

	deleted := f.events.OfType(domain.EventMessageDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, "hard", deleted[0].Data["mode"])
	require.NotNil(t, deleted[0].Message)
	assert.Equal(t, msg.ID, deleted[0].Message.ID)
}

func TestHybridModeAllowsBoth(t *testing.T) {
	f := newFixture(t, func(c *config.ChatConfig) { c.Messages.DeletionMode = string(domain.DeletionModeHybrid) })
	thread := f.direct(t, alice, bob)
	soft := f.text(t, thread.ID, alice, "soft")
	hard := f.text(t, thread.ID, alice, "hard")

	require.NoError(t, f.svc.Deletions.DeleteGlobally(f.ctx, soft.ID, alice))
	assert.True(t, f.reload(t, soft.ID).IsDeleted())

	require.NoError(t, f.svc.Deletions.HardDelete(f.ctx, hard.ID, alice))
	_, err := f.store.Messages().GetByID(f.ctx, hard.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

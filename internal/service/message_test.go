package service

import (
	"testing"
	"time"

	"chat_engine/internal/config"
	"chat_engine/internal/domain"
	"chat_engine/internal/encryption"
	apperrors "chat_engine/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeHelpersDropEmptyFields(t *testing.T) {
	req := Compose(1, alice).Image("https://cdn.example.com/a.png", "", 640, 0)
	assert.Equal(t, domain.MessageTypeImage, req.Type)
	assert.Equal(t, map[string]interface{}{
		"type":  "image",
		"url":   "https://cdn.example.com/a.png",
		"width": 640,
	}, req.Payload)

	loc := Compose(1, alice).Location(0, 0, "", "")
	assert.Equal(t, 0.0, loc.Payload["latitude"])
	assert.Equal(t, 0.0, loc.Payload["longitude"])

	merged := Compose(1, alice).Text("hi").WithPayload(map[string]interface{}{"reply_to": 7})
	assert.Equal(t, "hi", merged.Payload["content"])
	assert.Equal(t, 7, merged.Payload["reply_to"])
}

func TestComposeSkipsNilAttachments(t *testing.T) {
	req := Compose(1, alice).ViewOnce(nil).Attach(nil, &domain.MessageAttachment{Path: "a/1.png"}, nil)
	require.Len(t, req.Attachments, 1)
	assert.Equal(t, "a/1.png", req.Attachments[0].Path)
	assert.False(t, req.Attachments[0].ViewOnce)
}

func TestSendRequiresActiveParticipant(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)

	_, err := f.svc.Messages.Send(f.ctx, thread.ID, carol, domain.MessageTypeText, map[string]interface{}{"content": "hi"})
	assert.True(t, apperrors.IsForbidden(err))

	_, err = f.svc.Messages.Send(f.ctx, 999, alice, domain.MessageTypeText, map[string]interface{}{"content": "hi"})
	assert.True(t, apperrors.IsNotFound(err))

	msg, err := f.svc.Messages.Send(f.ctx, thread.ID, alice, domain.MessageTypeText, map[string]interface{}{"content": "hi"})
	require.NoError(t, err)
	assert.True(t, msg.IsReadBy(alice))
	require.Len(t, f.events.OfType(domain.EventMessageSent), 1)
}

func TestComposeValidation(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)

	_, err := f.svc.Messages.Compose(f.ctx, Compose(thread.ID, alice))
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.Messages.Compose(f.ctx, Compose(0, alice).Text("hi"))
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.Messages.Compose(f.ctx, Compose(thread.ID, domain.Actor{}).Text("hi"))
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.Messages.Compose(f.ctx, Compose(thread.ID, alice).Location(91, 10, "", ""))
	var typed *apperrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, "latitude", typed.Field)

	_, err = f.svc.Messages.Compose(f.ctx, Compose(thread.ID, alice).Image("ftp://example.com/a.png", "", 0, 0))
	assert.True(t, apperrors.IsValidation(err))

	assert.Empty(t, f.events.OfType(domain.EventMessageSent))
}

func TestComposeAttachmentsAreCappedAndOrdered(t *testing.T) {
	f := newFixture(t, func(c *config.ChatConfig) { c.Attachments.MaxPerMessage = 2 })
	thread := f.direct(t, alice, bob)

	req := Compose(thread.ID, alice).
		Attach(&domain.MessageAttachment{Type: domain.AttachmentTypeVideo, Path: "a/1.mp4", Order: 9}).
		Attach(&domain.MessageAttachment{Type: domain.AttachmentTypeImage, Path: "a/2.png"}).
		Attach(&domain.MessageAttachment{Type: domain.AttachmentTypeFile, Path: "a/3.pdf"})
	msg, err := f.svc.Messages.Compose(f.ctx, req)
	require.NoError(t, err)

	assert.Equal(t, domain.MessageTypeVideo, msg.Type)
	stored := f.reload(t, msg.ID)
	require.Len(t, stored.Attachments, 2)
	assert.Equal(t, "a/1.mp4", stored.Attachments[0].Path)
	assert.Equal(t, 0, stored.Attachments[0].Order)
	assert.Equal(t, 1, stored.Attachments[1].Order)
	assert.Equal(t, "local", stored.Attachments[1].Disk)
}

func TestComposeOnBehalfOf(t *testing.T) {
	f := newFixture(t)
	thread, err := f.svc.Threads.Create(f.ctx, Group("support").WithOwner(alice).WithMember(bot))
	require.NoError(t, err)

	msg, err := f.svc.Messages.Compose(f.ctx, Compose(thread.ID, bot).AuthoredBy(alice).System("ticket closed", "close"))
	require.NoError(t, err)
	require.NotNil(t, msg.Author)
	assert.Equal(t, alice, *msg.Author)
	assert.Equal(t, "close", msg.Payload["action"])
}

func TestImmutableEditsCreateVersions(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)
	msg := f.text(t, thread.ID, alice, "v0")

	for i, content := range []string{"v1", "v2", "v3"} {
		f.clock.Advance(time.Second)
		_, err := f.svc.Messages.Edit(f.ctx, msg.ID, alice, map[string]interface{}{"content": content})
		require.NoError(t, err, i)
	}

	stored := f.reload(t, msg.ID)
	assert.Len(t, stored.Versions, 3)
	assert.Equal(t, "v0", stored.Payload["content"])
	assert.Equal(t, "v3", stored.CurrentPayload()["content"])
	assert.Len(t, f.events.OfType(domain.EventMessageEdited), 3)
}

func TestMutableEditReplacesPayload(t *testing.T) {
	f := newFixture(t, func(c *config.ChatConfig) { c.Messages.Immutable = false })
	thread := f.direct(t, alice, bob)
	msg := f.text(t, thread.ID, alice, "v0")

	_, err := f.svc.Messages.Edit(f.ctx, msg.ID, alice, map[string]interface{}{"content": "v1"})
	require.NoError(t, err)

	stored := f.reload(t, msg.ID)
	assert.Empty(t, stored.Versions)
	assert.Equal(t, "v1", stored.Payload["content"])
}

func TestEditRules(t *testing.T) {
	limit := 15
	f := newFixture(t, func(c *config.ChatConfig) { c.Messages.EditTimeLimit = &limit })
	thread := f.direct(t, alice, bob)
	msg := f.text(t, thread.ID, alice, "hello")

	_, err := f.svc.Messages.Edit(f.ctx, msg.ID, bob, map[string]interface{}{"content": "hacked"})
	assert.True(t, apperrors.IsForbidden(err))

	_, err = f.svc.Messages.Edit(f.ctx, msg.ID, alice, map[string]interface{}{"content": ""})
	assert.True(t, apperrors.IsValidation(err))

	f.clock.Advance(16 * time.Minute)
	_, err = f.svc.Messages.Edit(f.ctx, msg.ID, alice, map[string]interface{}{"content": "late"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestPipelineRunsOnSendAndEdit(t *testing.T) {
	f := newFixture(t, func(c *config.ChatConfig) {
		c.Pipeline = []string{"sanitize", "profanity"}
		c.Profanity.Words = []string{"darn"}
	})
	thread := f.direct(t, alice, bob)

	msg := f.text(t, thread.ID, alice, "<blink>well</blink> darn")
	assert.Equal(t, "well ****", msg.Payload["content"])

	_, err := f.svc.Messages.Edit(f.ctx, msg.ID, alice, map[string]interface{}{"content": "<blink>darn</blink> it"})
	require.NoError(t, err)
	assert.Equal(t, "**** it", f.reload(t, msg.ID).CurrentPayload()["content"])
}

func TestEncryptedMessagesAreDecryptedOnRead(t *testing.T) {
	f := newFixture(t, func(c *config.ChatConfig) {
		c.Encryption = config.EncryptionConfig{Enabled: true, Driver: "symmetric", Key: "secret"}
	})
	thread := f.direct(t, alice, bob)

	msg := f.text(t, thread.ID, alice, "secret plans")
	stored := f.reload(t, msg.ID)
	assert.True(t, stored.Encrypted)
	require.NotNil(t, stored.EncryptionDriver)
	assert.Equal(t, "symmetric", *stored.EncryptionDriver)
	assert.NotContains(t, stored.Payload, "content")
	assert.Contains(t, stored.Payload, encryption.PayloadKey)

	views, err := f.svc.Messages.List(f.ctx, bob, thread.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "secret plans", views[0].Content["content"])

	_, err = f.svc.Messages.Edit(f.ctx, msg.ID, alice, map[string]interface{}{"content": "new plans"})
	require.NoError(t, err)
	edited := f.reload(t, msg.ID)
	encrypted, _ := edited.CurrentEncryption()
	assert.True(t, encrypted)
	content, err := f.svc.Messages.Decrypt(f.ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, "new plans", content["content"])
}

func TestClientEncryptedPayloadIsStoredAsIs(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)

	req := Compose(thread.ID, alice).WithPayload(map[string]interface{}{"ciphertext": "opaque"}).EncryptedWith("default")
	msg, err := f.svc.Messages.Compose(f.ctx, req)
	require.NoError(t, err)
	assert.True(t, msg.Encrypted)
	require.NotNil(t, msg.EncryptionDriver)
	assert.Equal(t, encryption.DriverNone, *msg.EncryptionDriver)
	assert.Equal(t, "opaque", msg.Payload["ciphertext"])
}

func TestListHidesDeletedMessages(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)
	first := f.text(t, thread.ID, alice, "one")
	second := f.text(t, thread.ID, bob, "two")
	third := f.text(t, thread.ID, alice, "three")

	_, err := f.svc.Deletions.DeleteForActor(f.ctx, first.ID, bob)
	require.NoError(t, err)
	require.NoError(t, f.svc.Deletions.DeleteGlobally(f.ctx, second.ID, bob))

	views, err := f.svc.Messages.List(f.ctx, bob, thread.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, third.ID, views[0].ID)

	views, err = f.svc.Messages.List(f.ctx, alice, thread.ID, 0, third.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, first.ID, views[0].ID)

	_, err = f.svc.Messages.List(f.ctx, carol, thread.ID, 0, 0)
	assert.True(t, apperrors.IsForbidden(err))
}

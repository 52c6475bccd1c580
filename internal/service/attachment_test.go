package service

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"chat_engine/internal/config"
	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte{
	0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n',
	0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00,
}

func TestUploadDetectsMimeType(t *testing.T) {
	f := newFixture(t)

	att, err := f.svc.Attachments.Upload(f.ctx, UploadInput{Reader: bytes.NewReader(pngBytes), Filename: "photos/dot.bin"})
	require.NoError(t, err)
	assert.Equal(t, domain.AttachmentTypeImage, att.Type)
	assert.Equal(t, "image/png", att.MimeType)
	assert.Equal(t, "dot.bin", att.Filename)
	assert.Equal(t, int64(len(pngBytes)), att.Size)
	assert.Equal(t, "local", att.Disk)
	assert.True(t, strings.HasPrefix(att.Path, "chat-attachments/"))
	assert.True(t, strings.HasSuffix(att.Path, ".png"))
	assert.Zero(t, att.ID)

	rc, err := f.files.Open(f.ctx, att.Path)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	doc, err := f.svc.Attachments.Upload(f.ctx, UploadInput{
		Reader:   strings.NewReader("plain notes"),
		Filename: "notes.txt",
		Type:     domain.AttachmentTypeFile,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AttachmentTypeFile, doc.Type)
	assert.Equal(t, "text/plain", doc.MimeType)
}

func TestUploadLimits(t *testing.T) {
	maxSize := int64(16)
	f := newFixture(t, func(c *config.ChatConfig) {
		c.Attachments.MaxFileSize = &maxSize
		c.Attachments.AllowedMimeTypes = []string{"image/*", "application/pdf"}
	})

	_, err := f.svc.Attachments.Upload(f.ctx, UploadInput{Reader: strings.NewReader("hi")})
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.Attachments.Upload(f.ctx, UploadInput{Reader: bytes.NewReader(pngBytes)})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "16 B")

	_, err = f.svc.Attachments.Upload(f.ctx, UploadInput{Reader: bytes.NewReader(nil)})
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.Attachments.Upload(f.ctx, UploadInput{Reader: bytes.NewReader(pngBytes[:8])})
	assert.NoError(t, err)
}

func TestMimeAllowed(t *testing.T) {
	assert.True(t, mimeAllowed("text/plain", nil))
	assert.True(t, mimeAllowed("image/webp", []string{"image/*"}))
	assert.True(t, mimeAllowed("application/pdf", []string{" Application/PDF "}))
	assert.False(t, mimeAllowed("video/mp4", []string{"image/*", "application/pdf"}))
}

func TestViewOnceAttachmentIsConsumedOnce(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)

	uploaded, err := f.svc.Attachments.Upload(f.ctx, UploadInput{Reader: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	msg, err := f.svc.Messages.Compose(f.ctx, Compose(thread.ID, alice).ViewOnce(uploaded))
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 1)
	id := msg.Attachments[0].ID

	_, _, err = f.svc.Attachments.Consume(f.ctx, id, carol)
	assert.True(t, apperrors.IsForbidden(err))

	url, ok, err := f.svc.Attachments.Consume(f.ctx, id, bob)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/files/"+uploaded.Path, url)

	url, ok, err = f.svc.Attachments.Consume(f.ctx, id, bob)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, url)

	att, err := f.svc.Attachments.Get(f.ctx, bob, id)
	require.NoError(t, err)
	assert.False(t, att.IsAccessible())
	_, ok = f.svc.Attachments.URL(att)
	assert.False(t, ok)
	_, err = f.svc.Attachments.TemporaryURL(att, time.Minute)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestRegularAttachmentURLs(t *testing.T) {
	f := newFixture(t)
	thread := f.direct(t, alice, bob)

	msg, err := f.svc.Messages.Compose(f.ctx, Compose(thread.ID, alice).Attach(&domain.MessageAttachment{
		Type: domain.AttachmentTypeFile, Path: "chat-attachments/report 1.pdf",
	}))
	require.NoError(t, err)
	att := msg.Attachments[0]

	for i := 0; i < 2; i++ {
		url, ok, err := f.svc.Attachments.Consume(f.ctx, att.ID, bob)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "/files/chat-attachments/report%201.pdf", url)
	}

	signed, err := f.svc.Attachments.TemporaryURL(att, 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed, "/files/chat-attachments/report%201.pdf?token="))
}

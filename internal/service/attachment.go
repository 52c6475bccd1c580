package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"chat_engine/internal/domain"
	"chat_engine/internal/storage"
	apperrors "chat_engine/pkg/errors"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// UploadInput: загружаемый файл. Type и размеры необязательны.
type UploadInput struct {
	Reader   io.Reader
	Filename string
	Type     domain.AttachmentType
	Caption  *string
	ViewOnce bool
	Duration *int
	Width    *int
	Height   *int
	Metadata map[string]interface{}
}

type AttachmentService interface {
	// Upload сохраняет файл и возвращает еще не привязанное к сообщению вложение для Compose.
	Upload(ctx context.Context, in UploadInput) (*domain.MessageAttachment, error)
	Get(ctx context.Context, actor domain.Actor, attachmentID int64) (*domain.MessageAttachment, error)
	// Consume открывает вложение. Одноразовое вложение отдает URL ровно один раз,
	// дальше возвращается ok=false.
	Consume(ctx context.Context, attachmentID int64, actor domain.Actor) (url string, ok bool, err error)
	URL(attachment *domain.MessageAttachment) (string, bool)
	TemporaryURL(attachment *domain.MessageAttachment, ttl time.Duration) (string, error)
}

type attachmentService struct {
	*base
	signer *storage.Signer
}

func NewAttachmentService(b *base, signer *storage.Signer) AttachmentService {
	return &attachmentService{base: b, signer: signer}
}

func (s *attachmentService) Upload(ctx context.Context, in UploadInput) (*domain.MessageAttachment, error) {
	if s.files == nil {
		return nil, apperrors.Unsupported("attachment storage is not configured")
	}
	if in.Reader == nil {
		return nil, apperrors.Validation("file", "file is required")
	}

	reader := in.Reader
	maxSize := s.cfg.Attachments.MaxFileSize
	if maxSize != nil {
		reader = io.LimitReader(in.Reader, *maxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, apperrors.Validation("file", "file is empty")
	}
	if maxSize != nil && int64(len(data)) > *maxSize {
		return nil, apperrors.Validation("file", "file exceeds maximum size of "+humanize.IBytes(uint64(*maxSize)))
	}

	detected := mimetype.Detect(data)
	mime, _, _ := strings.Cut(detected.String(), ";")
	mime = strings.TrimSpace(mime)
	if !mimeAllowed(mime, s.cfg.Attachments.AllowedMimeTypes) {
		return nil, apperrors.Validation("file", "mime type "+mime+" is not allowed")
	}

	ext := detected.Extension()
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(in.Filename))
	}
	name := path.Join(s.cfg.Attachments.Path, uuid.NewString()+ext)
	stored, err := s.files.Store(ctx, name, bytes.NewReader(data))
	if err != nil {
		s.log.Error("Failed to store attachment", "error", err, "path", name)
		return nil, err
	}

	attachmentType := in.Type
	if !attachmentType.Valid() {
		attachmentType = domain.AttachmentTypeFromMime(mime)
	}
	filename := filepath.Base(in.Filename)
	if in.Filename == "" {
		filename = path.Base(stored)
	}

	s.log.Debug("Attachment uploaded", "path", stored, "mime", mime, "size", humanize.IBytes(uint64(len(data))))

	return &domain.MessageAttachment{
		Type:     attachmentType,
		Disk:     s.files.Disk(),
		Path:     stored,
		Filename: filename,
		MimeType: mime,
		Size:     int64(len(data)),
		Duration: in.Duration,
		Width:    in.Width,
		Height:   in.Height,
		Caption:  in.Caption,
		ViewOnce: in.ViewOnce,
		Metadata: in.Metadata,
	}, nil
}

// mimeAllowed: пустой список разрешает все, поддерживаются шаблоны вида image/*.
func mimeAllowed(mime string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if prefix, ok := strings.CutSuffix(a, "/*"); ok {
			if strings.HasPrefix(mime, prefix+"/") {
				return true
			}
			continue
		}
		if mimetype.EqualsAny(mime, a) {
			return true
		}
	}
	return false
}

func (s *attachmentService) Get(ctx context.Context, actor domain.Actor, attachmentID int64) (*domain.MessageAttachment, error) {
	attachment, err := s.store.Attachments().GetByID(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	message, thread, err := s.loadMessage(ctx, s.store, attachment.MessageID)
	if err != nil {
		return nil, err
	}
	if !s.messages.View(actor, message, thread) {
		return nil, apperrors.Forbidden("attachment is not visible to this actor")
	}
	return attachment, nil
}

func (s *attachmentService) Consume(ctx context.Context, attachmentID int64, actor domain.Actor) (string, bool, error) {
	attachment, err := s.Get(ctx, actor, attachmentID)
	if err != nil {
		return "", false, err
	}
	if !attachment.ViewOnce {
		url, ok := s.URL(attachment)
		return url, ok, nil
	}

	now := s.now()
	won, err := s.store.Attachments().Consume(ctx, attachmentID, now)
	if err != nil {
		s.log.Error("Failed to consume attachment", "error", err, "attachment_id", attachmentID)
		return "", false, err
	}
	if !won {
		return "", false, nil
	}
	attachment.ViewedAt = &now

	s.log.Debug("View-once attachment consumed", "attachment_id", attachmentID, "actor", actor.String())

	return s.rawURL(attachment)
}

func (s *attachmentService) rawURL(attachment *domain.MessageAttachment) (string, bool, error) {
	if s.files == nil {
		return "", false, apperrors.Unsupported("attachment storage is not configured")
	}
	return s.files.URL(attachment.Path), true, nil
}

func (s *attachmentService) URL(attachment *domain.MessageAttachment) (string, bool) {
	if !attachment.IsAccessible() || s.files == nil {
		return "", false
	}
	return s.files.URL(attachment.Path), true
}

func (s *attachmentService) TemporaryURL(attachment *domain.MessageAttachment, ttl time.Duration) (string, error) {
	if !attachment.IsAccessible() {
		return "", apperrors.Forbidden("view-once attachment has already been viewed")
	}
	if s.signer == nil || s.files == nil {
		return "", apperrors.Unsupported("temporary urls are not configured")
	}
	if ttl <= 0 {
		ttl = s.cfg.Attachments.TemporaryURLTTL
	}
	return s.signer.SignURL(s.files.URL(attachment.Path), attachment.Path, ttl, s.now())
}

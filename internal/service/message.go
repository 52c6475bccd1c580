package service

import (
	"context"
	"time"

	"chat_engine/internal/domain"
	"chat_engine/internal/encryption"
	"chat_engine/internal/pipeline"
	"chat_engine/internal/repository"
	"chat_engine/internal/validator"
	apperrors "chat_engine/pkg/errors"
)

// ComposeRequest: сообщение с произвольным набором вложений. Хелперы типов
// заменяют payload целиком, WithPayload дополняет его.
type ComposeRequest struct {
	ThreadID         int64
	Sender           domain.Actor
	Author           *domain.Actor
	Type             domain.MessageType
	Payload          map[string]interface{}
	Attachments      []*domain.MessageAttachment
	Encrypted        bool
	EncryptionDriver *string
}

func Compose(threadID int64, sender domain.Actor) *ComposeRequest {
	return &ComposeRequest{ThreadID: threadID, Sender: sender}
}

// typed заполняет payload, отбрасывая пустые необязательные поля.
func (r *ComposeRequest) typed(t domain.MessageType, fields map[string]interface{}) *ComposeRequest {
	r.Type = t
	r.Payload = map[string]interface{}{"type": string(t)}
	for k, v := range fields {
		switch value := v.(type) {
		case nil:
			continue
		case string:
			if value == "" {
				continue
			}
		case int:
			if value == 0 {
				continue
			}
		case int64:
			if value == 0 {
				continue
			}
		}
		r.Payload[k] = v
	}
	return r
}

func (r *ComposeRequest) OfType(t domain.MessageType) *ComposeRequest {
	r.Type = t
	return r
}

func (r *ComposeRequest) Text(content string) *ComposeRequest {
	r.Type = domain.MessageTypeText
	r.Payload = map[string]interface{}{"type": string(domain.MessageTypeText), "content": content}
	return r
}

func (r *ComposeRequest) Image(url, caption string, width, height int) *ComposeRequest {
	return r.typed(domain.MessageTypeImage, map[string]interface{}{
		"url": url, "caption": caption, "width": width, "height": height,
	})
}

func (r *ComposeRequest) Video(url, thumbnail string, duration int) *ComposeRequest {
	return r.typed(domain.MessageTypeVideo, map[string]interface{}{
		"url": url, "thumbnail": thumbnail, "duration": duration,
	})
}

func (r *ComposeRequest) Audio(url string, duration int, waveform string) *ComposeRequest {
	return r.typed(domain.MessageTypeAudio, map[string]interface{}{
		"url": url, "duration": duration, "waveform": waveform,
	})
}

func (r *ComposeRequest) File(url, filename, mimeType string, size int64) *ComposeRequest {
	return r.typed(domain.MessageTypeFile, map[string]interface{}{
		"url": url, "filename": filename, "mime_type": mimeType, "size": size,
	})
}

// Location всегда сохраняет обе координаты, даже нулевые.
func (r *ComposeRequest) Location(latitude, longitude float64, address, name string) *ComposeRequest {
	r.typed(domain.MessageTypeLocation, map[string]interface{}{"address": address, "name": name})
	r.Payload["latitude"] = latitude
	r.Payload["longitude"] = longitude
	return r
}

func (r *ComposeRequest) Contact(name, phone, email string) *ComposeRequest {
	return r.typed(domain.MessageTypeContact, map[string]interface{}{
		"name": name, "phone": phone, "email": email,
	})
}

func (r *ComposeRequest) System(content, action string) *ComposeRequest {
	return r.typed(domain.MessageTypeSystem, map[string]interface{}{
		"content": content, "action": action,
	})
}

func (r *ComposeRequest) WithPayload(payload map[string]interface{}) *ComposeRequest {
	if r.Payload == nil {
		r.Payload = make(map[string]interface{}, len(payload))
	}
	for k, v := range payload {
		r.Payload[k] = v
	}
	return r
}

// Attach пропускает nil.
func (r *ComposeRequest) Attach(attachments ...*domain.MessageAttachment) *ComposeRequest {
	for _, a := range attachments {
		if a != nil {
			r.Attachments = append(r.Attachments, a)
		}
	}
	return r
}

// ViewOnce прикрепляет вложение, которое можно открыть только один раз.
func (r *ComposeRequest) ViewOnce(attachment *domain.MessageAttachment) *ComposeRequest {
	if attachment == nil {
		return r
	}
	attachment.ViewOnce = true
	return r.Attach(attachment)
}

// AuthoredBy: отправитель sender, фактический автор author.
func (r *ComposeRequest) AuthoredBy(author domain.Actor) *ComposeRequest {
	r.Author = &author
	return r
}

// EncryptedWith помечает payload как уже зашифрованный клиентом указанным драйвером.
func (r *ComposeRequest) EncryptedWith(driver string) *ComposeRequest {
	r.Encrypted = true
	r.EncryptionDriver = &driver
	return r
}

// MessageView: сообщение в том виде, в котором его видит конкретный актор.
type MessageView struct {
	*domain.Message
	Content   map[string]interface{} `json:"content"`
	Edited    bool                   `json:"edited"`
	Reactions domain.ReactionSummary `json:"reactions"`
}

type MessageService interface {
	// Send отправляет сообщение, нарушение блокировки треда считается ошибкой авторизации.
	Send(ctx context.Context, threadID int64, sender domain.Actor, messageType domain.MessageType, payload map[string]interface{}) (*domain.Message, error)
	// Compose отправляет сообщение с вложениями, нарушение блокировки треда считается ошибкой валидации.
	Compose(ctx context.Context, req *ComposeRequest) (*domain.Message, error)
	Edit(ctx context.Context, messageID int64, editor domain.Actor, payload map[string]interface{}) (*domain.Message, error)
	Get(ctx context.Context, actor domain.Actor, messageID int64) (*MessageView, error)
	List(ctx context.Context, actor domain.Actor, threadID int64, limit int, beforeID int64) ([]*MessageView, error)
	Decrypt(ctx context.Context, message *domain.Message) (map[string]interface{}, error)
}

type messageService struct {
	*base
	pipe       *pipeline.Pipeline
	encryption *encryption.Manager
}

func NewMessageService(b *base, pipe *pipeline.Pipeline, manager *encryption.Manager) MessageService {
	return &messageService{base: b, pipe: pipe, encryption: manager}
}

func (s *messageService) Send(ctx context.Context, threadID int64, sender domain.Actor, messageType domain.MessageType, payload map[string]interface{}) (*domain.Message, error) {
	req := Compose(threadID, sender).OfType(messageType).WithPayload(payload)
	return s.send(ctx, req, func() error {
		return apperrors.Forbidden("thread is locked, only admins can send messages")
	})
}

func (s *messageService) Compose(ctx context.Context, req *ComposeRequest) (*domain.Message, error) {
	return s.send(ctx, req, func() error {
		return apperrors.Validation("thread", "thread is locked, only admins can send messages")
	})
}

func (s *messageService) send(ctx context.Context, req *ComposeRequest, lockedErr func() error) (*domain.Message, error) {
	if req.Sender.Type == "" || req.Sender.ID == "" {
		return nil, apperrors.Validation("sender", "message must have a sender")
	}
	if req.ThreadID == 0 {
		return nil, apperrors.Validation("thread_id", "message must have a target thread")
	}
	if len(req.Payload) == 0 && len(req.Attachments) == 0 {
		return nil, apperrors.Validation("payload", "message must have a payload or attachments")
	}

	thread, err := s.loadThread(ctx, s.store, req.ThreadID)
	if err != nil {
		return nil, err
	}
	if !s.threads.SendMessage(req.Sender, thread) {
		return nil, apperrors.Forbidden("actor is not an active participant of this thread")
	}
	if !thread.CanSendMessage(req.Sender) {
		return nil, lockedErr()
	}

	messageType := req.Type
	if messageType == "" {
		messageType = domain.MessageTypeText
		if len(req.Payload) == 0 {
			messageType = req.Attachments[0].Type.MessageType()
		}
	}
	if !messageType.Valid() {
		return nil, apperrors.Validation("type", "unknown message type "+string(messageType))
	}

	attachments := req.Attachments
	if limit := s.cfg.Attachments.MaxPerMessage; limit > 0 && len(attachments) > limit {
		attachments = attachments[:limit]
	}
	for _, a := range attachments {
		if !a.Type.Valid() {
			return nil, apperrors.Validation("attachments", "unknown attachment type "+string(a.Type))
		}
		if a.Path == "" {
			return nil, apperrors.Validation("attachments", "attachment path is required")
		}
	}

	now := s.now()
	message := &domain.Message{
		ThreadID:         thread.ID,
		Sender:           req.Sender,
		Author:           req.Author,
		Type:             messageType,
		Payload:          clonePayload(req.Payload),
		Encrypted:        req.Encrypted,
		EncryptionDriver: req.EncryptionDriver,
		CreatedAt:        now,
	}
	if message.Encrypted && (message.EncryptionDriver == nil || *message.EncryptionDriver == "default") {
		driver := s.encryption.DriverName()
		message.EncryptionDriver = &driver
	}
	if message, err = s.process(ctx, message); err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Messages().Create(ctx, message); err != nil {
			return err
		}
		message.Attachments = nil
		for i, a := range attachments {
			stored := *a
			stored.ID = 0
			stored.MessageID = message.ID
			stored.Order = i
			stored.ViewedAt = nil
			stored.CreatedAt = now
			if stored.Disk == "" {
				stored.Disk = s.cfg.Attachments.Disk
			}
			if err := tx.Attachments().Create(ctx, &stored); err != nil {
				return err
			}
			message.Attachments = append(message.Attachments, &stored)
		}
		// Отправитель всегда «прочитал» собственное сообщение.
		delivery, err := tx.Deliveries().MarkRead(ctx, message.ID, req.Sender, now)
		if err != nil {
			return err
		}
		message.Deliveries = []*domain.MessageDelivery{delivery}
		return nil
	})
	if err != nil {
		s.log.Error("Failed to send message", "error", err, "thread_id", thread.ID, "sender", req.Sender.String())
		return nil, err
	}

	s.emit(ctx, s.event(domain.EventMessageSent).WithThread(thread).WithMessage(message).WithActor(req.Sender))

	s.log.Debug("Message sent", "message_id", message.ID, "thread_id", thread.ID, "type", message.Type, "attachments", len(message.Attachments))

	return message, nil
}

// process проверяет payload и прогоняет его через pipeline. Зашифрованный клиентом
// payload непрозрачен и не проверяется; пустой payload (только вложения) не обрабатывается.
func (s *messageService) process(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	if message.Encrypted || len(message.Payload) == 0 {
		return message, nil
	}
	if err := validator.Validate(message.Type, message.Payload); err != nil {
		return nil, err
	}
	processed, err := s.pipe.Process(ctx, message)
	if err != nil {
		return nil, err
	}
	return processed, nil
}

func (s *messageService) Edit(ctx context.Context, messageID int64, editor domain.Actor, payload map[string]interface{}) (*domain.Message, error) {
	message, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !s.messages.Edit(editor, message) {
		return nil, apperrors.Forbidden("only the sender can edit this message")
	}
	now := s.now()
	if limit := s.cfg.Messages.EditTimeLimit; limit != nil {
		if now.Sub(message.CreatedAt) > time.Duration(*limit)*time.Minute {
			return nil, apperrors.Validation("message", "edit time limit exceeded")
		}
	}
	if len(payload) == 0 {
		return nil, apperrors.Validation("payload", "payload cannot be empty")
	}

	draft := &domain.Message{
		ID:        message.ID,
		ThreadID:  message.ThreadID,
		Sender:    message.Sender,
		Type:      message.Type,
		Payload:   clonePayload(payload),
		CreatedAt: message.CreatedAt,
	}
	if draft, err = s.process(ctx, draft); err != nil {
		return nil, err
	}

	ev := s.event(domain.EventMessageEdited).WithActor(editor)
	if s.cfg.Messages.Immutable {
		version := &domain.MessageVersion{
			MessageID:        message.ID,
			Payload:          draft.Payload,
			Encrypted:        draft.Encrypted,
			EncryptionDriver: draft.EncryptionDriver,
			EditedBy:         editor,
			CreatedAt:        now,
		}
		if err := s.store.Versions().Create(ctx, version); err != nil {
			s.log.Error("Failed to create message version", "error", err, "message_id", messageID)
			return nil, err
		}
		message.Versions = append(message.Versions, version)
		ev = ev.WithData("version_id", version.ID)
	} else {
		message.Payload = draft.Payload
		message.Encrypted = draft.Encrypted
		message.EncryptionDriver = draft.EncryptionDriver
		if err := s.store.Messages().UpdatePayload(ctx, message); err != nil {
			s.log.Error("Failed to update message", "error", err, "message_id", messageID)
			return nil, err
		}
	}

	s.emit(ctx, ev.WithMessage(message))
	return message, nil
}

func (s *messageService) Get(ctx context.Context, actor domain.Actor, messageID int64) (*MessageView, error) {
	message, thread, err := s.loadMessage(ctx, s.store, messageID)
	if err != nil {
		return nil, err
	}
	if !s.messages.View(actor, message, thread) {
		return nil, apperrors.Forbidden("message is not visible to this actor")
	}
	return s.view(ctx, actor, message)
}

func (s *messageService) List(ctx context.Context, actor domain.Actor, threadID int64, limit int, beforeID int64) ([]*MessageView, error) {
	thread, err := s.loadThread(ctx, s.store, threadID)
	if err != nil {
		return nil, err
	}
	if !s.threads.View(actor, thread) {
		return nil, apperrors.Forbidden("actor is not a participant of this thread")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	messages, err := s.store.Messages().ListByThread(ctx, threadID, limit, beforeID)
	if err != nil {
		s.log.Error("Failed to list messages", "error", err, "thread_id", threadID)
		return nil, err
	}
	views := make([]*MessageView, 0, len(messages))
	for _, m := range messages {
		if !s.messages.View(actor, m, thread) {
			continue
		}
		v, err := s.view(ctx, actor, m)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *messageService) view(ctx context.Context, viewer domain.Actor, message *domain.Message) (*MessageView, error) {
	content, err := s.Decrypt(ctx, message)
	if err != nil {
		return nil, err
	}
	return &MessageView{
		Message:   message,
		Content:   content,
		Edited:    message.IsEdited(),
		Reactions: message.ReactionSummaryFor(viewer),
	}, nil
}

func (s *messageService) Decrypt(ctx context.Context, message *domain.Message) (map[string]interface{}, error) {
	encrypted, driver := message.CurrentEncryption()
	content, err := s.encryption.OpenPayload(message.CurrentPayload(), encrypted, driver, encryption.Context{
		"thread_id":   message.ThreadID,
		"sender_type": message.Sender.Type,
		"sender_id":   message.Sender.ID,
	})
	if err != nil {
		s.log.Error("Failed to decrypt message", "error", err, "message_id", message.ID)
		return nil, err
	}
	return content, nil
}

func clonePayload(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}

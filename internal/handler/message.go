package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"chat_engine/internal/domain"
	"chat_engine/internal/service"
	"chat_engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messages    service.MessageService
	deletions   service.DeletionService
	deliveries  service.DeliveryService
	attachments service.AttachmentService
	log         logger.Logger
}

func NewMessageHandler(messages service.MessageService, deletions service.DeletionService, deliveries service.DeliveryService, attachments service.AttachmentService, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		messages:    messages,
		deletions:   deletions,
		deliveries:  deliveries,
		attachments: attachments,
		log:         log,
	}
}

func (h *MessageHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	before, _ := strconv.ParseInt(c.Query("before"), 10, 64)

	views, err := h.messages.List(c.Request.Context(), actor, id, queryInt(c, "limit", 0), before)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

type SendMessageRequest struct {
	Type             domain.MessageType     `json:"type"`
	Content          string                 `json:"content"`
	Payload          map[string]interface{} `json:"payload"`
	Author           *ActorRef              `json:"author"`
	Encrypted        bool                   `json:"encrypted"`
	EncryptionDriver string                 `json:"encryption_driver"`
}

// Send принимает JSON или multipart/form-data с файлами в поле files.
func (h *MessageHandler) Send(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req *service.ComposeRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, ok = h.multipartRequest(c, id, actor)
	} else {
		req, ok = h.jsonRequest(c, id, actor)
	}
	if !ok {
		return
	}

	message, err := h.messages.Compose(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

func (h *MessageHandler) jsonRequest(c *gin.Context, threadID int64, actor domain.Actor) (*service.ComposeRequest, bool) {
	var body SendMessageRequest
	if !bindJSON(c, &body) {
		return nil, false
	}

	req := service.Compose(threadID, actor)
	if body.Content != "" {
		req.Text(body.Content)
	}
	req.WithPayload(body.Payload)
	if body.Type != "" {
		req.OfType(body.Type)
	}
	if body.Author != nil {
		req.AuthoredBy(body.Author.Actor())
	}
	if body.Encrypted {
		req.EncryptedWith(body.EncryptionDriver)
	}
	return req, true
}

func (h *MessageHandler) multipartRequest(c *gin.Context, threadID int64, actor domain.Actor) (*service.ComposeRequest, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return nil, false
	}

	req := service.Compose(threadID, actor)
	if content := c.PostForm("content"); content != "" {
		req.Text(content)
	}
	viewOnce, _ := strconv.ParseBool(c.PostForm("view_once"))
	var caption *string
	if v := c.PostForm("caption"); v != "" {
		caption = &v
	}

	for _, header := range form.File["files"] {
		file, err := header.Open()
		if err != nil {
			h.log.Error("Failed to open uploaded file", "error", err, "filename", header.Filename)
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
			return nil, false
		}
		attachment, err := h.attachments.Upload(c.Request.Context(), service.UploadInput{
			Reader:   file,
			Filename: header.Filename,
			Caption:  caption,
			ViewOnce: viewOnce,
		})
		file.Close()
		if err != nil {
			fail(c, err)
			return nil, false
		}
		req.Attach(attachment)
	}
	return req, true
}

func (h *MessageHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	view, err := h.messages.Get(c.Request.Context(), actor, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *MessageHandler) Edit(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		Content string                 `json:"content"`
		Payload map[string]interface{} `json:"payload"`
	}
	if !bindJSON(c, &body) {
		return
	}
	payload := body.Payload
	if payload == nil {
		payload = map[string]interface{}{"content": body.Content}
	}

	message, err := h.messages.Edit(c.Request.Context(), id, actor, payload)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, message)
}

// Delete: scope=me скрывает сообщение только для автора запроса,
// scope=everyone удаляет согласно режиму удаления, scope=hard удаляет физически.
func (h *MessageHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	switch scope := c.DefaultQuery("scope", "me"); scope {
	case "me":
		deletion, err := h.deletions.DeleteForActor(ctx, id, actor)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, deletion)
	case "everyone", "hard":
		del := h.deletions.DeleteGlobally
		if scope == "hard" {
			del = h.deletions.HardDelete
		}
		if err := del(ctx, id, actor); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown scope " + scope})
	}
}

func (h *MessageHandler) Restore(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	restore := h.deletions.RestoreForActor
	switch scope := c.DefaultQuery("scope", "me"); scope {
	case "me":
	case "everyone":
		restore = h.deletions.RestoreGlobally
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown scope " + scope})
		return
	}

	restored, err := restore(c.Request.Context(), id, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": restored})
}

func (h *MessageHandler) MarkDelivered(c *gin.Context) {
	h.mark(c, h.deliveries.MarkDelivered)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	h.mark(c, h.deliveries.MarkRead)
}

func (h *MessageHandler) mark(c *gin.Context, mark func(ctx context.Context, messageID int64, actor domain.Actor) (*domain.MessageDelivery, error)) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	delivery, err := mark(c.Request.Context(), id, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, delivery)
}

package handler

import (
	"net/http"
	"time"

	"chat_engine/internal/service"
	"chat_engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

type AttachmentHandler struct {
	attachments service.AttachmentService
	log         logger.Logger
}

func NewAttachmentHandler(attachments service.AttachmentService, log logger.Logger) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments, log: log}
}

func (h *AttachmentHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	attachment, err := h.attachments.Get(c.Request.Context(), actor, id)
	if err != nil {
		fail(c, err)
		return
	}

	resp := gin.H{
		"attachment": attachment,
		"human_size": attachment.HumanSize(),
		"accessible": attachment.IsAccessible(),
	}
	if d := attachment.HumanDuration(); d != "" {
		resp["human_duration"] = d
	}
	// одноразовое вложение открывается только через Open
	if !attachment.ViewOnce {
		if url, ok := h.attachments.URL(attachment); ok {
			resp["url"] = url
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Open выдает ссылку на файл. Просмотренное одноразовое вложение дает 410.
func (h *AttachmentHandler) Open(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	url, ok, err := h.attachments.Consume(c.Request.Context(), id, actor)
	if err != nil {
		fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusGone, gin.H{"error": "attachment has already been viewed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *AttachmentHandler) TemporaryURL(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var ttl time.Duration
	if raw := c.Query("ttl"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ttl"})
			return
		}
		ttl = parsed
	}

	attachment, err := h.attachments.Get(c.Request.Context(), actor, id)
	if err != nil {
		fail(c, err)
		return
	}
	url, err := h.attachments.TemporaryURL(attachment, ttl)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

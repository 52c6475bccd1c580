package handler

import (
	"context"
	"net/http"

	"chat_engine/internal/domain"
	"chat_engine/internal/service"
	"chat_engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	presence service.PresenceService
	log      logger.Logger
}

func NewPresenceHandler(presence service.PresenceService, log logger.Logger) *PresenceHandler {
	return &PresenceHandler{presence: presence, log: log}
}

func (h *PresenceHandler) Online(c *gin.Context)  { h.set(c, h.presence.Online) }
func (h *PresenceHandler) Away(c *gin.Context)    { h.set(c, h.presence.Away) }
func (h *PresenceHandler) Offline(c *gin.Context) { h.set(c, h.presence.Offline) }
func (h *PresenceHandler) Seen(c *gin.Context)    { h.set(c, h.presence.UpdateLastSeen) }

func (h *PresenceHandler) set(c *gin.Context, action func(ctx context.Context, actor domain.Actor) error) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := action(c.Request.Context(), actor); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PresenceHandler) Status(c *gin.Context) {
	target, ok := actorParam(c, "actor")
	if !ok {
		return
	}
	status, err := h.presence.Status(c.Request.Context(), target)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *PresenceHandler) Typing(c *gin.Context)     { h.typing(c, h.presence.Typing) }
func (h *PresenceHandler) StopTyping(c *gin.Context) { h.typing(c, h.presence.StopTyping) }

func (h *PresenceHandler) typing(c *gin.Context, action func(ctx context.Context, threadID int64, actor domain.Actor) error) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := action(c.Request.Context(), id, actor); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PresenceHandler) TypingIn(c *gin.Context) {
	if _, ok := currentActor(c); !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	actors, err := h.presence.TypingIn(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"typing": actors})
}

package handler

import (
	"context"
	"net/http"

	"chat_engine/internal/domain"
	"chat_engine/internal/service"
	"chat_engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ParticipantHandler struct {
	participants service.ParticipantService
	log          logger.Logger
}

func NewParticipantHandler(participants service.ParticipantService, log logger.Logger) *ParticipantHandler {
	return &ParticipantHandler{participants: participants, log: log}
}

func (h *ParticipantHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	participants, err := h.participants.List(c.Request.Context(), id, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

func (h *ParticipantHandler) Add(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body ParticipantInput
	if !bindJSON(c, &body) {
		return
	}
	participant, err := h.participants.Add(c.Request.Context(), id, body.Actor(), body.Role, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, participant)
}

func (h *ParticipantHandler) UpdateRole(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	target, ok := actorParam(c, "actor")
	if !ok {
		return
	}
	var body struct {
		Role domain.ParticipantRole `json:"role" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	participant, err := h.participants.UpdateRole(c.Request.Context(), id, target, body.Role, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, participant)
}

func (h *ParticipantHandler) Remove(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	target, ok := actorParam(c, "actor")
	if !ok {
		return
	}
	removed, err := h.participants.Remove(c.Request.Context(), id, target, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *ParticipantHandler) Leave(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.participants.Leave(c.Request.Context(), id, actor); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ParticipantHandler) Transfer(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		To ActorRef `json:"to" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	if err := h.participants.TransferOwnership(c.Request.Context(), id, actor, body.To.Actor()); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type PinRequest struct {
	Pin string `json:"pin"`
}

func (h *ParticipantHandler) LockChat(c *gin.Context) {
	h.withPin(c, h.participants.LockChat)
}

func (h *ParticipantHandler) UnlockChat(c *gin.Context) {
	h.withPin(c, h.participants.UnlockChat)
}

func (h *ParticipantHandler) withPin(c *gin.Context, action func(ctx context.Context, threadID int64, actor domain.Actor, pin string) error) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body PinRequest
	if !bindJSON(c, &body) {
		return
	}
	if err := action(c.Request.Context(), id, actor, body.Pin); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ParticipantHandler) SetPublicKey(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		PublicKey string `json:"public_key"`
	}
	if !bindJSON(c, &body) {
		return
	}
	participant, err := h.participants.SetPublicKey(c.Request.Context(), id, actor, body.PublicKey)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"participant":   participant,
		"security_code": participant.FormattedSecurityCode(),
	})
}

func (h *ParticipantHandler) VerifySecurity(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	other, ok := actorParam(c, "actor")
	if !ok {
		return
	}
	verified, err := h.participants.VerifySecurity(c.Request.Context(), id, actor, other)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": verified})
}

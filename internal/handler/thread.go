package handler

import (
	"context"
	"net/http"

	"chat_engine/internal/domain"
	"chat_engine/internal/service"
	"chat_engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ThreadHandler struct {
	threads    service.ThreadService
	deliveries service.DeliveryService
	audit      service.AuditService
	log        logger.Logger
}

func NewThreadHandler(threads service.ThreadService, deliveries service.DeliveryService, audit service.AuditService, log logger.Logger) *ThreadHandler {
	return &ThreadHandler{
		threads:    threads,
		deliveries: deliveries,
		audit:      audit,
		log:        log,
	}
}

type ParticipantInput struct {
	ActorRef
	Role domain.ParticipantRole `json:"role"`
}

type CreateThreadRequest struct {
	Type         domain.ThreadType      `json:"type"`
	Name         string                 `json:"name"`
	Participants []ParticipantInput     `json:"participants"`
	Metadata     map[string]interface{} `json:"metadata"`
	Permissions  map[string]interface{} `json:"permissions"`
	AlwaysNew    bool                   `json:"always_new"`
}

// Create создает тред. Автор запроса добавляется владельцем, если не указан
// среди участников (в личной переписке обычным участником).
func (h *ThreadHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var body CreateThreadRequest
	if !bindJSON(c, &body) {
		return
	}

	req := service.NewThreadRequest(body.Type).
		WithMetadata(body.Metadata).
		WithPermissions(body.Permissions)
	if body.Name != "" {
		req.Named(body.Name)
	}
	self := false
	for _, p := range body.Participants {
		role := p.Role
		if role == "" {
			role = domain.RoleMember
		}
		self = self || p.Actor().Equal(actor)
		req.WithParticipant(p.Actor(), role)
	}
	if !self {
		if body.Type == domain.ThreadTypeDirect {
			req.WithMember(actor)
		} else {
			req.WithOwner(actor)
		}
	}
	if body.AlwaysNew {
		req.AlwaysNew()
	}

	thread, err := h.threads.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, thread)
}

// Direct возвращает личную переписку с актором, создавая ее при необходимости.
func (h *ThreadHandler) Direct(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var body struct {
		With ActorRef `json:"with" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}

	thread, err := h.threads.Between(c.Request.Context(), actor, body.With.Actor())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *ThreadHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	threads, err := h.threads.ListForActor(c.Request.Context(), actor, queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

func (h *ThreadHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	thread, err := h.threads.Get(c.Request.Context(), actor, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

type UpdateThreadRequest struct {
	Name     *string                `json:"name"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (h *ThreadHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body UpdateThreadRequest
	if !bindJSON(c, &body) {
		return
	}
	thread, err := h.threads.Update(c.Request.Context(), actor, id, service.ThreadUpdate{Name: body.Name, Metadata: body.Metadata})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *ThreadHandler) Lock(c *gin.Context) {
	h.setLocked(c, h.threads.Lock)
}

func (h *ThreadHandler) Unlock(c *gin.Context) {
	h.setLocked(c, h.threads.Unlock)
}

func (h *ThreadHandler) setLocked(c *gin.Context, action func(ctx context.Context, actor domain.Actor, threadID int64) (*domain.Thread, error)) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	thread, err := action(c.Request.Context(), actor, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *ThreadHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.threads.Delete(c.Request.Context(), actor, id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ThreadHandler) Unread(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	count, err := h.threads.UnreadCount(c.Request.Context(), actor, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread_id": id, "unread": count})
}

func (h *ThreadHandler) UnreadTotal(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	count, err := h.threads.UnreadTotal(c.Request.Context(), actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *ThreadHandler) MarkRead(c *gin.Context) {
	h.markThread(c, h.deliveries.MarkThreadAsRead)
}

func (h *ThreadHandler) MarkDelivered(c *gin.Context) {
	h.markThread(c, h.deliveries.MarkThreadAsDelivered)
}

func (h *ThreadHandler) markThread(c *gin.Context, mark func(ctx context.Context, threadID int64, actor domain.Actor) (int, error)) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	updated, err := mark(c.Request.Context(), id, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *ThreadHandler) Audit(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	entries, err := h.audit.History(c.Request.Context(), actor, id, queryInt(c, "limit", 100))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

package handler

import (
	"context"
	"net/http"

	"chat_engine/internal/domain"
	"chat_engine/internal/events"
	"chat_engine/internal/service"
	"chat_engine/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Входящие сигналы клиента.
const (
	inboundTypingStart = "typing.start"
	inboundTypingStop  = "typing.stop"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// источник проверяется middleware.CORS до апгрейда
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WebSocketHandler struct {
	hub      *events.Hub
	threads  service.ThreadService
	presence service.PresenceService
	log      logger.Logger
}

func NewWebSocketHandler(hub *events.Hub, threads service.ThreadService, presence service.PresenceService, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, threads: threads, presence: presence, log: log}
}

// Handle подписывает участника на события треда.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime events are disabled"})
		return
	}
	if _, err := h.threads.Get(c.Request.Context(), actor, id); err != nil {
		fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err, "thread_id", id)
		return
	}

	// контекст запроса завершается вместе с обработчиком, соединение живет дольше
	ctx := context.WithoutCancel(c.Request.Context())
	h.markOnline(ctx, actor)
	defer h.markOffline(ctx, actor)

	h.hub.Serve(ctx, conn, id, actor, h.onInbound)
}

func (h *WebSocketHandler) onInbound(ctx context.Context, threadID int64, actor domain.Actor, in events.Inbound) {
	var err error
	switch in.Type {
	case inboundTypingStart:
		err = h.presence.Typing(ctx, threadID, actor)
	case inboundTypingStop:
		err = h.presence.StopTyping(ctx, threadID, actor)
	default:
		h.log.Debug("Unknown websocket signal", "type", in.Type, "thread_id", threadID)
		return
	}
	if err != nil {
		h.log.Warn("Failed to handle websocket signal", "error", err, "type", in.Type, "thread_id", threadID)
	}
}

func (h *WebSocketHandler) markOnline(ctx context.Context, actor domain.Actor) {
	if err := h.presence.Online(ctx, actor); err != nil {
		h.log.Debug("Presence not updated", "error", err, "actor", actor.String())
	}
}

func (h *WebSocketHandler) markOffline(ctx context.Context, actor domain.Actor) {
	if err := h.presence.Offline(ctx, actor); err != nil {
		h.log.Debug("Presence not updated", "error", err, "actor", actor.String())
	}
}

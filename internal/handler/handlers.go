package handler

import (
	"net/http"
	"strconv"

	"chat_engine/internal/domain"
	"chat_engine/internal/events"
	"chat_engine/internal/middleware"
	"chat_engine/internal/service"
	"chat_engine/internal/storage"
	"chat_engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health       *HealthHandler
	Threads      *ThreadHandler
	Participants *ParticipantHandler
	Messages     *MessageHandler
	Attachments  *AttachmentHandler
	Reactions    *ReactionHandler
	Files        *FileHandler
	Presence     *PresenceHandler
	WebSocket    *WebSocketHandler
}

type Options struct {
	Hub    *events.Hub
	Files  storage.FileStore
	Signer *storage.Signer
	Auth   *middleware.AuthMiddleware
	Checks []HealthCheck
}

func NewHandlers(services *service.Services, opts Options, log logger.Logger) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(opts.Checks...),
		Threads:      NewThreadHandler(services.Threads, services.Deliveries, services.Audit, log),
		Participants: NewParticipantHandler(services.Participants, log),
		Messages:     NewMessageHandler(services.Messages, services.Deletions, services.Deliveries, services.Attachments, log),
		Attachments:  NewAttachmentHandler(services.Attachments, log),
		Reactions:    NewReactionHandler(services.Reactions, services.Bookmarks, log),
		Files:        NewFileHandler(opts.Files, opts.Signer, opts.Auth, log),
		Presence:     NewPresenceHandler(services.Presence, log),
		WebSocket:    NewWebSocketHandler(opts.Hub, services.Threads, services.Presence, log),
	}
}

// Register подключает маршруты API. writeLimit применяется к изменяющим запросам.
func (h *Handlers) Register(r *gin.Engine, requireAuth, writeLimit gin.HandlerFunc) {
	r.GET("/health", h.Health.Check)
	if h.Files.files != nil {
		r.GET("/files/*path", h.Files.Serve)
	}
	r.GET("/ws/threads/:id", requireAuth, h.WebSocket.Handle)

	api := r.Group("/api/v1", requireAuth)

	threads := api.Group("/threads")
	{
		threads.GET("", h.Threads.List)
		threads.GET("/unread", h.Threads.UnreadTotal)
		threads.POST("", writeLimit, h.Threads.Create)
		threads.POST("/direct", writeLimit, h.Threads.Direct)
		threads.GET("/:id", h.Threads.Get)
		threads.PATCH("/:id", writeLimit, h.Threads.Update)
		threads.DELETE("/:id", writeLimit, h.Threads.Delete)
		threads.POST("/:id/lock", writeLimit, h.Threads.Lock)
		threads.POST("/:id/unlock", writeLimit, h.Threads.Unlock)
		threads.GET("/:id/unread", h.Threads.Unread)
		threads.POST("/:id/read", h.Threads.MarkRead)
		threads.POST("/:id/delivered", h.Threads.MarkDelivered)
		threads.GET("/:id/audit", h.Threads.Audit)

		threads.GET("/:id/participants", h.Participants.List)
		threads.POST("/:id/participants", writeLimit, h.Participants.Add)
		threads.PATCH("/:id/participants/:actor", writeLimit, h.Participants.UpdateRole)
		threads.DELETE("/:id/participants/:actor", writeLimit, h.Participants.Remove)
		threads.POST("/:id/leave", writeLimit, h.Participants.Leave)
		threads.POST("/:id/transfer", writeLimit, h.Participants.Transfer)
		threads.POST("/:id/chat-lock", writeLimit, h.Participants.LockChat)
		threads.POST("/:id/chat-unlock", writeLimit, h.Participants.UnlockChat)
		threads.PUT("/:id/public-key", writeLimit, h.Participants.SetPublicKey)
		threads.GET("/:id/security/:actor", h.Participants.VerifySecurity)

		threads.GET("/:id/messages", h.Messages.List)
		threads.POST("/:id/messages", writeLimit, h.Messages.Send)

		threads.GET("/:id/typing", h.Presence.TypingIn)
		threads.POST("/:id/typing", h.Presence.Typing)
		threads.DELETE("/:id/typing", h.Presence.StopTyping)
	}

	messages := api.Group("/messages")
	{
		messages.GET("/:id", h.Messages.Get)
		messages.PATCH("/:id", writeLimit, h.Messages.Edit)
		messages.DELETE("/:id", writeLimit, h.Messages.Delete)
		messages.POST("/:id/restore", writeLimit, h.Messages.Restore)
		messages.POST("/:id/delivered", h.Messages.MarkDelivered)
		messages.POST("/:id/read", h.Messages.MarkRead)

		messages.GET("/:id/reactions", h.Reactions.Reactions)
		messages.POST("/:id/reactions", writeLimit, h.Reactions.React)
		messages.DELETE("/:id/reactions", writeLimit, h.Reactions.Unreact)
		messages.POST("/:id/bookmark", writeLimit, h.Reactions.Bookmark)
		messages.DELETE("/:id/bookmark", writeLimit, h.Reactions.Unbookmark)
		messages.POST("/:id/bookmark/toggle", writeLimit, h.Reactions.ToggleBookmark)
	}

	api.GET("/reactions", h.Reactions.Given)

	bookmarks := api.Group("/bookmarks")
	{
		bookmarks.GET("", h.Reactions.Bookmarks)
		bookmarks.GET("/collections", h.Reactions.Collections)
		bookmarks.POST("/collections", writeLimit, h.Reactions.CreateCollection)
	}

	attachments := api.Group("/attachments")
	{
		attachments.GET("/:id", h.Attachments.Get)
		attachments.POST("/:id/open", h.Attachments.Open)
		attachments.GET("/:id/temporary-url", h.Attachments.TemporaryURL)
	}

	presence := api.Group("/presence")
	{
		presence.POST("/online", h.Presence.Online)
		presence.POST("/away", h.Presence.Away)
		presence.POST("/offline", h.Presence.Offline)
		presence.POST("/seen", h.Presence.Seen)
		presence.GET("/:actor", h.Presence.Status)
	}
}

type ActorRef struct {
	Type string `json:"type" binding:"required"`
	ID   string `json:"id" binding:"required"`
}

func (r ActorRef) Actor() domain.Actor {
	return domain.NewActor(r.Type, r.ID)
}

func currentActor(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "actor not authenticated"})
	}
	return actor, ok
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// actorParam разбирает актора из пути в форме type:id.
func actorParam(c *gin.Context, name string) (domain.Actor, bool) {
	actor, err := domain.ParseActor(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.Actor{}, false
	}
	return actor, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

// fail передает ошибку сервиса в middleware.ErrorHandler.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

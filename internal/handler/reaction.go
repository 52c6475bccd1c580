package handler

import (
	"net/http"
	"strconv"

	"chat_engine/internal/service"
	"chat_engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ReactionHandler struct {
	reactions service.ReactionService
	bookmarks service.BookmarkService
	log       logger.Logger
}

func NewReactionHandler(reactions service.ReactionService, bookmarks service.BookmarkService, log logger.Logger) *ReactionHandler {
	return &ReactionHandler{reactions: reactions, bookmarks: bookmarks, log: log}
}

type ReactRequest struct {
	Reaction string `json:"reaction" binding:"required"`
}

func (h *ReactionHandler) React(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ReactRequest
	if !bindJSON(c, &req) {
		return
	}
	reaction, err := h.reactions.React(c.Request.Context(), id, actor, req.Reaction)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reaction": reaction})
}

func (h *ReactionHandler) Unreact(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	removed, err := h.reactions.Unreact(c.Request.Context(), id, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *ReactionHandler) Reactions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	summary, err := h.reactions.Summary(ctx, id, actor)
	if err != nil {
		fail(c, err)
		return
	}
	reactions, err := h.reactions.List(ctx, id, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "reactions": reactions})
}

func (h *ReactionHandler) Given(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	reactions, err := h.reactions.Given(c.Request.Context(), actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": reactions})
}

type BookmarkRequest struct {
	CollectionID *int64                 `json:"collection_id"`
	Metadata     map[string]interface{} `json:"metadata"`
}

func (h *ReactionHandler) Bookmark(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req BookmarkRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	bookmark, err := h.bookmarks.Save(c.Request.Context(), id, actor, service.BookmarkRequest{
		CollectionID: req.CollectionID,
		Metadata:     req.Metadata,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmark": bookmark})
}

func (h *ReactionHandler) Unbookmark(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	removed, err := h.bookmarks.Unsave(c.Request.Context(), id, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *ReactionHandler) ToggleBookmark(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	saved, err := h.bookmarks.Toggle(c.Request.Context(), id, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved})
}

func (h *ReactionHandler) Bookmarks(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var collectionID *int64
	if raw := c.Query("collection_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid collection_id"})
			return
		}
		collectionID = &id
	}
	bookmarks, err := h.bookmarks.List(c.Request.Context(), actor, collectionID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarks": bookmarks})
}

type CollectionRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *ReactionHandler) CreateCollection(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CollectionRequest
	if !bindJSON(c, &req) {
		return
	}
	collection, err := h.bookmarks.CreateCollection(c.Request.Context(), actor, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"collection": collection})
}

func (h *ReactionHandler) Collections(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	collections, err := h.bookmarks.ListCollections(c.Request.Context(), actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": collections})
}

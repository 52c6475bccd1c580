package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"chat_engine/internal/middleware"
	"chat_engine/internal/storage"
	"chat_engine/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

const sniffLen = 3072

// FileHandler отдает файлы вложений по подписанной ссылке или аутентифицированному запросу.
type FileHandler struct {
	files  storage.FileStore
	signer *storage.Signer
	auth   *middleware.AuthMiddleware
	log    logger.Logger
}

func NewFileHandler(files storage.FileStore, signer *storage.Signer, auth *middleware.AuthMiddleware, log logger.Logger) *FileHandler {
	return &FileHandler{files: files, signer: signer, auth: auth, log: log}
}

func (h *FileHandler) Serve(c *gin.Context) {
	name := strings.TrimPrefix(path.Clean("/"+c.Param("path")), "/")
	if name == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	if !h.authorized(c, name) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired file token"})
		return
	}

	rc, err := h.files.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, storage.ErrInvalidPath) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		h.log.Error("Failed to open file", "error", err, "path", name)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open file"})
		return
	}
	defer rc.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		h.log.Error("Failed to read file", "error", err, "path", name)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()

	c.Header("Cache-Control", "private, no-store")
	c.DataFromReader(http.StatusOK, -1, contentType, io.MultiReader(bytes.NewReader(head), rc), nil)
}

// authorized принимает подписанный token на этот путь либо токен доступа актора.
func (h *FileHandler) authorized(c *gin.Context, name string) bool {
	if token := c.Query("token"); token != "" && h.signer != nil {
		signed, err := h.signer.Verify(token)
		return err == nil && strings.TrimPrefix(path.Clean("/"+signed), "/") == name
	}
	if h.auth == nil {
		return false
	}
	bearer := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(bearer, "Bearer "); ok {
		_, err := h.auth.ParseToken(token)
		return err == nil
	}
	if token := c.Query("access_token"); token != "" {
		_, err := h.auth.ParseToken(token)
		return err == nil
	}
	return false
}

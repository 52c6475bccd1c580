package middleware

import (
	"chat_engine/pkg/errors"
	"chat_engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler превращает последнюю ошибку из c.Errors в JSON-ответ.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		apiErr := errors.NewAPIError(err)
		if apiErr.Code >= 500 {
			log.Error("Request failed", "error", err, "method", c.Request.Method, "path", c.FullPath())
		}
		c.JSON(apiErr.Code, apiErr)
	}
}

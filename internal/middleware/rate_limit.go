package middleware

import (
	"net/http"
	"strconv"
	"time"

	"chat_engine/internal/service"
	"chat_engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	limit            int
	window           time.Duration
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, limit int, window time.Duration, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		limit:            limit,
		window:           window,
		log:              log,
	}
}

// Limit считает запросы по актору, а для анонимных запросов по IP.
func (m *RateLimitMiddleware) Limit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := "ip:" + c.ClientIP()
		if actor, ok := ActorFrom(c); ok {
			subject = actor.String()
		}
		window := m.window.Truncate(time.Second)
		if window <= 0 {
			window = time.Minute
		}
		bucket := time.Now().Unix() / int64(window/time.Second)
		key := "ratelimit:" + scope + ":" + subject + ":" + strconv.FormatInt(bucket, 10)

		allowed, err := m.rateLimitService.Allow(c.Request.Context(), key, m.limit, window)
		if err != nil {
			// при недоступном хранилище счетчиков запрос пропускается
			m.log.Error("Rate limit check failed", "error", err, "key", key)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(m.limit))
		if !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(window/time.Second)))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

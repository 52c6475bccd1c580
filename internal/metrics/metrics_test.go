package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chat_engine/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestEventsAreCountedByType(t *testing.T) {
	m := New("chat")
	ctx := context.Background()
	now := time.Now()

	m.Publish(ctx, domain.NewEvent(domain.EventMessageSent, now))
	m.Publish(ctx, domain.NewEvent(domain.EventMessageSent, now))
	m.Publish(ctx, domain.NewEvent(domain.EventThreadCreated, now))
	m.ObserveCleanup(map[string]int64{"versions": 3})
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	body := scrape(t, m)
	assert.Contains(t, body, `chat_events_total{type="message.sent"} 2`)
	assert.Contains(t, body, `chat_events_total{type="thread.created"} 1`)
	assert.Contains(t, body, `chat_retention_purged_total{category="versions"} 3`)
	assert.Contains(t, body, `chat_websocket_connections 1`)
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New("chat")
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/threads/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/threads/1", "/threads/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, `chat_http_requests_total{method="GET",route="/threads/:id",status="204"} 2`)
	assert.Contains(t, body, `chat_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
}

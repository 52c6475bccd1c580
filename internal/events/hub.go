package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"chat_engine/internal/domain"
	"chat_engine/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Inbound описывает сигнал от клиента по websocket (набор текста).
type Inbound struct {
	Type string `json:"type"`
}

// InboundHandler обрабатывает входящие сигналы клиента.
type InboundHandler func(ctx context.Context, threadID int64, actor domain.Actor, in Inbound)

// ConnectionObserver получает уведомления об открытии и закрытии соединений.
type ConnectionObserver interface {
	ConnectionOpened()
	ConnectionClosed()
}

// Hub раздает события подключенным websocket-клиентам треда.
type Hub struct {
	mu       sync.RWMutex
	threads  map[int64]map[*Client]struct{}
	observer ConnectionObserver
	log      logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{threads: make(map[int64]map[*Client]struct{}), log: log}
}

func (h *Hub) WithObserver(o ConnectionObserver) *Hub {
	h.observer = o
	return h
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	threadID int64
	actor    domain.Actor
	send     chan []byte
}

// Publish рассылает событие клиентам треда; приватные события получает только их актор.
func (h *Hub) Publish(_ context.Context, event domain.Event) {
	if event.ThreadID == 0 {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		h.log.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.threads[event.ThreadID] {
		if event.Private() && !client.actor.Equal(*event.Actor) {
			continue
		}
		select {
		case client.send <- body:
		default:
			// Медленный клиент: событие пропускается
			h.log.Warn("Dropping event for slow websocket client", "thread_id", event.ThreadID, "actor", client.actor.String())
		}
	}
}

// Subscribers возвращает число клиентов, подписанных на тред.
func (h *Hub) Subscribers(threadID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.threads[threadID])
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.threads[c.threadID] == nil {
		h.threads[c.threadID] = make(map[*Client]struct{})
	}
	h.threads[c.threadID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.threads[c.threadID]; ok {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
		}
		if len(clients) == 0 {
			delete(h.threads, c.threadID)
		}
	}
}

// Serve регистрирует соединение и блокируется до его закрытия.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, threadID int64, actor domain.Actor, onInbound InboundHandler) {
	client := &Client{hub: h, conn: conn, threadID: threadID, actor: actor, send: make(chan []byte, sendBuffer)}
	h.register(client)
	if h.observer != nil {
		h.observer.ConnectionOpened()
		defer h.observer.ConnectionClosed()
	}
	h.log.Info("Websocket client connected", "thread_id", threadID, "actor", actor.String())

	go client.writePump()
	client.readPump(ctx, onInbound)
}

func (c *Client) readPump(ctx context.Context, onInbound InboundHandler) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		c.hub.log.Info("Websocket client disconnected", "thread_id", c.threadID, "actor", c.actor.String())
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in Inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("Websocket read failed", "error", err)
			}
			return
		}
		if onInbound != nil {
			onInbound(ctx, c.threadID, c.actor, in)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case body, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

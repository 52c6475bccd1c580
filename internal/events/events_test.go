package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat_engine/internal/domain"
	"chat_engine/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiFansOut(t *testing.T) {
	first, second := NewCollector(), NewCollector()
	sink := Multi(first, nil, second)

	event := domain.NewEvent(domain.EventMessageSent, time.Now())
	sink.Publish(context.Background(), event)

	assert.Equal(t, []domain.EventType{domain.EventMessageSent}, first.Types())
	assert.Equal(t, []domain.EventType{domain.EventMessageSent}, second.Types())
}

func TestChannel(t *testing.T) {
	now := time.Now()
	thread := &domain.Thread{ID: 7}
	assert.Equal(t, "chat:thread:7", Channel(domain.NewEvent(domain.EventThreadCreated, now).WithThread(thread)))

	presence := domain.NewEvent(domain.EventPresenceChanged, now).WithActor(domain.NewActor("user", "3"))
	assert.Equal(t, "chat:actor:user:3", Channel(presence))
	assert.Equal(t, GlobalChannel, Channel(domain.NewEvent(domain.EventPresenceChanged, now)))

	hidden := domain.NewEvent(domain.EventMessageDeletedForActor, now).
		WithMessage(&domain.Message{ID: 5, ThreadID: 7}).
		WithActor(domain.NewActor("user", "3"))
	assert.Equal(t, "chat:actor:user:3", Channel(hidden))
	reacted := domain.NewEvent(domain.EventMessageReacted, now).
		WithMessage(&domain.Message{ID: 5, ThreadID: 7}).
		WithActor(domain.NewActor("user", "3"))
	assert.Equal(t, "chat:thread:7", Channel(reacted))
}

func TestHubDeliversThreadEvents(t *testing.T) {
	hub := NewHub(logger.NewNop())
	actor := domain.NewActor("user", "1")
	inbound := make(chan Inbound, 1)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(context.Background(), conn, 42, actor, func(_ context.Context, threadID int64, from domain.Actor, in Inbound) {
			inbound <- in
		})
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers(42) == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(context.Background(), domain.NewEvent(domain.EventMessageSent, time.Now()).WithMessage(&domain.Message{ID: 5, ThreadID: 42}))
	hub.Publish(context.Background(), domain.NewEvent(domain.EventMessageSent, time.Now()).WithMessage(&domain.Message{ID: 6, ThreadID: 43}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, body, err := conn.ReadMessage()
	require.NoError(t, err)

	var received domain.Event
	require.NoError(t, json.Unmarshal(body, &received))
	assert.Equal(t, domain.EventMessageSent, received.Type)
	assert.Equal(t, int64(5), received.MessageID)

	require.NoError(t, conn.WriteJSON(Inbound{Type: "typing.started"}))
	select {
	case in := <-inbound:
		assert.Equal(t, "typing.started", in.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("inbound signal not received")
	}
}

func TestHubDeliversPrivateEventsOnlyToTheirActor(t *testing.T) {
	hub := NewHub(logger.NewNop())
	owner := domain.NewActor("user", "1")
	other := domain.NewActor("user", "2")

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := domain.ParseActor(r.URL.Query().Get("actor"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(context.Background(), conn, 42, actor, nil)
	}))
	defer server.Close()

	dial := func(actor domain.Actor) *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"?actor="+actor.String(), nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	ownerConn, otherConn := dial(owner), dial(other)
	require.Eventually(t, func() bool { return hub.Subscribers(42) == 2 }, time.Second, 10*time.Millisecond)

	msg := &domain.Message{ID: 5, ThreadID: 42}
	hub.Publish(context.Background(), domain.NewEvent(domain.EventMessageDeletedForActor, time.Now()).WithMessage(msg).WithActor(owner))
	hub.Publish(context.Background(), domain.NewEvent(domain.EventMessageSent, time.Now()).WithMessage(msg))

	next := func(conn *websocket.Conn) domain.EventType {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, body, err := conn.ReadMessage()
		require.NoError(t, err)
		var received domain.Event
		require.NoError(t, json.Unmarshal(body, &received))
		return received.Type
	}

	assert.Equal(t, domain.EventMessageDeletedForActor, next(ownerConn))
	assert.Equal(t, domain.EventMessageSent, next(ownerConn))
	// первым до чужого клиента доходит публичное событие
	assert.Equal(t, domain.EventMessageSent, next(otherConn))
}

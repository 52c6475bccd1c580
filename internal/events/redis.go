package events

import (
	"context"
	"encoding/json"
	"fmt"

	"chat_engine/internal/domain"
	"chat_engine/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	threadChannel = "chat:thread:%d"
	actorChannel  = "chat:actor:%s"
	// GlobalChannel получает события без треда (присутствие).
	GlobalChannel = "chat:events"
)

// Channel возвращает канал pub/sub для события.
func Channel(event domain.Event) string {
	switch {
	case event.Private():
		return fmt.Sprintf(actorChannel, event.Actor.String())
	case event.ThreadID != 0:
		return fmt.Sprintf(threadChannel, event.ThreadID)
	case event.Actor != nil:
		return fmt.Sprintf(actorChannel, event.Actor.String())
	default:
		return GlobalChannel
	}
}

// RedisSink публикует события в Redis как JSON.
type RedisSink struct {
	rdb *redis.Client
	log logger.Logger
}

func NewRedisSink(rdb *redis.Client, log logger.Logger) *RedisSink {
	return &RedisSink{rdb: rdb, log: log}
}

func (s *RedisSink) Publish(ctx context.Context, event domain.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		s.log.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return
	}
	if err := s.rdb.Publish(ctx, Channel(event), body).Err(); err != nil {
		s.log.Error("Failed to publish event", "error", err, "event_type", event.Type, "channel", Channel(event))
	}
}

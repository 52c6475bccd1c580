package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"chat_engine/internal/domain"
	"chat_engine/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "chat:presence:%s"
	lastSeenKeyPrefix = "chat:last_seen:%s"
	typingKeyPrefix   = "chat:typing:%d"
	lastSeenTTL       = 30 * 24 * time.Hour
)

// PresenceRepository хранит эфемерное состояние: статус, last seen и набор печатающих.
type PresenceRepository interface {
	SetStatus(ctx context.Context, actor domain.Actor, status string, ttl time.Duration) error
	// GetStatus возвращает offline, если статус истек или не задавался.
	GetStatus(ctx context.Context, actor domain.Actor) (*domain.Presence, error)
	TouchLastSeen(ctx context.Context, actor domain.Actor, at time.Time) error
	StartTyping(ctx context.Context, threadID int64, actor domain.Actor, until time.Time) error
	StopTyping(ctx context.Context, threadID int64, actor domain.Actor) error
	// Typing возвращает акторов, чья отметка о наборе не истекла к моменту now.
	Typing(ctx context.Context, threadID int64, now time.Time) ([]domain.Actor, error)
}

type presenceRepository struct {
	rdb *redis.Client
	log logger.Logger
}

func NewPresenceRepository(rdb *redis.Client, log logger.Logger) PresenceRepository {
	return &presenceRepository{rdb: rdb, log: log}
}

func (r *presenceRepository) SetStatus(ctx context.Context, actor domain.Actor, status string, ttl time.Duration) error {
	key := fmt.Sprintf(presenceKeyPrefix, actor.String())
	if status == domain.PresenceOffline {
		if err := r.rdb.Del(ctx, key).Err(); err != nil {
			r.log.Error("Failed to clear presence", "error", err, "actor", actor.String())
			return err
		}
		return nil
	}
	if err := r.rdb.Set(ctx, key, status, ttl).Err(); err != nil {
		r.log.Error("Failed to set presence", "error", err, "actor", actor.String())
		return err
	}
	return nil
}

func (r *presenceRepository) GetStatus(ctx context.Context, actor domain.Actor) (*domain.Presence, error) {
	presence := &domain.Presence{Actor: actor, Status: domain.PresenceOffline}

	status, err := r.rdb.Get(ctx, fmt.Sprintf(presenceKeyPrefix, actor.String())).Result()
	switch {
	case err == redis.Nil:
	case err != nil:
		r.log.Error("Failed to get presence", "error", err, "actor", actor.String())
		return nil, err
	default:
		presence.Status = status
	}

	millis, err := r.rdb.Get(ctx, fmt.Sprintf(lastSeenKeyPrefix, actor.String())).Int64()
	switch {
	case err == redis.Nil:
	case err != nil:
		r.log.Error("Failed to get last seen", "error", err, "actor", actor.String())
		return nil, err
	default:
		seen := time.UnixMilli(millis).UTC()
		presence.LastSeen = &seen
	}
	return presence, nil
}

func (r *presenceRepository) TouchLastSeen(ctx context.Context, actor domain.Actor, at time.Time) error {
	key := fmt.Sprintf(lastSeenKeyPrefix, actor.String())
	if err := r.rdb.Set(ctx, key, strconv.FormatInt(at.UnixMilli(), 10), lastSeenTTL).Err(); err != nil {
		r.log.Error("Failed to update last seen", "error", err, "actor", actor.String())
		return err
	}
	return nil
}

// StartTyping кладет актора в sorted set треда; score: момент истечения в миллисекундах.
func (r *presenceRepository) StartTyping(ctx context.Context, threadID int64, actor domain.Actor, until time.Time) error {
	key := fmt.Sprintf(typingKeyPrefix, threadID)
	err := r.rdb.ZAdd(ctx, key, redis.Z{
		Score:  float64(until.UnixMilli()),
		Member: actor.String(),
	}).Err()
	if err != nil {
		r.log.Error("Failed to mark typing", "error", err, "thread_id", threadID)
		return err
	}
	if err := r.rdb.ExpireAt(ctx, key, until).Err(); err != nil {
		r.log.Warn("Failed to set TTL on typing key", "error", err)
	}
	return nil
}

func (r *presenceRepository) StopTyping(ctx context.Context, threadID int64, actor domain.Actor) error {
	if err := r.rdb.ZRem(ctx, fmt.Sprintf(typingKeyPrefix, threadID), actor.String()).Err(); err != nil {
		r.log.Error("Failed to clear typing", "error", err, "thread_id", threadID)
		return err
	}
	return nil
}

func (r *presenceRepository) Typing(ctx context.Context, threadID int64, now time.Time) ([]domain.Actor, error) {
	key := fmt.Sprintf(typingKeyPrefix, threadID)
	if err := r.rdb.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now.UnixMilli(), 10)).Err(); err != nil {
		r.log.Warn("Failed to prune typing set", "error", err, "thread_id", threadID)
	}
	members, err := r.rdb.ZRange(ctx, key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		r.log.Error("Failed to list typing actors", "error", err, "thread_id", threadID)
		return nil, err
	}
	actors := make([]domain.Actor, 0, len(members))
	for _, member := range members {
		actor, err := domain.ParseActor(member)
		if err != nil {
			r.log.Warn("Skipping malformed typing member", "member", member)
			continue
		}
		actors = append(actors, actor)
	}
	return actors, nil
}

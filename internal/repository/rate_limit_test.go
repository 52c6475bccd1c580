package repository

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"chat_engine/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commandRecorder отвечает на INCR и EXPIRE без сервера и запоминает команды.
type commandRecorder struct {
	mu       sync.Mutex
	counters map[string]int64
	commands []string
}

func (r *commandRecorder) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, fmt.Errorf("dial %s: not expected in test", addr)
	}
}

func (r *commandRecorder) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.commands = append(r.commands, cmd.Name())
		switch c := cmd.(type) {
		case *redis.IntCmd:
			key := fmt.Sprint(c.Args()[1])
			r.counters[key]++
			c.SetVal(r.counters[key])
		case *redis.BoolCmd:
			c.SetVal(true)
		default:
			return fmt.Errorf("unexpected command %s", cmd.Name())
		}
		return nil
	}
}

func (r *commandRecorder) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		return fmt.Errorf("pipelines are not expected")
	}
}

func TestIncrementSetsWindowOnlyOnFirstHit(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	recorder := &commandRecorder{counters: make(map[string]int64)}
	client.AddHook(recorder)

	repo := NewRateLimitRepository(client, logger.NewNop())
	ctx := context.Background()

	count, err := repo.Increment(ctx, "rl:user:1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.Increment(ctx, "rl:user:1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.Increment(ctx, "rl:user:2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.Equal(t, []string{"incr", "expire", "incr", "incr", "expire"}, recorder.commands)
}

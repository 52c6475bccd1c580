package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"chat_engine/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingCleaner struct {
	started chan struct{}
	release chan struct{}
	calls   int
}

func (c *blockingCleaner) RunCleanup(ctx context.Context) (map[string]int64, error) {
	c.calls++
	if c.started != nil {
		close(c.started)
		<-c.release
	}
	return map[string]int64{"deleted_messages": 2}, nil
}

type failingCleaner struct{}

func (failingCleaner) RunCleanup(ctx context.Context) (map[string]int64, error) {
	return nil, errors.New("database is down")
}

func TestNewSchedulerValidatesCron(t *testing.T) {
	_, err := NewScheduler("every day", &blockingCleaner{}, logger.NewNop())
	assert.Error(t, err)

	s, err := NewScheduler("0 3 * * *", &blockingCleaner{}, logger.NewNop())
	require.NoError(t, err)

	next, err := s.NextRun(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 2, 3, 0, 0, 0, time.UTC), next)
}

func TestRunNowRejectsConcurrentRuns(t *testing.T) {
	cleaner := &blockingCleaner{started: make(chan struct{}), release: make(chan struct{})}
	s, err := NewScheduler("0 3 * * *", cleaner, logger.NewNop())
	require.NoError(t, err)

	done := make(chan map[string]int64)
	go func() {
		results, _ := s.RunNow(context.Background())
		done <- results
	}()
	<-cleaner.started

	_, err = s.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(cleaner.release)
	assert.Equal(t, map[string]int64{"deleted_messages": 2}, <-done)
	assert.Equal(t, 1, cleaner.calls)

	last, lastErr := s.LastRun()
	assert.False(t, last.IsZero())
	assert.NoError(t, lastErr)
}

func TestRunNowRecordsFailure(t *testing.T) {
	s, err := NewScheduler("*/5 * * * *", failingCleaner{}, logger.NewNop())
	require.NoError(t, err)

	_, err = s.RunNow(context.Background())
	assert.Error(t, err)
	_, lastErr := s.LastRun()
	assert.EqualError(t, lastErr, "database is down")
}

func TestStartStopsWithContext(t *testing.T) {
	s, err := NewScheduler("0 3 * * *", &blockingCleaner{}, logger.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.loop(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler loop did not stop")
	}
}

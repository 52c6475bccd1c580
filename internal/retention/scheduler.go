// Package retention запускает очистку устаревших данных по cron-расписанию.
package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chat_engine/pkg/logger"

	"github.com/adhocore/gronx"
)

var ErrAlreadyRunning = errors.New("retention cleanup is already running")

// Cleaner выполняет один проход очистки.
type Cleaner interface {
	RunCleanup(ctx context.Context) (map[string]int64, error)
}

type Scheduler struct {
	cron    string
	cleaner Cleaner
	log     logger.Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

func NewScheduler(cron string, cleaner Cleaner, log logger.Logger) (*Scheduler, error) {
	if !gronx.New().IsValid(cron) {
		return nil, fmt.Errorf("invalid retention cron expression %q", cron)
	}
	return &Scheduler{cron: cron, cleaner: cleaner, log: log, now: time.Now}, nil
}

// NextRun возвращает ближайший запуск строго после after.
func (s *Scheduler) NextRun(after time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.cron, after, false)
}

// Start крутит цикл расписания до отмены ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("Retention scheduler started", "cron", s.cron)
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		next, err := s.NextRun(s.now())
		if err != nil {
			s.log.Error("Failed to compute next retention run", "error", err, "cron", s.cron)
			if !sleep(ctx, 30*time.Second) {
				return
			}
			continue
		}

		if !sleep(ctx, next.Sub(s.now())) {
			s.log.Info("Retention scheduler stopped")
			return
		}
		if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			s.log.Error("Retention cleanup failed", "error", err)
		}
	}
}

// RunNow выполняет очистку немедленно. Параллельный запуск отклоняется.
func (s *Scheduler) RunNow(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	started := s.now()
	results, err := s.cleaner.RunCleanup(ctx)

	s.mu.Lock()
	s.running = false
	s.lastRun = started
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		return results, err
	}
	s.log.Info("Retention run finished", "results", results, "took", time.Since(started).String())
	return results, nil
}

// LastRun возвращает время начала и результат последнего прохода.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

package service

import (
	"context"
	"time"
)

// Ключи результата RunCleanup.
const (
	CleanupDeletedMessages   = "deleted_messages"
	CleanupDeliveries        = "deliveries"
	CleanupVersions          = "versions"
	CleanupOrphanedDeletions = "orphaned_deletions"
)

// RetentionService удаляет устаревшие записи. Файлы вложений не трогает.
type RetentionService interface {
	PurgeDeletedMessages(ctx context.Context, olderThanDays int) (int64, error)
	PurgeOldDeliveries(ctx context.Context, olderThanDays int) (int64, error)
	PurgeOldVersions(ctx context.Context, olderThanDays int) (int64, error)
	PurgeOrphanedDeletions(ctx context.Context) (int64, error)
	// RunCleanup применяет настроенные пороги; категории без порога пропускаются.
	RunCleanup(ctx context.Context) (map[string]int64, error)
}

type retentionService struct {
	*base
}

func NewRetentionService(b *base) RetentionService {
	return &retentionService{base: b}
}

func (s *retentionService) cutoff(days int) time.Time {
	return s.now().AddDate(0, 0, -days)
}

func (s *retentionService) PurgeDeletedMessages(ctx context.Context, olderThanDays int) (int64, error) {
	n, err := s.store.Retention().PurgeDeletedMessages(ctx, s.cutoff(olderThanDays))
	if err != nil {
		s.log.Error("Failed to purge deleted messages", "error", err, "days", olderThanDays)
		return 0, err
	}
	return n, nil
}

func (s *retentionService) PurgeOldDeliveries(ctx context.Context, olderThanDays int) (int64, error) {
	n, err := s.store.Retention().PurgeReadDeliveries(ctx, s.cutoff(olderThanDays))
	if err != nil {
		s.log.Error("Failed to purge deliveries", "error", err, "days", olderThanDays)
		return 0, err
	}
	return n, nil
}

func (s *retentionService) PurgeOldVersions(ctx context.Context, olderThanDays int) (int64, error) {
	n, err := s.store.Retention().PurgeVersions(ctx, s.cutoff(olderThanDays))
	if err != nil {
		s.log.Error("Failed to purge versions", "error", err, "days", olderThanDays)
		return 0, err
	}
	return n, nil
}

func (s *retentionService) PurgeOrphanedDeletions(ctx context.Context) (int64, error) {
	n, err := s.store.Retention().PurgeOrphanedDeletions(ctx)
	if err != nil {
		s.log.Error("Failed to purge orphaned deletions", "error", err)
		return 0, err
	}
	return n, nil
}

func (s *retentionService) RunCleanup(ctx context.Context) (map[string]int64, error) {
	cfg := s.cfg.Retention
	results := make(map[string]int64)

	steps := []struct {
		key  string
		days *int
		run  func(context.Context, int) (int64, error)
	}{
		{CleanupDeletedMessages, cfg.DeletedMessagesDays, s.PurgeDeletedMessages},
		{CleanupDeliveries, cfg.DeliveryRecordsDays, s.PurgeOldDeliveries},
		{CleanupVersions, cfg.VersionsDays, s.PurgeOldVersions},
	}
	for _, step := range steps {
		if step.days == nil {
			continue
		}
		n, err := step.run(ctx, *step.days)
		if err != nil {
			return results, err
		}
		results[step.key] = n
	}

	n, err := s.PurgeOrphanedDeletions(ctx)
	if err != nil {
		return results, err
	}
	results[CleanupOrphanedDeletions] = n

	s.log.Info("Retention cleanup finished", "results", results)

	return results, nil
}

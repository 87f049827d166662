package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sepatuku/inventory_api/internal/repository"
)

// RetentionWorker periodically purges sync logs past the retention window.
type RetentionWorker struct {
	syncLogRepo *repository.SyncLogRepository
	interval    time.Duration
	days        int
}

// NewRetentionWorker constructs a RetentionWorker.
func NewRetentionWorker(syncLogRepo *repository.SyncLogRepository, interval time.Duration, days int) *RetentionWorker {
	return &RetentionWorker{
		syncLogRepo: syncLogRepo,
		interval:    interval,
		days:        days,
	}
}

// Start begins the periodic purge loop and listens for context cancellation.
func (w *RetentionWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Int("days", w.days).Msg("Starting sync log retention worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Retention worker stopped")
			return
		}
	}
}

func (w *RetentionWorker) run(ctx context.Context) {
	n, err := w.syncLogRepo.PurgeOlderThan(ctx, w.days)
	if err != nil {
		log.Error().Err(err).Msg("Failed to purge old sync logs")
		return
	}
	if n > 0 {
		log.Info().Int64("purged", n).Msg("Old sync logs purged")
	}
}

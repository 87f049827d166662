package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sepatuku/inventory_api/internal/cache"
	"github.com/sepatuku/inventory_api/internal/service"
	"github.com/sepatuku/inventory_api/internal/utils"
)

// jobName keys the scheduler lock. The lock lives in Redis because the
// worker may run in a different process than the web server.
const jobName = "inventory-sync"

// SyncWorker periodically reconciles the catalog feed and marketplace stock.
type SyncWorker struct {
	syncService *service.SyncService
	jobLock     *cache.JobLock
	interval    time.Duration
	lockTTL     time.Duration
}

// NewSyncWorker constructs a SyncWorker.
func NewSyncWorker(syncService *service.SyncService, jobLock *cache.JobLock, interval, lockTTL time.Duration) *SyncWorker {
	return &SyncWorker{
		syncService: syncService,
		jobLock:     jobLock,
		interval:    interval,
		lockTTL:     lockTTL,
	}
}

// Start begins the periodic sync loop and listens for context cancellation.
func (w *SyncWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting sync worker")

	// Run immediately on start
	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Sync worker stopped")
			return
		}
	}
}

func (w *SyncWorker) run(ctx context.Context) {
	acquired, err := w.jobLock.Acquire(ctx, jobName, w.lockTTL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to acquire sync lock")
		return
	}
	if !acquired {
		log.Info().Str("job", jobName).Msg("Sync already running elsewhere, skipping")
		return
	}
	defer func() {
		if err := w.jobLock.Release(ctx, jobName); err != nil {
			log.Warn().Err(err).Str("job", jobName).Msg("Failed to release sync lock")
		}
	}()

	start := time.Now()
	log.Info().Msg("Starting scheduled reconciliation run")

	w.apply(ctx, "catalog", func() (*service.SyncResult, error) {
		return w.syncService.ApplyCatalog(ctx, service.SyncOptions{})
	})
	w.apply(ctx, "marketplace", func() (*service.SyncResult, error) {
		return w.syncService.ApplyMarketplace(ctx, service.SyncOptions{})
	})

	log.Info().Dur("duration", time.Since(start)).Msg("Reconciliation run completed")
}

func (w *SyncWorker) apply(ctx context.Context, name string, fn func() (*service.SyncResult, error)) {
	result, err := fn()
	if errors.Is(err, utils.ErrRecentlySynced) {
		log.Info().Str("sync", name).Msg("Recently synced, skipping")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("sync", name).Msg("Sync failed")
		return
	}

	log.Info().
		Str("sync", name).
		Str("sync_id", result.SyncID).
		Str("status", string(result.Status)).
		Int("created", result.Stats.Created).
		Int("updated", result.Stats.Updated).
		Int("deleted", result.Stats.Deleted).
		Int("skipped", result.Stats.Skipped).
		Int("errors", result.Stats.Errors).
		Msg("Sync completed")
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sepatuku/inventory_api/internal/models"
)

// SyncLogRepository handles the append-only sync_logs audit table.
type SyncLogRepository struct {
	db *sqlx.DB
}

// NewSyncLogRepository creates a new SyncLogRepository.
func NewSyncLogRepository(db *sqlx.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Create appends one completed run. Rows are never updated afterwards.
func (r *SyncLogRepository) Create(ctx context.Context, entry *models.SyncLog) error {
	const q = `
        INSERT INTO sync_logs (sync_id, kind, status, started_at, duration_seconds, created_count, updated_count, deleted_count, skipped_count, error_count, error_list)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id, created_at`

	return r.db.QueryRowxContext(ctx, q,
		entry.SyncID,
		entry.Kind,
		entry.Status,
		entry.StartedAt,
		entry.DurationSeconds,
		entry.CreatedCount,
		entry.UpdatedCount,
		entry.DeletedCount,
		entry.SkippedCount,
		entry.ErrorCount,
		entry.ErrorList,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// GetRecent returns the newest runs first.
func (r *SyncLogRepository) GetRecent(ctx context.Context, limit int) ([]models.SyncLog, error) {
	const q = `SELECT * FROM sync_logs ORDER BY started_at DESC LIMIT $1`

	var logs []models.SyncLog
	if err := r.db.SelectContext(ctx, &logs, q, limit); err != nil {
		return nil, err
	}
	return logs, nil
}

// LastCompleted returns the most recent run of a kind that performed writes
// (success or partial), or nil when none exists.
func (r *SyncLogRepository) LastCompleted(ctx context.Context, kind models.SyncKind) (*models.SyncLog, error) {
	const q = `SELECT * FROM sync_logs
        WHERE kind = $1 AND status IN ($2, $3)
        ORDER BY started_at DESC LIMIT 1`

	var entry models.SyncLog
	err := r.db.GetContext(ctx, &entry, q, kind, models.SyncStatusSuccess, models.SyncStatusPartial)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// PurgeOlderThan deletes runs older than the retention window and returns
// how many rows were removed.
func (r *SyncLogRepository) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention days must be positive")
	}
	const q = `DELETE FROM sync_logs WHERE started_at < NOW() - ($1 * INTERVAL '1 day')`

	res, err := r.db.ExecContext(ctx, q, days)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SyncStatus enumerates terminal states of a sync run.
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusPartial SyncStatus = "partial"
	SyncStatusFailed  SyncStatus = "failed"
)

// SyncKind enumerates the reconciliation sources.
type SyncKind string

const (
	SyncKindCatalog     SyncKind = "catalog"
	SyncKindMarketplace SyncKind = "marketplace"
)

// SyncLog is the append-only audit record for one sync run. Rows are never
// mutated after completion.
type SyncLog struct {
	ID              int           `db:"id" json:"id"`
	SyncID          string        `db:"sync_id" json:"syncId"`
	Kind            SyncKind      `db:"kind" json:"kind"`
	Status          SyncStatus    `db:"status" json:"status"`
	StartedAt       time.Time     `db:"started_at" json:"startedAt"`
	DurationSeconds float64       `db:"duration_seconds" json:"durationSeconds"`
	CreatedCount    int           `db:"created_count" json:"created"`
	UpdatedCount    int           `db:"updated_count" json:"updated"`
	DeletedCount    int           `db:"deleted_count" json:"deleted"`
	SkippedCount    int           `db:"skipped_count" json:"skipped"`
	ErrorCount      int           `db:"error_count" json:"errors"`
	ErrorList       SyncErrorList `db:"error_list" json:"errorList"`
	CreatedAt       time.Time     `db:"created_at" json:"-"`
}

// SyncError records one row-level failure with enough context to find the
// offending feed row.
type SyncError struct {
	Row    int    `json:"row"`
	SKU    string `json:"sku,omitempty"`
	Reason string `json:"reason"`
}

// SyncErrorList is persisted as a JSONB column on sync_logs.
type SyncErrorList []SyncError

// Value implements driver.Valuer.
func (l SyncErrorList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]SyncError(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *SyncErrorList) Scan(src interface{}) error {
	if src == nil {
		*l = SyncErrorList{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for SyncErrorList", src)
	}
	var out []SyncError
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("invalid SyncErrorList column: %w", err)
	}
	*l = out
	return nil
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/sepatuku/inventory_api/internal/feed"
	"github.com/sepatuku/inventory_api/internal/models"
	"github.com/sepatuku/inventory_api/internal/utils"
	"github.com/sepatuku/inventory_api/pkg/ginee"
)

// sampleLimit bounds how many SKUs a preview result carries per set.
const sampleLimit = 10

// CatalogFeed fetches the spreadsheet export.
type CatalogFeed interface {
	FetchRows(ctx context.Context) ([]feed.Row, []models.SyncError, error)
}

// MarketplaceStock fetches the marketplace warehouse stock records.
type MarketplaceStock interface {
	ListAllStock(ctx context.Context) ([]ginee.StockRecord, error)
}

// ProductStore is the persistence surface the orchestrator writes through.
type ProductStore interface {
	GetAllBySKU(ctx context.Context) (map[string]models.Product, error)
	UpsertTx(tx *sqlx.Tx, product *models.Product) error
	SetStockTx(tx *sqlx.Tx, sku string, quantity int) error
	DeleteBySKUTx(tx *sqlx.Tx, sku string) error
}

// SyncLogStore persists the append-only audit trail of sync runs.
type SyncLogStore interface {
	Create(ctx context.Context, entry *models.SyncLog) error
	GetRecent(ctx context.Context, limit int) ([]models.SyncLog, error)
	LastCompleted(ctx context.Context, kind models.SyncKind) (*models.SyncLog, error)
}

// TxRunner runs a function inside a bounded database transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// SyncOptions control an apply run.
type SyncOptions struct {
	// Force bypasses the recently-synced guard.
	Force bool
	// CleanOldData deletes catalog SKUs that disappeared from the feed.
	// Without it stale SKUs are only reported.
	CleanOldData bool
}

// SyncStats counts per-row outcomes of one run.
type SyncStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// SyncResult is the structured outcome returned to preview and apply
// callers.
type SyncResult struct {
	SyncID          string             `json:"syncId"`
	Kind            models.SyncKind    `json:"kind"`
	Preview         bool               `json:"preview"`
	Status          models.SyncStatus  `json:"status"`
	Stats           SyncStats          `json:"stats"`
	Errors          []models.SyncError `json:"errors"`
	Diagnostics     []models.SyncError `json:"diagnostics,omitempty"`
	SampleCreate    []string           `json:"sampleCreate,omitempty"`
	SampleUpdate    []string           `json:"sampleUpdate,omitempty"`
	Stale           []string           `json:"stale,omitempty"`
	MarketplaceOnly []string           `json:"marketplaceOnly,omitempty"`
	Duration        time.Duration      `json:"-"`

	startedAt time.Time
}

// Success reports whether the run completed without fatal failure.
func (r *SyncResult) Success() bool {
	return r.Status != models.SyncStatusFailed
}

// SyncService reconciles the catalog against the spreadsheet feed and the
// marketplace stock API. Previews never write; applies run in chunked
// transactions so a crash mid-run leaves only whole chunks committed.
type SyncService struct {
	catalogFeed CatalogFeed
	marketplace MarketplaceStock
	products    ProductStore
	syncLogs    SyncLogStore
	tx          TxRunner
	chunkSize   int
	guard       time.Duration
}

// NewSyncService constructs a SyncService.
func NewSyncService(
	catalogFeed CatalogFeed,
	marketplace MarketplaceStock,
	products ProductStore,
	syncLogs SyncLogStore,
	tx TxRunner,
	chunkSize int,
	guard time.Duration,
) *SyncService {
	if chunkSize <= 0 {
		chunkSize = 200
	}
	return &SyncService{
		catalogFeed: catalogFeed,
		marketplace: marketplace,
		products:    products,
		syncLogs:    syncLogs,
		tx:          tx,
		chunkSize:   chunkSize,
		guard:       guard,
	}
}

// PreviewCatalog computes the catalog diff without writing anything. Safe to
// call repeatedly and concurrently.
func (s *SyncService) PreviewCatalog(ctx context.Context) (*SyncResult, error) {
	result := newResult(models.SyncKindCatalog, true)

	grouped, diff, err := s.loadCatalogDiff(ctx, result)
	if err != nil {
		return nil, err
	}

	result.Stats.Created = len(diff.ToCreate)
	result.Stats.Updated = len(diff.ToUpdate)
	result.Stats.Skipped = len(grouped.Rows) - len(diff.ToCreate) - len(diff.ToUpdate)
	result.Stats.Errors = len(result.Errors)
	result.Stale = diff.Stale
	for _, row := range diff.ToCreate {
		result.SampleCreate = appendSample(result.SampleCreate, row.SKU)
	}
	for _, item := range diff.ToUpdate {
		result.SampleUpdate = appendSample(result.SampleUpdate, item.Row.SKU)
	}
	result.finish()
	return result, nil
}

// ApplyCatalog runs the catalog reconciliation with writes. Exactly one
// SyncLog row is recorded, whatever the outcome.
func (s *SyncService) ApplyCatalog(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	if err := s.checkGuard(ctx, models.SyncKindCatalog, opts.Force); err != nil {
		return nil, err
	}

	result := newResult(models.SyncKindCatalog, false)

	grouped, diff, err := s.loadCatalogDiff(ctx, result)
	if err != nil {
		s.recordFailure(ctx, result, err)
		return result, err
	}

	// Creates and updates are applied in feed order, in chunks, each chunk
	// under its own transaction. A failed row is recorded and never aborts
	// the remaining rows.
	work := make([]*feed.Row, 0, len(diff.ToCreate)+len(diff.ToUpdate))
	work = append(work, diff.ToCreate...)
	for _, item := range diff.ToUpdate {
		work = append(work, item.Row)
	}
	creating := make(map[string]bool, len(diff.ToCreate))
	for _, row := range diff.ToCreate {
		creating[row.SKU] = true
	}

	s.applyChunked(ctx, len(work),
		func(tx *sqlx.Tx, i int) error {
			return s.products.UpsertTx(tx, ProductFromRow(work[i]))
		},
		func(i int, err error) {
			result.recordError(models.SyncError{Row: work[i].Index, SKU: work[i].SKU, Reason: err.Error()})
		},
		func(i int) {
			if creating[work[i].SKU] {
				result.Stats.Created++
			} else {
				result.Stats.Updated++
			}
		},
	)

	if opts.CleanOldData {
		s.deleteStale(ctx, diff.Stale, result)
	} else {
		result.Stale = diff.Stale
	}

	result.Stats.Skipped = len(grouped.Rows) - result.Stats.Created - result.Stats.Updated
	s.completeApply(ctx, result)
	return result, nil
}

// PreviewMarketplace computes the MSKU match without writing anything.
func (s *SyncService) PreviewMarketplace(ctx context.Context) (*SyncResult, error) {
	result := newResult(models.SyncKindMarketplace, true)

	match, err := s.loadMarketplaceMatch(ctx)
	if err != nil {
		return nil, err
	}

	result.Stats.Updated = len(match.Matched)
	result.Stats.Skipped = len(match.Unmatched)
	result.MarketplaceOnly = match.MarketplaceOnly
	recordMatchDiagnostics(result, match)
	for _, m := range match.Matched {
		result.SampleUpdate = appendSample(result.SampleUpdate, m.SKU)
	}
	result.finish()
	return result, nil
}

// ApplyMarketplace sets matched catalog SKUs to the marketplace stock value.
// The set is absolute, never a delta. Unmatched SKUs keep their current
// stock; marketplace-only MSKUs are reported, never created.
func (s *SyncService) ApplyMarketplace(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	if err := s.checkGuard(ctx, models.SyncKindMarketplace, opts.Force); err != nil {
		return nil, err
	}

	result := newResult(models.SyncKindMarketplace, false)

	match, err := s.loadMarketplaceMatch(ctx)
	if err != nil {
		s.recordFailure(ctx, result, err)
		return result, err
	}

	s.applyChunked(ctx, len(match.Matched),
		func(tx *sqlx.Tx, i int) error {
			return s.products.SetStockTx(tx, match.Matched[i].SKU, match.Matched[i].Stock)
		},
		func(i int, err error) {
			result.recordError(models.SyncError{SKU: match.Matched[i].SKU, Reason: err.Error()})
		},
		func(i int) {
			result.Stats.Updated++
		},
	)

	result.Stats.Skipped = len(match.Unmatched)
	result.MarketplaceOnly = match.MarketplaceOnly
	recordMatchDiagnostics(result, match)
	s.completeApply(ctx, result)
	return result, nil
}

// Status returns the most recent sync log rows, newest first.
func (s *SyncService) Status(ctx context.Context, limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.syncLogs.GetRecent(ctx, limit)
}

// loadCatalogDiff fetches the feed, groups it, and diffs it against the
// stored catalog. Feed-level parse errors are folded into the result.
func (s *SyncService) loadCatalogDiff(ctx context.Context, result *SyncResult) (*GroupResult, *Diff, error) {
	rows, rowErrs, err := s.catalogFeed.FetchRows(ctx)
	if err != nil {
		return nil, nil, err
	}
	result.Errors = append(result.Errors, rowErrs...)

	grouped := GroupRows(rows)
	result.Errors = append(result.Errors, grouped.Errors...)
	result.Stats.Errors = len(result.Errors)

	existing, err := s.products.GetAllBySKU(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}

	return grouped, ComputeDiff(grouped, existing), nil
}

// loadMarketplaceMatch fetches marketplace stock and matches it against the
// catalog. A marketplace fetch failure is a failed run with zero writes.
func (s *SyncService) loadMarketplaceMatch(ctx context.Context) (*MatchResult, error) {
	records, err := s.marketplace.ListAllStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrFeedUnreachable, err)
	}

	catalog, err := s.products.GetAllBySKU(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	return MatchMSKUs(BuildMSKUMap(records), catalog), nil
}

// deleteStale removes SKUs that disappeared from the feed. Only reached with
// the clean-old-data flag.
func (s *SyncService) deleteStale(ctx context.Context, stale []string, result *SyncResult) {
	s.applyChunked(ctx, len(stale),
		func(tx *sqlx.Tx, i int) error {
			return s.products.DeleteBySKUTx(tx, stale[i])
		},
		func(i int, err error) {
			result.recordError(models.SyncError{SKU: stale[i], Reason: err.Error()})
		},
		func(i int) {
			result.Stats.Deleted++
		},
	)
}

// applyChunked writes n items in chunks, each chunk under one transaction.
// Postgres aborts the whole transaction on the first statement error, so a
// chunk whose transaction failed is retried row by row in individual
// transactions: the bad rows are recorded once and their neighbors still
// commit. onApplied runs only after the transaction holding the item
// committed, so counters never include rolled-back writes.
func (s *SyncService) applyChunked(ctx context.Context, n int, write func(tx *sqlx.Tx, i int) error, onError func(i int, err error), onApplied func(i int)) {
	for start := 0; start < n; start += s.chunkSize {
		end := start + s.chunkSize
		if end > n {
			end = n
		}

		err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
			for i := start; i < end; i++ {
				if err := write(tx, i); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			for i := start; i < end; i++ {
				onApplied(i)
			}
			continue
		}

		for i := start; i < end; i++ {
			rowErr := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
				return write(tx, i)
			})
			if rowErr != nil {
				onError(i, rowErr)
				continue
			}
			onApplied(i)
		}
	}
}

// checkGuard rejects an apply that follows a completed run of the same kind
// too closely, unless forced.
func (s *SyncService) checkGuard(ctx context.Context, kind models.SyncKind, force bool) error {
	if force || s.guard <= 0 {
		return nil
	}
	last, err := s.syncLogs.LastCompleted(ctx, kind)
	if err != nil {
		return fmt.Errorf("check sync guard: %w", err)
	}
	if last != nil && time.Since(last.StartedAt) < s.guard {
		return fmt.Errorf("%w: last %s sync started %s ago", utils.ErrRecentlySynced, kind, time.Since(last.StartedAt).Round(time.Second))
	}
	return nil
}

// completeApply finalizes an apply result and writes its SyncLog row.
func (s *SyncService) completeApply(ctx context.Context, result *SyncResult) {
	result.finish()
	if result.Stats.Errors > 0 {
		result.Status = models.SyncStatusPartial
	} else {
		result.Status = models.SyncStatusSuccess
	}
	s.writeLog(ctx, result)
}

// recordFailure finalizes a run that could not start (e.g. feed unreachable)
// and still writes its SyncLog row. Zero product writes have happened.
func (s *SyncService) recordFailure(ctx context.Context, result *SyncResult, cause error) {
	result.finish()
	result.Status = models.SyncStatusFailed
	result.recordError(models.SyncError{Reason: cause.Error()})
	s.writeLog(ctx, result)
}

func (s *SyncService) writeLog(ctx context.Context, result *SyncResult) {
	entry := &models.SyncLog{
		SyncID:          result.SyncID,
		Kind:            result.Kind,
		Status:          result.Status,
		StartedAt:       result.startedAt,
		DurationSeconds: result.Duration.Seconds(),
		CreatedCount:    result.Stats.Created,
		UpdatedCount:    result.Stats.Updated,
		DeletedCount:    result.Stats.Deleted,
		SkippedCount:    result.Stats.Skipped,
		ErrorCount:      result.Stats.Errors,
		ErrorList:       result.Errors,
	}
	if err := s.syncLogs.Create(ctx, entry); err != nil {
		log.Error().Err(err).Str("sync_id", result.SyncID).Msg("failed to write sync log")
	}
}

// recordMatchDiagnostics surfaces near-miss suggestions for marketplace-only
// MSKUs. Diagnostics never count as run errors and never block a sync.
func recordMatchDiagnostics(result *SyncResult, match *MatchResult) {
	for _, msku := range match.MarketplaceOnly {
		similar, ok := match.Suggestions[msku]
		if !ok {
			continue
		}
		result.Diagnostics = append(result.Diagnostics, models.SyncError{
			SKU:    msku,
			Reason: fmt.Sprintf("%s: resembles %s", utils.ErrAmbiguousMatch, strings.Join(similar, ", ")),
		})
	}
}

// appendSample collects SKUs for a preview sample, capped at sampleLimit.
func appendSample(samples []string, sku string) []string {
	if len(samples) >= sampleLimit {
		return samples
	}
	return append(samples, sku)
}

func newResult(kind models.SyncKind, preview bool) *SyncResult {
	return &SyncResult{
		SyncID:    uuid.New().String(),
		Kind:      kind,
		Preview:   preview,
		Status:    models.SyncStatusSuccess,
		startedAt: time.Now(),
	}
}

func (r *SyncResult) recordError(e models.SyncError) {
	r.Errors = append(r.Errors, e)
	r.Stats.Errors = len(r.Errors)
}

func (r *SyncResult) finish() {
	r.Duration = time.Since(r.startedAt)
	r.Stats.Errors = len(r.Errors)
}

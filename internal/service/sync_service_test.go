package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sepatuku/inventory_api/internal/feed"
	"github.com/sepatuku/inventory_api/internal/models"
	"github.com/sepatuku/inventory_api/internal/utils"
	"github.com/sepatuku/inventory_api/pkg/ginee"
)

type fakeFeed struct {
	rows    []feed.Row
	rowErrs []models.SyncError
	err     error
}

func (f *fakeFeed) FetchRows(_ context.Context) ([]feed.Row, []models.SyncError, error) {
	return f.rows, f.rowErrs, f.err
}

type fakeMarketplace struct {
	records []ginee.StockRecord
	err     error
}

func (f *fakeMarketplace) ListAllStock(_ context.Context) ([]ginee.StockRecord, error) {
	return f.records, f.err
}

type fakeProductStore struct {
	mu       sync.Mutex
	products map[string]models.Product
	failSKUs map[string]error
	writes   int
}

func newFakeProductStore(products ...models.Product) *fakeProductStore {
	s := &fakeProductStore{
		products: make(map[string]models.Product),
		failSKUs: make(map[string]error),
	}
	for _, p := range products {
		s.products[p.SKU] = p
	}
	return s
}

func (s *fakeProductStore) GetAllBySKU(_ context.Context) (map[string]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.Product, len(s.products))
	for sku, p := range s.products {
		out[sku] = p
	}
	return out, nil
}

func (s *fakeProductStore) UpsertTx(_ *sqlx.Tx, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failSKUs[product.SKU]; ok {
		return err
	}
	s.products[product.SKU] = *product
	s.writes++
	return nil
}

func (s *fakeProductStore) SetStockTx(_ *sqlx.Tx, sku string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failSKUs[sku]; ok {
		return err
	}
	p, ok := s.products[sku]
	if !ok {
		return utils.ErrProductNotFound
	}
	p.StockQuantity = quantity
	s.products[sku] = p
	s.writes++
	return nil
}

func (s *fakeProductStore) DeleteBySKUTx(_ *sqlx.Tx, sku string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, sku)
	s.writes++
	return nil
}

type fakeSyncLogStore struct {
	entries []models.SyncLog
	last    *models.SyncLog
}

func (s *fakeSyncLogStore) Create(_ context.Context, entry *models.SyncLog) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *fakeSyncLogStore) GetRecent(_ context.Context, limit int) ([]models.SyncLog, error) {
	if len(s.entries) > limit {
		return s.entries[len(s.entries)-limit:], nil
	}
	return s.entries, nil
}

func (s *fakeSyncLogStore) LastCompleted(_ context.Context, _ models.SyncKind) (*models.SyncLog, error) {
	return s.last, nil
}

// fakeTxRunner runs the function directly; the fake stores ignore the tx.
type fakeTxRunner struct{}

func (fakeTxRunner) WithinTx(_ context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

// rollbackTxRunner discards writes made by a failed transaction function,
// the way the database discards a rolled-back transaction.
type rollbackTxRunner struct {
	store *fakeProductStore
}

func (r rollbackTxRunner) WithinTx(_ context.Context, fn func(tx *sqlx.Tx) error) error {
	r.store.mu.Lock()
	snapshot := make(map[string]models.Product, len(r.store.products))
	for sku, p := range r.store.products {
		snapshot[sku] = p
	}
	writes := r.store.writes
	r.store.mu.Unlock()

	if err := fn(nil); err != nil {
		r.store.mu.Lock()
		r.store.products = snapshot
		r.store.writes = writes
		r.store.mu.Unlock()
		return err
	}
	return nil
}

func newTestSyncService(catalogFeed CatalogFeed, marketplace MarketplaceStock, products *fakeProductStore, logs *fakeSyncLogStore) *SyncService {
	return NewSyncService(catalogFeed, marketplace, products, logs, fakeTxRunner{}, 10, 0)
}

func TestApplyCatalogCreatesAndUpdates(t *testing.T) {
	existing := *ProductFromRow(&feed.Row{SKU: "A-40", Name: "Shoe", StockQuantity: 2})
	store := newFakeProductStore(existing)
	logs := &fakeSyncLogStore{}

	catalogFeed := &fakeFeed{rows: []feed.Row{
		feedRow(1, "A-40", 7), // stock changed
		feedRow(2, "A-41", 3), // new
	}}
	svc := newTestSyncService(catalogFeed, nil, store, logs)

	result, err := svc.ApplyCatalog(context.Background(), SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusSuccess, result.Status)
	assert.Equal(t, 1, result.Stats.Created)
	assert.Equal(t, 1, result.Stats.Updated)
	assert.Equal(t, 0, result.Stats.Errors)
	assert.Equal(t, 7, store.products["A-40"].StockQuantity)
	assert.Equal(t, 3, store.products["A-41"].StockQuantity)
	require.Len(t, logs.entries, 1, "exactly one sync log per apply")
	assert.Equal(t, models.SyncKindCatalog, logs.entries[0].Kind)
}

func TestApplyCatalogIsIdempotent(t *testing.T) {
	store := newFakeProductStore()
	logs := &fakeSyncLogStore{}
	catalogFeed := &fakeFeed{rows: []feed.Row{
		feedRow(1, "A-40", 5),
		feedRow(2, "A-41", 3),
	}}
	svc := newTestSyncService(catalogFeed, nil, store, logs)

	first, err := svc.ApplyCatalog(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Stats.Created)

	second, err := svc.ApplyCatalog(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Stats.Created)
	assert.Equal(t, 0, second.Stats.Updated)
	assert.Equal(t, 2, second.Stats.Skipped)
	assert.Equal(t, models.SyncStatusSuccess, second.Status)
}

func TestApplyCatalogPartialFailureIsolation(t *testing.T) {
	store := newFakeProductStore()
	logs := &fakeSyncLogStore{}

	rows := make([]feed.Row, 0, 100)
	for i := 1; i <= 100; i++ {
		sku := fmt.Sprintf("SKU-%03d", i)
		if i == 37 {
			sku = "" // malformed row
		}
		rows = append(rows, feedRow(i, sku, i))
	}
	svc := newTestSyncService(&fakeFeed{rows: rows}, nil, store, logs)

	result, err := svc.ApplyCatalog(context.Background(), SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusPartial, result.Status)
	assert.Equal(t, 99, result.Stats.Created)
	assert.Equal(t, 1, result.Stats.Errors)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 37, result.Errors[0].Row)
	assert.Len(t, store.products, 99, "valid rows are written despite the bad one")
	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.SyncStatusPartial, logs.entries[0].Status)
}

func TestApplyCatalogRowWriteFailureDoesNotAbortRun(t *testing.T) {
	store := newFakeProductStore()
	store.failSKUs["A-41"] = errors.New("constraint violation")
	logs := &fakeSyncLogStore{}
	catalogFeed := &fakeFeed{rows: []feed.Row{
		feedRow(1, "A-40", 5),
		feedRow(2, "A-41", 3),
		feedRow(3, "A-42", 1),
	}}
	svc := newTestSyncService(catalogFeed, nil, store, logs)

	result, err := svc.ApplyCatalog(context.Background(), SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusPartial, result.Status)
	assert.Equal(t, 2, result.Stats.Created)
	assert.Equal(t, 1, result.Stats.Errors)
	assert.Contains(t, store.products, "A-40")
	assert.Contains(t, store.products, "A-42")
	assert.NotContains(t, store.products, "A-41")
}

func TestApplyCatalogCountsOnlyCommittedRows(t *testing.T) {
	store := newFakeProductStore()
	store.failSKUs["A-41"] = errors.New("value too long for type character varying(100)")
	logs := &fakeSyncLogStore{}
	catalogFeed := &fakeFeed{rows: []feed.Row{
		feedRow(1, "A-40", 5),
		feedRow(2, "A-41", 3),
		feedRow(3, "A-42", 1),
	}}
	svc := NewSyncService(catalogFeed, nil, store, logs, rollbackTxRunner{store: store}, 10, 0)

	result, err := svc.ApplyCatalog(context.Background(), SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusPartial, result.Status)
	assert.Len(t, store.products, 2, "good rows in the failed chunk still commit")
	assert.Equal(t, len(store.products), result.Stats.Created, "counters must match committed rows")
	require.Len(t, result.Errors, 1, "the bad row is recorded once, not once per chunk neighbor")
	assert.Equal(t, "A-41", result.Errors[0].SKU)
	assert.NotContains(t, store.products, "A-41")
	require.Len(t, logs.entries, 1)
	assert.Equal(t, 2, logs.entries[0].CreatedCount)
}

func TestApplyMarketplaceFailedChunkRetriesRowByRow(t *testing.T) {
	a := *ProductFromRow(&feed.Row{SKU: "A-40", StockQuantity: 9})
	b := *ProductFromRow(&feed.Row{SKU: "A-41", StockQuantity: 6})
	store := newFakeProductStore(a, b)
	store.failSKUs["A-40"] = errors.New("deadlock detected")
	logs := &fakeSyncLogStore{}
	marketplace := &fakeMarketplace{records: []ginee.StockRecord{
		{MSKU: "A-40", AvailableStock: 1},
		{MSKU: "A-41", AvailableStock: 2},
	}}
	svc := NewSyncService(nil, marketplace, store, logs, rollbackTxRunner{store: store}, 10, 0)

	result, err := svc.ApplyMarketplace(context.Background(), SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusPartial, result.Status)
	assert.Equal(t, 1, result.Stats.Updated)
	assert.Equal(t, 9, store.products["A-40"].StockQuantity, "failed set leaves stock unchanged")
	assert.Equal(t, 2, store.products["A-41"].StockQuantity)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "A-40", result.Errors[0].SKU)
}

func TestApplyCatalogFeedUnreachable(t *testing.T) {
	store := newFakeProductStore()
	logs := &fakeSyncLogStore{}
	catalogFeed := &fakeFeed{err: fmt.Errorf("%w: status 503", utils.ErrFeedUnreachable)}
	svc := newTestSyncService(catalogFeed, nil, store, logs)

	result, err := svc.ApplyCatalog(context.Background(), SyncOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFeedUnreachable)

	assert.Equal(t, models.SyncStatusFailed, result.Status)
	assert.False(t, result.Success())
	assert.Equal(t, 0, store.writes, "a failed run writes nothing")
	require.Len(t, logs.entries, 1, "failed runs are still logged")
	assert.Equal(t, models.SyncStatusFailed, logs.entries[0].Status)
}

func TestApplyCatalogStaleHandling(t *testing.T) {
	gone := *ProductFromRow(&feed.Row{SKU: "GONE-40", StockQuantity: 4})
	catalogFeed := &fakeFeed{rows: []feed.Row{feedRow(1, "A-40", 5)}}

	t.Run("reported but kept by default", func(t *testing.T) {
		store := newFakeProductStore(gone)
		svc := newTestSyncService(catalogFeed, nil, store, &fakeSyncLogStore{})

		result, err := svc.ApplyCatalog(context.Background(), SyncOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"GONE-40"}, result.Stale)
		assert.Equal(t, 0, result.Stats.Deleted)
		assert.Contains(t, store.products, "GONE-40")
	})

	t.Run("deleted with clean flag", func(t *testing.T) {
		store := newFakeProductStore(gone)
		svc := newTestSyncService(catalogFeed, nil, store, &fakeSyncLogStore{})

		result, err := svc.ApplyCatalog(context.Background(), SyncOptions{CleanOldData: true})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Stats.Deleted)
		assert.NotContains(t, store.products, "GONE-40")
	})
}

func TestApplyCatalogGuard(t *testing.T) {
	store := newFakeProductStore()
	logs := &fakeSyncLogStore{last: &models.SyncLog{
		Kind:      models.SyncKindCatalog,
		Status:    models.SyncStatusSuccess,
		StartedAt: time.Now().Add(-time.Minute),
	}}
	catalogFeed := &fakeFeed{rows: []feed.Row{feedRow(1, "A-40", 5)}}
	svc := NewSyncService(catalogFeed, nil, store, logs, fakeTxRunner{}, 10, 5*time.Minute)

	_, err := svc.ApplyCatalog(context.Background(), SyncOptions{})
	assert.ErrorIs(t, err, utils.ErrRecentlySynced)
	assert.Equal(t, 0, store.writes)
	assert.Empty(t, logs.entries, "a guarded run is not a run")

	result, err := svc.ApplyCatalog(context.Background(), SyncOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.Created)
}

func TestPreviewCatalogMakesNoWrites(t *testing.T) {
	existing := *ProductFromRow(&feed.Row{SKU: "A-40", StockQuantity: 1})
	store := newFakeProductStore(existing)
	logs := &fakeSyncLogStore{}
	catalogFeed := &fakeFeed{rows: []feed.Row{
		feedRow(1, "A-40", 7),
		feedRow(2, "A-41", 3),
	}}
	svc := newTestSyncService(catalogFeed, nil, store, logs)

	result, err := svc.PreviewCatalog(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Preview)
	assert.Equal(t, 1, result.Stats.Created)
	assert.Equal(t, 1, result.Stats.Updated)
	assert.Equal(t, []string{"A-41"}, result.SampleCreate)
	assert.Equal(t, 0, store.writes)
	assert.Empty(t, logs.entries, "previews are not logged")
	assert.Equal(t, 1, store.products["A-40"].StockQuantity)
}

func TestApplyMarketplaceSetsAbsoluteStock(t *testing.T) {
	matched := *ProductFromRow(&feed.Row{SKU: "A-40", StockQuantity: 9})
	unmatched := *ProductFromRow(&feed.Row{SKU: "A-41", StockQuantity: 6})
	store := newFakeProductStore(matched, unmatched)
	logs := &fakeSyncLogStore{}

	marketplace := &fakeMarketplace{records: []ginee.StockRecord{
		{MSKU: "A-40", AvailableStock: 2},
		{MSKU: "BOX", AvailableStock: 50},
	}}
	svc := newTestSyncService(nil, marketplace, store, logs)

	result, err := svc.ApplyMarketplace(context.Background(), SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusSuccess, result.Status)
	assert.Equal(t, 1, result.Stats.Updated)
	assert.Equal(t, 1, result.Stats.Skipped)
	assert.Equal(t, 2, store.products["A-40"].StockQuantity, "marketplace value replaces local stock")
	assert.Equal(t, 6, store.products["A-41"].StockQuantity, "unmatched SKUs keep their stock")
	assert.Equal(t, []string{"BOX"}, result.MarketplaceOnly)
	assert.NotContains(t, store.products, "BOX", "marketplace-only MSKUs are never created")
	require.Len(t, logs.entries, 1)
}

func TestPreviewMarketplaceSuggestsNearMisses(t *testing.T) {
	store := newFakeProductStore(*ProductFromRow(&feed.Row{SKU: "AJ1-405", StockQuantity: 3}))
	logs := &fakeSyncLogStore{}
	marketplace := &fakeMarketplace{records: []ginee.StockRecord{
		{MSKU: "aj1-405-old", AvailableStock: 7},
		{MSKU: "BOX", AvailableStock: 50},
	}}
	svc := newTestSyncService(nil, marketplace, store, logs)

	result, err := svc.PreviewMarketplace(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Diagnostics, 1)
	d := result.Diagnostics[0]
	assert.Equal(t, "aj1-405-old", d.SKU)
	assert.Contains(t, d.Reason, utils.ErrAmbiguousMatch.Error())
	assert.Contains(t, d.Reason, "AJ1-405")

	assert.Equal(t, 0, result.Stats.Errors, "diagnostics never count as run errors")
	assert.Equal(t, models.SyncStatusSuccess, result.Status)
}

func TestApplyMarketplaceFetchFailure(t *testing.T) {
	store := newFakeProductStore(*ProductFromRow(&feed.Row{SKU: "A-40", StockQuantity: 9}))
	logs := &fakeSyncLogStore{}
	marketplace := &fakeMarketplace{err: errors.New("connection refused")}
	svc := newTestSyncService(nil, marketplace, store, logs)

	result, err := svc.ApplyMarketplace(context.Background(), SyncOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFeedUnreachable)
	assert.Equal(t, models.SyncStatusFailed, result.Status)
	assert.Equal(t, 0, store.writes)
	assert.Equal(t, 9, store.products["A-40"].StockQuantity)
	require.Len(t, logs.entries, 1)
}

func TestStatusReturnsRecentRuns(t *testing.T) {
	store := newFakeProductStore()
	logs := &fakeSyncLogStore{}
	svc := newTestSyncService(&fakeFeed{rows: []feed.Row{feedRow(1, "A-40", 5)}}, nil, store, logs)

	_, err := svc.ApplyCatalog(context.Background(), SyncOptions{})
	require.NoError(t, err)

	recent, err := svc.Status(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, models.SyncKindCatalog, recent[0].Kind)
}

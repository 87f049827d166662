package utils

import (
	"errors"
	"fmt"
)

// Common application errors used across services.
var (
	ErrFeedUnreachable   = errors.New("FEED_UNREACHABLE")
	ErrRowParse          = errors.New("ROW_PARSE_ERROR")
	ErrInsufficientStock = errors.New("INSUFFICIENT_STOCK")
	ErrAmbiguousMatch    = errors.New("AMBIGUOUS_MATCH")
	ErrLockTimeout       = errors.New("LOCK_TIMEOUT")
	ErrProductNotFound   = errors.New("PRODUCT_NOT_FOUND")
	ErrProductInactive   = errors.New("PRODUCT_INACTIVE")
	ErrSyncInProgress    = errors.New("SYNC_IN_PROGRESS")
	ErrRecentlySynced    = errors.New("RECENTLY_SYNCED")
)

// InsufficientStockError reports a rejected reservation with the offending SKU
// and the maximum quantity that could still be satisfied.
type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

// Error implements the error interface.
func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.SKU, e.Requested, e.Available)
}

// Unwrap lets callers match with errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

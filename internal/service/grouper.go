package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sepatuku/inventory_api/internal/feed"
	"github.com/sepatuku/inventory_api/internal/models"
)

// GroupResult is the outcome of collapsing the raw feed into one canonical
// row per SKU. Order preserves the feed order of first appearance so apply
// runs process rows deterministically.
type GroupResult struct {
	Rows   map[string]*feed.Row
	Order  []string
	Errors []models.SyncError
}

// GroupRows builds the sku → aggregated row mapping. Rows without a SKU are
// skipped and recorded with their row index; they never fail the run. For
// duplicate SKUs stock quantities are summed and the last non-empty value
// wins for every scalar field.
func GroupRows(rows []feed.Row) *GroupResult {
	result := &GroupResult{
		Rows: make(map[string]*feed.Row, len(rows)),
	}

	for i := range rows {
		row := rows[i]
		if row.SKU == "" {
			result.Errors = append(result.Errors, models.SyncError{
				Row:    row.Index,
				Reason: "missing sku",
			})
			continue
		}

		existing, ok := result.Rows[row.SKU]
		if !ok {
			copied := row
			result.Rows[row.SKU] = &copied
			result.Order = append(result.Order, row.SKU)
			continue
		}
		mergeRow(existing, &row)
	}

	return result
}

// mergeRow folds a duplicate occurrence of a SKU into the aggregate.
func mergeRow(dst, src *feed.Row) {
	dst.StockQuantity += src.StockQuantity

	if src.ProductType != "" {
		dst.ProductType = src.ProductType
	}
	if src.Brand != "" {
		dst.Brand = src.Brand
	}
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
	if src.SKUParent != "" {
		dst.SKUParent = src.SKUParent
	}
	if src.AvailableSizes != "" {
		dst.AvailableSizes = src.AvailableSizes
	}
	if !src.Price.IsZero() {
		dst.Price = src.Price
	}
	if src.SalePrice != nil {
		dst.SalePrice = src.SalePrice
	}
	if len(src.Images) > 0 {
		dst.Images = src.Images
	}
	if src.Weight != 0 {
		dst.Weight = src.Weight
	}
	if src.Length != 0 {
		dst.Length = src.Length
	}
	if src.Width != 0 {
		dst.Width = src.Width
	}
	if src.Height != 0 {
		dst.Height = src.Height
	}
	if src.SaleStartDate != "" {
		dst.SaleStartDate = src.SaleStartDate
	}
	if src.SaleEndDate != "" {
		dst.SaleEndDate = src.SaleEndDate
	}
	dst.SaleShow = dst.SaleShow || src.SaleShow
}

// DiffItem pairs an aggregated feed row with the stored product it updates.
type DiffItem struct {
	Row      *feed.Row
	Existing *models.Product
}

// Diff holds the three reconciliation sets relative to the current catalog.
// Stale SKUs are deleted only when the orchestrator runs with the
// clean-old-data flag; otherwise they are reported and left untouched.
type Diff struct {
	ToCreate []*feed.Row
	ToUpdate []DiffItem
	Stale    []string
}

// ComputeDiff partitions grouped rows against the stored catalog. Rows whose
// derived fields already match the stored product are skipped, which is what
// makes a repeated apply against an unchanged feed a no-op.
func ComputeDiff(grouped *GroupResult, existing map[string]models.Product) *Diff {
	diff := &Diff{}

	for _, sku := range grouped.Order {
		row := grouped.Rows[sku]
		stored, ok := existing[sku]
		if !ok {
			diff.ToCreate = append(diff.ToCreate, row)
			continue
		}
		if rowDiffers(row, &stored) {
			storedCopy := stored
			diff.ToUpdate = append(diff.ToUpdate, DiffItem{Row: row, Existing: &storedCopy})
		}
	}

	for sku := range existing {
		if _, ok := grouped.Rows[sku]; !ok {
			diff.Stale = append(diff.Stale, sku)
		}
	}
	sort.Strings(diff.Stale)

	return diff
}

// ProductFromRow derives the canonical product record for an aggregated row.
func ProductFromRow(row *feed.Row) *models.Product {
	images := models.StringList{}
	if len(row.Images) > 0 {
		images = append(images, row.Images...)
	}
	return &models.Product{
		SKU:           row.SKU,
		SKUParent:     row.SKUParent,
		Name:          row.Name,
		Brand:         row.Brand,
		Size:          InferSize(row.SKU),
		Price:         row.Price,
		SalePrice:     row.SalePrice,
		StockQuantity: row.StockQuantity,
		IsActive:      true,
		Images:        images,
		Weight:        row.Weight,
		Length:        row.Length,
		Width:         row.Width,
		Height:        row.Height,
	}
}

// rowDiffers reports whether applying row would change the stored product.
func rowDiffers(row *feed.Row, stored *models.Product) bool {
	derived := ProductFromRow(row)
	if derived.Name != stored.Name ||
		derived.Brand != stored.Brand ||
		derived.SKUParent != stored.SKUParent ||
		derived.Size != stored.Size ||
		derived.StockQuantity != stored.StockQuantity ||
		derived.Weight != stored.Weight ||
		derived.Length != stored.Length ||
		derived.Width != stored.Width ||
		derived.Height != stored.Height ||
		!derived.Price.Equal(stored.Price) {
		return true
	}
	if (derived.SalePrice == nil) != (stored.SalePrice == nil) {
		return true
	}
	if derived.SalePrice != nil && !derived.SalePrice.Equal(*stored.SalePrice) {
		return true
	}
	if len(derived.Images) != len(stored.Images) {
		return true
	}
	for i := range derived.Images {
		if derived.Images[i] != stored.Images[i] {
			return true
		}
	}
	return false
}

// InferSize derives a display size from a numeric suffix on the SKU when the
// feed carries no explicit size column. The merchandising convention encodes
// half sizes as size x 10, so "AJ1-405" means 40.5 and "DUNK-420" means 42.
// This is best effort only and never authoritative.
func InferSize(sku string) string {
	digits := trailingDigits(sku)
	if digits == "" {
		return ""
	}
	if len(digits) == 3 {
		whole := strings.TrimLeft(digits[:2], "0")
		if whole == "" {
			return ""
		}
		if digits[2] == '0' {
			return whole
		}
		return fmt.Sprintf("%s.%c", whole, digits[2])
	}
	return strings.TrimLeft(digits, "0")
}

// trailingDigits returns the run of digits at the end of s.
func trailingDigits(s string) string {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	return s[i:]
}

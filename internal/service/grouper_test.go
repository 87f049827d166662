package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sepatuku/inventory_api/internal/feed"
	"github.com/sepatuku/inventory_api/internal/models"
)

func feedRow(index int, sku string, stock int) feed.Row {
	return feed.Row{
		Index:         index,
		SKU:           sku,
		SKUParent:     "AJ1",
		Name:          "Air Jordan 1",
		Brand:         "Nike",
		Price:         decimal.NewFromInt(1500000),
		StockQuantity: stock,
	}
}

func TestGroupRowsSumsDuplicateStock(t *testing.T) {
	rows := []feed.Row{
		feedRow(1, "A-40", 5),
		feedRow(2, "A-40", 3),
	}

	result := GroupRows(rows)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, 8, result.Rows["A-40"].StockQuantity)
	assert.Empty(t, result.Errors)
}

func TestGroupRowsSkipsMissingSKU(t *testing.T) {
	rows := []feed.Row{
		feedRow(1, "A-40", 5),
		feedRow(2, "", 3),
		feedRow(3, "A-41", 2),
	}

	result := GroupRows(rows)

	require.Len(t, result.Rows, 2)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, "missing sku", result.Errors[0].Reason)
}

func TestGroupRowsLastNonEmptyWins(t *testing.T) {
	first := feedRow(1, "A-40", 5)
	first.Name = "Old Name"
	first.Images = []string{"img1.jpg"}

	second := feedRow(2, "A-40", 3)
	second.Name = "New Name"
	second.Images = nil
	second.Price = decimal.Zero

	third := feedRow(3, "A-40", 0)
	third.Name = ""
	third.Images = []string{"img2.jpg", "img3.jpg"}

	result := GroupRows([]feed.Row{first, second, third})

	row := result.Rows["A-40"]
	require.NotNil(t, row)
	assert.Equal(t, "New Name", row.Name, "empty name must not overwrite")
	assert.True(t, row.Price.Equal(decimal.NewFromInt(1500000)), "zero price must not overwrite")
	assert.Equal(t, []string{"img2.jpg", "img3.jpg"}, row.Images)
	assert.Equal(t, 8, row.StockQuantity)
}

func TestGroupRowsPreservesFeedOrder(t *testing.T) {
	rows := []feed.Row{
		feedRow(1, "C", 1),
		feedRow(2, "A", 1),
		feedRow(3, "C", 1),
		feedRow(4, "B", 1),
	}

	result := GroupRows(rows)

	assert.Equal(t, []string{"C", "A", "B"}, result.Order)
}

func TestComputeDiffPartitionsSets(t *testing.T) {
	grouped := GroupRows([]feed.Row{
		feedRow(1, "A-40", 5), // unchanged
		feedRow(2, "A-41", 9), // stock differs
		feedRow(3, "A-42", 1), // new
	})

	unchanged := *ProductFromRow(grouped.Rows["A-40"])
	changed := *ProductFromRow(grouped.Rows["A-41"])
	changed.StockQuantity = 2

	existing := map[string]models.Product{
		"A-40":    unchanged,
		"A-41":    changed,
		"A-STALE": *ProductFromRow(&feed.Row{SKU: "A-STALE"}),
	}

	diff := ComputeDiff(grouped, existing)

	require.Len(t, diff.ToCreate, 1)
	assert.Equal(t, "A-42", diff.ToCreate[0].SKU)
	require.Len(t, diff.ToUpdate, 1)
	assert.Equal(t, "A-41", diff.ToUpdate[0].Row.SKU)
	assert.Equal(t, []string{"A-STALE"}, diff.Stale)
}

func TestComputeDiffIsEmptyForSyncedCatalog(t *testing.T) {
	grouped := GroupRows([]feed.Row{
		feedRow(1, "A-40", 5),
		feedRow(2, "A-41", 9),
	})

	existing := map[string]models.Product{
		"A-40": *ProductFromRow(grouped.Rows["A-40"]),
		"A-41": *ProductFromRow(grouped.Rows["A-41"]),
	}

	diff := ComputeDiff(grouped, existing)

	assert.Empty(t, diff.ToCreate)
	assert.Empty(t, diff.ToUpdate)
	assert.Empty(t, diff.Stale)
}

func TestProductFromRowDerivesFields(t *testing.T) {
	row := feedRow(1, "AJ1-405", 4)
	row.Images = []string{"a.jpg", "b.jpg"}
	sale := decimal.NewFromInt(1200000)
	row.SalePrice = &sale

	p := ProductFromRow(&row)

	assert.Equal(t, "AJ1-405", p.SKU)
	assert.Equal(t, "40.5", p.Size)
	assert.Equal(t, 4, p.StockQuantity)
	assert.True(t, p.IsActive)
	assert.Equal(t, models.StringList{"a.jpg", "b.jpg"}, p.Images)
	require.NotNil(t, p.SalePrice)
	assert.True(t, p.HasActiveSale())
}

func TestInferSize(t *testing.T) {
	cases := []struct {
		sku  string
		want string
	}{
		{"AJ1-405", "40.5"},
		{"AJ1-HIGH-395", "39.5"},
		{"DUNK-420", "42"},
		{"NB-42", "42"},
		{"NB-9", "9"},
		{"NOSIZE", ""},
		{"", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, InferSize(tc.sku), "sku %q", tc.sku)
	}
}

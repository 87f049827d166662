package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sepatuku/inventory_api/internal/utils"
)

const feedHeader = "product_type,brand,name,description,sku_parent,available_sizes,price,sale_price,stock_quantity,sku,images_1,images_2,images_3,images_4,images_5,weight,lengh,wide,high,sale_show,sale_start_date,sale_end_date"

func TestParseCSVReadsAllColumns(t *testing.T) {
	csvBody := feedHeader + "\n" +
		"shoes,Nike,Air Jordan 1,High top,AJ1,39-44,1500000,1200000,5,AJ1-405,a.jpg,b.jpg,,,,900,33,22,12,yes,2026-08-01,2026-08-31\n"

	rows, rowErrs, err := ParseCSV(strings.NewReader(csvBody))
	require.NoError(t, err)
	require.Empty(t, rowErrs)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, 1, row.Index)
	assert.Equal(t, "Nike", row.Brand)
	assert.Equal(t, "Air Jordan 1", row.Name)
	assert.Equal(t, "AJ1", row.SKUParent)
	assert.Equal(t, "AJ1-405", row.SKU)
	assert.True(t, row.Price.Equal(decimal.NewFromInt(1500000)))
	require.NotNil(t, row.SalePrice)
	assert.True(t, row.SalePrice.Equal(decimal.NewFromInt(1200000)))
	assert.Equal(t, 5, row.StockQuantity)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, row.Images)
	assert.Equal(t, 900, row.Weight)
	assert.Equal(t, 33, row.Length, "length comes from the upstream lengh column")
	assert.Equal(t, 22, row.Width)
	assert.Equal(t, 12, row.Height)
	assert.True(t, row.SaleShow)
	assert.Equal(t, "2026-08-01", row.SaleStartDate)
}

func TestParseCSVRecordsRowErrorsAndContinues(t *testing.T) {
	csvBody := "sku,price,stock_quantity\n" +
		"A-40,1000,5\n" +
		"A-41,notaprice,2\n" +
		"A-42,2000,-3\n" +
		"A-43,3000,1\n"

	rows, rowErrs, err := ParseCSV(strings.NewReader(csvBody))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "A-40", rows[0].SKU)
	assert.Equal(t, "A-43", rows[1].SKU)

	require.Len(t, rowErrs, 2)
	assert.Equal(t, 2, rowErrs[0].Row)
	assert.Equal(t, "A-41", rowErrs[0].SKU)
	assert.Contains(t, rowErrs[0].Reason, utils.ErrRowParse.Error())
	assert.Contains(t, rowErrs[0].Reason, "invalid price")
	assert.Equal(t, 3, rowErrs[1].Row)
	assert.Contains(t, rowErrs[1].Reason, "stock_quantity")
}

func TestParseCSVToleratesShortAndReorderedRecords(t *testing.T) {
	// Columns resolved by name, missing trailing fields read as empty.
	csvBody := "stock_quantity,sku,price\n" +
		"4,A-40\n"

	rows, rowErrs, err := ParseCSV(strings.NewReader(csvBody))
	require.NoError(t, err)
	require.Empty(t, rowErrs)
	require.Len(t, rows, 1)
	assert.Equal(t, "A-40", rows[0].SKU)
	assert.Equal(t, 4, rows[0].StockQuantity)
	assert.True(t, rows[0].Price.IsZero())
	assert.Nil(t, rows[0].SalePrice)
}

func TestParseCSVRequiresSKUColumn(t *testing.T) {
	_, _, err := ParseCSV(strings.NewReader("name,price\nShoe,1000\n"))
	assert.ErrorIs(t, err, utils.ErrFeedUnreachable)
}

func TestFetchRows(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("sku,price,stock_quantity\nA-40,1000,5\n"))
		}))
		defer srv.Close()

		client := NewSheetClient(srv.URL, 5*time.Second)
		rows, rowErrs, err := client.FetchRows(context.Background())
		require.NoError(t, err)
		assert.Empty(t, rowErrs)
		require.Len(t, rows, 1)
		assert.Equal(t, "A-40", rows[0].SKU)
	})

	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := NewSheetClient(srv.URL, 5*time.Second)
		_, _, err := client.FetchRows(context.Background())
		assert.ErrorIs(t, err, utils.ErrFeedUnreachable)
	})

	t.Run("unreachable host", func(t *testing.T) {
		client := NewSheetClient("http://127.0.0.1:1", time.Second)
		_, _, err := client.FetchRows(context.Background())
		assert.ErrorIs(t, err, utils.ErrFeedUnreachable)
	})
}

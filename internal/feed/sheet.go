package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sepatuku/inventory_api/internal/models"
	"github.com/sepatuku/inventory_api/internal/utils"
)

// Row is one parsed line of the spreadsheet export. Rows are ephemeral: they
// exist only for the duration of a sync run.
type Row struct {
	Index          int // 1-based data row index within the feed
	ProductType    string
	Brand          string
	Name           string
	Description    string
	SKUParent      string
	AvailableSizes string
	Price          decimal.Decimal
	SalePrice      *decimal.Decimal
	StockQuantity  int
	SKU            string
	Images         []string // non-empty values of images_1..images_5, in order
	Weight         int
	Length         int
	Width          int
	Height         int
	SaleShow       bool
	SaleStartDate  string
	SaleEndDate    string
}

// imageColumns lists the image column names in display order.
var imageColumns = []string{"images_1", "images_2", "images_3", "images_4", "images_5"}

// SheetClient fetches the merchandising catalog as a CSV export from a fixed
// URL. It is stateless and safe to share.
type SheetClient struct {
	httpClient *http.Client
	url        string
}

// NewSheetClient constructs a SheetClient with a bounded request timeout.
// On timeout the fetch fails closed: the caller treats it as a failed run.
func NewSheetClient(url string, timeout time.Duration) *SheetClient {
	return &SheetClient{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

// FetchRows downloads and parses the feed. A transport failure or non-200
// status wraps ErrFeedUnreachable; per-row parse failures are returned as
// recorded errors without failing the fetch.
func (c *SheetClient) FetchRows(ctx context.Context) ([]Row, []models.SyncError, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", utils.ErrFeedUnreachable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", utils.ErrFeedUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: feed returned status %d", utils.ErrFeedUnreachable, resp.StatusCode)
	}

	return ParseCSV(resp.Body)
}

// ParseCSV reads the tabular export. The first record is the header; column
// positions are resolved by name so upstream column reordering is harmless.
// The upstream header spells length as "lengh" and is read under that literal
// name on purpose.
func ParseCSV(r io.Reader) ([]Row, []models.SyncError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: cannot read feed header: %v", utils.ErrFeedUnreachable, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["sku"]; !ok {
		return nil, nil, fmt.Errorf("%w: feed header has no sku column", utils.ErrFeedUnreachable)
	}

	var (
		rows   []Row
		rowErr []models.SyncError
		index  int
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		index++
		if err != nil {
			rowErr = append(rowErr, models.SyncError{Row: index, Reason: fmt.Sprintf("%s: malformed csv record: %v", utils.ErrRowParse, err)})
			continue
		}

		row, err := parseRecord(record, cols, index)
		if err != nil {
			rowErr = append(rowErr, models.SyncError{Row: index, SKU: field(record, cols, "sku"), Reason: fmt.Sprintf("%s: %v", utils.ErrRowParse, err)})
			continue
		}
		rows = append(rows, row)
	}

	return rows, rowErr, nil
}

// parseRecord converts one CSV record into a Row.
func parseRecord(record []string, cols map[string]int, index int) (Row, error) {
	row := Row{
		Index:          index,
		ProductType:    field(record, cols, "product_type"),
		Brand:          field(record, cols, "brand"),
		Name:           field(record, cols, "name"),
		Description:    field(record, cols, "description"),
		SKUParent:      field(record, cols, "sku_parent"),
		AvailableSizes: field(record, cols, "available_sizes"),
		SKU:            field(record, cols, "sku"),
		SaleStartDate:  field(record, cols, "sale_start_date"),
		SaleEndDate:    field(record, cols, "sale_end_date"),
	}

	var err error
	if row.Price, err = parsePrice(field(record, cols, "price")); err != nil {
		return Row{}, fmt.Errorf("invalid price: %v", err)
	}
	if raw := field(record, cols, "sale_price"); raw != "" {
		sp, err := parsePrice(raw)
		if err != nil {
			return Row{}, fmt.Errorf("invalid sale_price: %v", err)
		}
		row.SalePrice = &sp
	}
	if row.StockQuantity, err = parseInt(field(record, cols, "stock_quantity")); err != nil {
		return Row{}, fmt.Errorf("invalid stock_quantity: %v", err)
	}
	if row.StockQuantity < 0 {
		return Row{}, fmt.Errorf("invalid stock_quantity: must not be negative")
	}

	for _, col := range imageColumns {
		if v := field(record, cols, col); v != "" {
			row.Images = append(row.Images, v)
		}
	}

	if row.Weight, err = parseInt(field(record, cols, "weight")); err != nil {
		return Row{}, fmt.Errorf("invalid weight: %v", err)
	}
	// "lengh" is a known upstream typo, read under the literal name.
	if row.Length, err = parseInt(field(record, cols, "lengh")); err != nil {
		return Row{}, fmt.Errorf("invalid lengh: %v", err)
	}
	if row.Width, err = parseInt(field(record, cols, "wide")); err != nil {
		return Row{}, fmt.Errorf("invalid wide: %v", err)
	}
	if row.Height, err = parseInt(field(record, cols, "high")); err != nil {
		return Row{}, fmt.Errorf("invalid high: %v", err)
	}

	row.SaleShow = parseBool(field(record, cols, "sale_show"))

	return row, nil
}

// field returns the trimmed value of a named column, or empty when the column
// is absent or the record is short.
func field(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// parsePrice parses a decimal money value; empty means zero.
func parsePrice(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// parseInt parses an integer value; empty means zero.
func parseInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// parseBool accepts the spreadsheet's loose truthy spellings.
func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

package ginee

import (
	"encoding/json"
	"fmt"
)

// The stock listing endpoint has returned its records in three different
// shapes over time: a bare array under data, an array under data.content,
// and products carrying nested variationBriefs. Each shape gets its own
// extractor; extractors are tried in order and the first match wins.

// shapeExtractor attempts to read stock records out of a raw data payload.
// It returns false when the payload does not match its shape.
type shapeExtractor struct {
	name    string
	extract func(data json.RawMessage) ([]StockRecord, bool)
}

var stockShapes = []shapeExtractor{
	{name: "data-array", extract: extractDirectArray},
	{name: "data-content", extract: extractContentArray},
	{name: "variation-briefs", extract: extractVariationBriefs},
}

// ExtractStockRecords resolves the response shape and returns a flat record
// list. An unrecognized payload is an error, not an empty result, so schema
// drift upstream is noticed instead of silently zeroing a sync.
func ExtractStockRecords(data json.RawMessage) ([]StockRecord, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	for _, shape := range stockShapes {
		if records, ok := shape.extract(data); ok {
			return records, nil
		}
	}
	return nil, fmt.Errorf("stock response matches no known shape")
}

// extractDirectArray handles data being a bare array of stock records.
func extractDirectArray(data json.RawMessage) ([]StockRecord, bool) {
	var records []StockRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false
	}
	return keyedRecords(records)
}

// extractContentArray handles data being an object with a content array.
func extractContentArray(data json.RawMessage) ([]StockRecord, bool) {
	var wrapper struct {
		Content []StockRecord `json:"content"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil || wrapper.Content == nil {
		return nil, false
	}
	return keyedRecords(wrapper.Content)
}

// extractVariationBriefs handles products whose sellable variants are nested
// under variationBriefs, either as a bare array or under content. Each
// variant becomes its own record.
func extractVariationBriefs(data json.RawMessage) ([]StockRecord, bool) {
	var products []productBrief
	if err := json.Unmarshal(data, &products); err != nil {
		var wrapper struct {
			Content []productBrief `json:"content"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil || wrapper.Content == nil {
			return nil, false
		}
		products = wrapper.Content
	}

	var records []StockRecord
	for _, p := range products {
		for _, v := range p.VariationBriefs {
			if v.MSKU == "" {
				continue
			}
			records = append(records, StockRecord{
				MSKU:           v.MSKU,
				ProductName:    p.ProductName,
				ProductID:      p.ProductID,
				Status:         p.Status,
				AvailableStock: v.AvailableStock,
			})
		}
	}
	if len(records) == 0 {
		return nil, false
	}
	return records, true
}

// keyedRecords accepts a record list when it is empty (a valid last page) or
// when at least one entry carries an msku. A product-shaped payload
// unmarshals into StockRecord with empty keys, which must fall through to the
// variationBriefs extractor.
func keyedRecords(records []StockRecord) ([]StockRecord, bool) {
	if len(records) == 0 {
		return nil, true
	}
	keyed := records[:0:0]
	for _, r := range records {
		if r.MSKU != "" {
			keyed = append(keyed, r)
		}
	}
	if len(keyed) == 0 {
		return nil, false
	}
	return keyed, true
}

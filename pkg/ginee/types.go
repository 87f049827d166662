package ginee

import "encoding/json"

// Envelope is the standard Ginee response wrapper.
type Envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CodeSuccess is the envelope code for a successful call.
const CodeSuccess = "SUCCESS"

// StockRecord is one sellable variant's stock entry, flattened from whichever
// response shape the API returned.
type StockRecord struct {
	MSKU           string `json:"masterSku"`
	ProductName    string `json:"productName"`
	ProductID      string `json:"productId"`
	Status         string `json:"status"`
	AvailableStock int    `json:"availableStock"`
}

// productBrief is a marketplace product that carries zero or more sellable
// variants instead of its own stock entry.
type productBrief struct {
	ProductName     string           `json:"productName"`
	ProductID       string           `json:"productId"`
	Status          string           `json:"status"`
	VariationBriefs []variationBrief `json:"variationBriefs"`
}

// variationBrief is one variant nested under a productBrief.
type variationBrief struct {
	MSKU           string `json:"masterSku"`
	Name           string `json:"name"`
	AvailableStock int    `json:"availableStock"`
}

// listStockRequest is the paging payload for the stock listing endpoint.
type listStockRequest struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

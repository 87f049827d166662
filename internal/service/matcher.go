package service

import (
	"sort"
	"strings"

	"github.com/sepatuku/inventory_api/internal/models"
	"github.com/sepatuku/inventory_api/pkg/ginee"
)

// MSKURecord is one entry of the transient MSKU map rebuilt on every
// preview or apply.
type MSKURecord struct {
	MSKU        string `json:"msku"`
	ProductName string `json:"productName"`
	ProductID   string `json:"productId"`
	Status      string `json:"status"`
	Stock       int    `json:"stock"`
}

// MSKUMap maps marketplace SKUs to their stock records with the nested
// variation lists already flattened into a single keyspace.
type MSKUMap map[string]MSKURecord

// BuildMSKUMap flattens marketplace stock records into an MSKU map. When the
// marketplace reports the same msku more than once the last record wins.
func BuildMSKUMap(records []ginee.StockRecord) MSKUMap {
	m := make(MSKUMap, len(records))
	for _, r := range records {
		if r.MSKU == "" {
			continue
		}
		m[r.MSKU] = MSKURecord{
			MSKU:        r.MSKU,
			ProductName: r.ProductName,
			ProductID:   r.ProductID,
			Status:      r.Status,
			Stock:       r.AvailableStock,
		}
	}
	return m
}

// StockMatch pairs a catalog SKU with the marketplace stock value that will
// be set on apply.
type StockMatch struct {
	SKU           string `json:"sku"`
	ProductID     int    `json:"productId"`
	Stock         int    `json:"stock"`
	PreviousStock int    `json:"previousStock"`
}

// suggestionLimit caps how many near-miss candidates one MSKU may carry.
const suggestionLimit = 5

// MatchResult partitions the catalog against the MSKU map. Unmatched catalog
// SKUs keep their current stock; marketplace-only MSKUs are reported and
// never auto-created. Suggestions maps marketplace-only MSKUs to catalog
// SKUs that loosely resemble them, for diagnostics only.
type MatchResult struct {
	Matched         []StockMatch        `json:"matched"`
	Unmatched       []string            `json:"unmatched"`
	MarketplaceOnly []string            `json:"marketplaceOnly"`
	Suggestions     map[string][]string `json:"suggestions,omitempty"`
}

// MatchMSKUs matches marketplace records against the catalog. Matching is
// byte-equality only: no case folding, trimming, or punctuation stripping,
// because a false-positive match would overwrite stock on the wrong product.
func MatchMSKUs(mskus MSKUMap, catalog map[string]models.Product) *MatchResult {
	result := &MatchResult{}

	for sku, product := range catalog {
		record, ok := mskus[sku]
		if !ok {
			result.Unmatched = append(result.Unmatched, sku)
			continue
		}
		result.Matched = append(result.Matched, StockMatch{
			SKU:           sku,
			ProductID:     product.ID,
			Stock:         record.Stock,
			PreviousStock: product.StockQuantity,
		})
	}

	for msku := range mskus {
		if _, ok := catalog[msku]; !ok {
			result.MarketplaceOnly = append(result.MarketplaceOnly, msku)
		}
	}

	sort.Slice(result.Matched, func(i, j int) bool { return result.Matched[i].SKU < result.Matched[j].SKU })
	sort.Strings(result.Unmatched)
	sort.Strings(result.MarketplaceOnly)

	if len(result.MarketplaceOnly) > 0 {
		catalogSKUs := make([]string, 0, len(catalog))
		for sku := range catalog {
			catalogSKUs = append(catalogSKUs, sku)
		}
		for _, msku := range result.MarketplaceOnly {
			if similar := similarStrings(catalogSKUs, msku, suggestionLimit); len(similar) > 0 {
				if result.Suggestions == nil {
					result.Suggestions = make(map[string][]string)
				}
				result.Suggestions[msku] = similar
			}
		}
	}

	return result
}

// SimilarSKUs returns MSKUs that loosely resemble sku, for human-facing
// "did you mean" diagnostics only. It is never consulted by the matcher
// itself.
func SimilarSKUs(mskus MSKUMap, sku string, limit int) []string {
	candidates := make([]string, 0, len(mskus))
	for msku := range mskus {
		candidates = append(candidates, msku)
	}
	return similarStrings(candidates, sku, limit)
}

// similarStrings finds candidates related to needle by case-insensitive
// substring containment in either direction.
func similarStrings(candidates []string, needle string, limit int) []string {
	if needle == "" || limit <= 0 {
		return nil
	}
	lowered := strings.ToLower(needle)

	var similar []string
	for _, c := range candidates {
		hay := strings.ToLower(c)
		if strings.Contains(hay, lowered) || strings.Contains(lowered, hay) {
			similar = append(similar, c)
		}
	}
	sort.Strings(similar)
	if len(similar) > limit {
		similar = similar[:limit]
	}
	return similar
}

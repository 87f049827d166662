package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents one sellable variant in the catalog. The sku column is
// the authoritative key; sku_parent groups size siblings of the same shoe.
// Fields are tagged for both DB scanning and JSON serialization.
type Product struct {
	ID            int              `db:"id" json:"id"`
	SKU           string           `db:"sku" json:"sku"`
	SKUParent     string           `db:"sku_parent" json:"skuParent"`
	Name          string           `db:"name" json:"name"`
	Brand         string           `db:"brand" json:"brand"`
	Size          string           `db:"size" json:"size"`
	Price         decimal.Decimal  `db:"price" json:"price"`
	SalePrice     *decimal.Decimal `db:"sale_price" json:"salePrice,omitempty"`
	StockQuantity int              `db:"stock_quantity" json:"stockQuantity"`
	IsActive      bool             `db:"is_active" json:"isActive"`
	Images        StringList       `db:"images" json:"images"`
	Weight        int              `db:"weight" json:"weight"`
	Length        int              `db:"length" json:"length"`
	Width         int              `db:"width" json:"width"`
	Height        int              `db:"height" json:"height"`
	CreatedAt     time.Time        `db:"created_at" json:"-"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
}

// HasActiveSale reports whether the sale price counts as an active discount.
// A sale price equal to or above the regular price is stored but ignored.
func (p *Product) HasActiveSale() bool {
	return p.SalePrice != nil && p.SalePrice.LessThan(p.Price)
}

// EffectivePrice returns the sale price when the discount is active,
// otherwise the regular price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.HasActiveSale() {
		return *p.SalePrice
	}
	return p.Price
}

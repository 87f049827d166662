package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
)

// Order is created in the same transaction that reserves stock, so a failed
// reservation rolls the whole order back.
type Order struct {
	ID        int             `db:"id" json:"id"`
	OrderNo   string          `db:"order_no" json:"orderNo"`
	Status    OrderStatus     `db:"status" json:"status"`
	Total     decimal.Decimal `db:"total" json:"total"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"-"`

	Items []OrderItem `db:"-" json:"items"`
}

// OrderItem is one reserved line of an order.
type OrderItem struct {
	ID        int             `db:"id" json:"id"`
	OrderID   int             `db:"order_id" json:"-"`
	ProductID int             `db:"product_id" json:"productId"`
	SKU       string          `db:"sku" json:"sku"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unitPrice"`
	CreatedAt time.Time       `db:"created_at" json:"-"`
}

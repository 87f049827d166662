package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/sepatuku/inventory_api/internal/models"
)

// OrderRepository handles data access for orders and order items.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateTx inserts the order and all its items inside the caller's
// transaction. The caller reserves stock in the same transaction, so a
// failure anywhere rolls everything back together.
func (r *OrderRepository) CreateTx(tx *sqlx.Tx, order *models.Order) error {
	const orderQ = `
        INSERT INTO orders (order_no, status, total)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`

	if err := tx.QueryRowx(orderQ, order.OrderNo, order.Status, order.Total).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return err
	}

	const itemQ = `
        INSERT INTO order_items (order_id, product_id, sku, quantity, unit_price)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if err := tx.QueryRowx(itemQ, item.OrderID, item.ProductID, item.SKU, item.Quantity, item.UnitPrice).
			Scan(&item.ID, &item.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

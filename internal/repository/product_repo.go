package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sepatuku/inventory_api/internal/models"
	"github.com/sepatuku/inventory_api/internal/utils"
)

// lockTimeout bounds how long a reservation or sync waits for a contended
// product row before failing as retryable.
const lockTimeout = "3s"

// pq error code for lock_not_available.
const pqLockNotAvailable = "55P03"

// ProductRepository handles data access for products. All stock mutation
// goes through transaction-scoped methods so callers control the lock
// boundary.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetAllBySKU returns the whole catalog indexed by sku. Used by the
// orchestrator to diff a feed against the store.
func (r *ProductRepository) GetAllBySKU(ctx context.Context) (map[string]models.Product, error) {
	const q = `SELECT * FROM products`

	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, q); err != nil {
		return nil, err
	}

	index := make(map[string]models.Product, len(products))
	for _, p := range products {
		index[p.SKU] = p
	}
	return index, nil
}

// GetBySKU returns a single product by sku.
func (r *ProductRepository) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	const q = `SELECT * FROM products WHERE sku = $1 LIMIT 1`

	var p models.Product
	if err := r.db.GetContext(ctx, &p, q, sku); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetAllPaged returns products with filters and pagination and also returns
// total count. Empty filters are ignored. Page begins at 1.
func (r *ProductRepository) GetAllPaged(ctx context.Context, brand, search string, activeOnly bool, page, limit int) ([]models.Product, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	const baseWhere = `WHERE ($1 = '' OR brand = $1)
        AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR sku ILIKE '%' || $2 || '%')
        AND ($3 = false OR is_active = true)`

	countQuery := `SELECT COUNT(1) FROM products ` + baseWhere
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, brand, search, activeOnly); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT * FROM products ` + baseWhere + `
        ORDER BY brand, sku_parent, sku LIMIT $4 OFFSET $5`
	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, listQuery, brand, search, activeOnly, limit, offset); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetStock is the lock-free cart read of a product's stock.
func (r *ProductRepository) GetStock(ctx context.Context, sku string) (int, error) {
	const q = `SELECT stock_quantity FROM products WHERE sku = $1 LIMIT 1`

	var stock int
	if err := r.db.GetContext(ctx, &stock, q, sku); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, utils.ErrProductNotFound
		}
		return 0, err
	}
	return stock, nil
}

// UpsertTx inserts or updates a product by sku inside the caller's
// transaction. The stock value is an absolute set from the feed.
func (r *ProductRepository) UpsertTx(tx *sqlx.Tx, product *models.Product) error {
	const q = `
        INSERT INTO products (sku, sku_parent, name, brand, size, price, sale_price, stock_quantity, is_active, images, weight, length, width, height)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        ON CONFLICT (sku) DO UPDATE SET
            sku_parent = EXCLUDED.sku_parent,
            name = EXCLUDED.name,
            brand = EXCLUDED.brand,
            size = EXCLUDED.size,
            price = EXCLUDED.price,
            sale_price = EXCLUDED.sale_price,
            stock_quantity = EXCLUDED.stock_quantity,
            is_active = EXCLUDED.is_active,
            images = EXCLUDED.images,
            weight = EXCLUDED.weight,
            length = EXCLUDED.length,
            width = EXCLUDED.width,
            height = EXCLUDED.height,
            updated_at = NOW()`

	_, err := tx.Exec(q,
		product.SKU,
		product.SKUParent,
		product.Name,
		product.Brand,
		product.Size,
		product.Price,
		product.SalePrice,
		product.StockQuantity,
		product.IsActive,
		product.Images,
		product.Weight,
		product.Length,
		product.Width,
		product.Height,
	)
	return err
}

// SetStockTx sets a product's stock to an absolute value inside the caller's
// transaction. The single UPDATE takes the row's exclusive lock.
func (r *ProductRepository) SetStockTx(tx *sqlx.Tx, sku string, quantity int) error {
	const q = `UPDATE products SET stock_quantity = $2, updated_at = NOW() WHERE sku = $1`

	res, err := tx.Exec(q, sku, quantity)
	if err != nil {
		return mapLockError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return utils.ErrProductNotFound
	}
	return nil
}

// DeleteBySKUTx removes a product inside the caller's transaction. Only the
// orchestrator's clean-old-data path reaches this.
func (r *ProductRepository) DeleteBySKUTx(tx *sqlx.Tx, sku string) error {
	const q = `DELETE FROM products WHERE sku = $1`
	_, err := tx.Exec(q, sku)
	return err
}

// GetBySKUForUpdateTx reads a product row under an exclusive row lock with a
// bounded wait. A lock wait past the bound surfaces as ErrLockTimeout so the
// caller can retry instead of blocking a checkout indefinitely.
func (r *ProductRepository) GetBySKUForUpdateTx(tx *sqlx.Tx, sku string) (*models.Product, error) {
	if _, err := tx.Exec(fmt.Sprintf(`SET LOCAL lock_timeout = '%s'`, lockTimeout)); err != nil {
		return nil, err
	}

	const q = `SELECT * FROM products WHERE sku = $1 FOR UPDATE`
	var p models.Product
	if err := tx.Get(&p, q, sku); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", utils.ErrProductNotFound, sku)
		}
		return nil, mapLockError(err)
	}
	return &p, nil
}

// DecrementStockTx subtracts quantity from a product's stock inside the
// caller's transaction. The guard in the WHERE clause keeps stock
// non-negative even if a caller skips the locked read.
func (r *ProductRepository) DecrementStockTx(tx *sqlx.Tx, sku string, quantity int) error {
	const q = `UPDATE products
        SET stock_quantity = stock_quantity - $2, updated_at = NOW()
        WHERE sku = $1 AND stock_quantity >= $2`

	res, err := tx.Exec(q, sku, quantity)
	if err != nil {
		return mapLockError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", utils.ErrInsufficientStock, sku)
	}
	return nil
}

// mapLockError converts the driver's lock_not_available failure into the
// retryable sentinel.
func mapLockError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqLockNotAvailable {
		return fmt.Errorf("%w: %v", utils.ErrLockTimeout, err)
	}
	return err
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sepatuku/inventory_api/internal/models"
	"github.com/sepatuku/inventory_api/internal/utils"
)

// ReservationStore is the locked stock-mutation surface used at checkout.
type ReservationStore interface {
	// GetBySKUForUpdateTx reads the product row under an exclusive row lock.
	GetBySKUForUpdateTx(tx *sqlx.Tx, sku string) (*models.Product, error)
	// DecrementStockTx subtracts quantity from the locked row's stock.
	DecrementStockTx(tx *sqlx.Tx, sku string, quantity int) error
	// GetStock is the lock-free cart-facing read; it may be stale.
	GetStock(ctx context.Context, sku string) (int, error)
}

// OrderStore persists orders and their items.
type OrderStore interface {
	CreateTx(tx *sqlx.Tx, order *models.Order) error
}

// StockCache is the optional read-through cache for the cart stock path.
type StockCache interface {
	Get(ctx context.Context, sku string) (int, bool, error)
	Set(ctx context.Context, sku string, stock int) error
	Invalidate(ctx context.Context, skus ...string) error
}

// OrderLine is one requested line of a checkout.
type OrderLine struct {
	SKU      string `json:"sku" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
}

// CheckoutService validates and reserves stock at order placement. Every
// line is reserved inside the same transaction that creates the order, so a
// failure on any line rolls the whole order back; partial decrement across
// lines never happens.
type CheckoutService struct {
	reservations ReservationStore
	orders       OrderStore
	tx           TxRunner
	stockCache   StockCache
}

// NewCheckoutService constructs a CheckoutService. stockCache may be nil.
func NewCheckoutService(reservations ReservationStore, orders OrderStore, tx TxRunner, stockCache StockCache) *CheckoutService {
	return &CheckoutService{
		reservations: reservations,
		orders:       orders,
		tx:           tx,
		stockCache:   stockCache,
	}
}

// PlaceOrder reserves stock for every line and creates the order. Stock is
// only ever decremented here; restocks are out of scope.
func (s *CheckoutService) PlaceOrder(ctx context.Context, lines []OrderLine) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("order has no lines")
	}
	for _, line := range lines {
		if line.SKU == "" {
			return nil, fmt.Errorf("order line missing sku")
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("order line %s: quantity must be positive", line.SKU)
		}
	}

	order := &models.Order{
		OrderNo: newOrderNo(),
		Status:  models.OrderStatusPending,
		Total:   decimal.Zero,
	}

	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		for _, line := range lines {
			product, err := s.reservations.GetBySKUForUpdateTx(tx, line.SKU)
			if err != nil {
				return err
			}
			if !product.IsActive {
				return fmt.Errorf("%w: %s", utils.ErrProductInactive, line.SKU)
			}
			if product.StockQuantity < line.Quantity {
				return &utils.InsufficientStockError{
					SKU:       line.SKU,
					Requested: line.Quantity,
					Available: product.StockQuantity,
				}
			}
			if err := s.reservations.DecrementStockTx(tx, line.SKU, line.Quantity); err != nil {
				return err
			}

			unitPrice := product.EffectivePrice()
			order.Items = append(order.Items, models.OrderItem{
				ProductID: product.ID,
				SKU:       line.SKU,
				Quantity:  line.Quantity,
				UnitPrice: unitPrice,
			})
			order.Total = order.Total.Add(unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		return s.orders.CreateTx(tx, order)
	})
	if err != nil {
		return nil, err
	}

	if s.stockCache != nil {
		skus := make([]string, len(order.Items))
		for i, item := range order.Items {
			skus[i] = item.SKU
		}
		if err := s.stockCache.Invalidate(ctx, skus...); err != nil {
			log.Warn().Err(err).Msg("failed to invalidate stock cache after order")
		}
	}

	return order, nil
}

// CurrentStock is the cart-facing stock read. It is lock-free and may lag a
// concurrent checkout or sync; the reservation path revalidates under a row
// lock and is the sole authority.
func (s *CheckoutService) CurrentStock(ctx context.Context, sku string) (int, error) {
	if s.stockCache != nil {
		if stock, ok, err := s.stockCache.Get(ctx, sku); err == nil && ok {
			return stock, nil
		}
	}

	stock, err := s.reservations.GetStock(ctx, sku)
	if err != nil {
		return 0, err
	}

	if s.stockCache != nil {
		if err := s.stockCache.Set(ctx, sku, stock); err != nil {
			log.Warn().Err(err).Str("sku", sku).Msg("failed to cache stock")
		}
	}
	return stock, nil
}

// newOrderNo generates a short human-readable order number.
func newOrderNo() string {
	return "SO-" + strings.ToUpper(uuid.New().String()[:8])
}

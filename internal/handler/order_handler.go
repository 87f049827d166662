package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/sepatuku/inventory_api/internal/service"
	"github.com/sepatuku/inventory_api/internal/utils"
)

// OrderHandler handles order placement.
type OrderHandler struct {
	checkoutService *service.CheckoutService
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(checkoutService *service.CheckoutService) *OrderHandler {
	return &OrderHandler{checkoutService: checkoutService}
}

// createOrderRequest is the checkout payload.
type createOrderRequest struct {
	Items []service.OrderLine `json:"items" binding:"required"`
}

// CreateOrder reserves stock for every line and creates the order. Any line
// failure rolls the whole order back.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "items is required")
		return
	}

	order, err := h.checkoutService.PlaceOrder(c.Request.Context(), req.Items)
	if err != nil {
		h.writeOrderError(c, err)
		return
	}
	utils.Success(c, 201, "Order created", order)
}

func (h *OrderHandler) writeOrderError(c *gin.Context, err error) {
	var insufficient *utils.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		utils.Error(c, 409, "INSUFFICIENT_STOCK", insufficient.Error())
	case errors.Is(err, utils.ErrProductNotFound):
		utils.Error(c, 404, "PRODUCT_NOT_FOUND", err.Error())
	case errors.Is(err, utils.ErrProductInactive):
		utils.Error(c, 409, "PRODUCT_INACTIVE", err.Error())
	case errors.Is(err, utils.ErrLockTimeout):
		// Retryable: the row was held by a concurrent sync or checkout.
		utils.Error(c, 503, "LOCK_TIMEOUT", err.Error())
	default:
		utils.Error(c, 400, "ORDER_FAILED", err.Error())
	}
}

package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sepatuku/inventory_api/internal/repository"
	"github.com/sepatuku/inventory_api/internal/service"
	"github.com/sepatuku/inventory_api/internal/utils"
)

// ProductHandler handles catalog-facing HTTP endpoints.
type ProductHandler struct {
	productRepo     *repository.ProductRepository
	checkoutService *service.CheckoutService
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(productRepo *repository.ProductRepository, checkoutService *service.CheckoutService) *ProductHandler {
	return &ProductHandler{productRepo: productRepo, checkoutService: checkoutService}
}

// GetProducts returns the product list with optional filters and pagination.
func (h *ProductHandler) GetProducts(c *gin.Context) {
	brand := c.Query("brand")
	search := c.Query("search")
	activeOnly := c.Query("all") != "true"

	page := 1
	limit := 50
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	products, total, err := h.productRepo.GetAllPaged(c.Request.Context(), brand, search, activeOnly, page, limit)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get products")
		return
	}

	utils.SuccessWithPagination(c, 200, "Products retrieved successfully", gin.H{
		"products": products,
	}, page, limit, total)
}

// GetProduct returns a single product by sku.
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.productRepo.GetBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		if errors.Is(err, utils.ErrProductNotFound) {
			utils.Error(c, 404, "PRODUCT_NOT_FOUND", "Product not found")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get product")
		return
	}
	utils.Success(c, 200, "Product retrieved successfully", product)
}

// GetStock is the cart-facing stock read. The value may be stale; the
// reservation at order placement is the sole authority.
func (h *ProductHandler) GetStock(c *gin.Context) {
	sku := c.Param("sku")
	stock, err := h.checkoutService.CurrentStock(c.Request.Context(), sku)
	if err != nil {
		if errors.Is(err, utils.ErrProductNotFound) {
			utils.Error(c, 404, "PRODUCT_NOT_FOUND", "Product not found")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get stock")
		return
	}
	utils.Success(c, 200, "Stock retrieved successfully", gin.H{
		"sku":   sku,
		"stock": stock,
	})
}

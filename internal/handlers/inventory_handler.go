package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"inventory-sync-api/internal/middleware"
	"inventory-sync-api/internal/models"
	"inventory-sync-api/internal/realtime"
	"inventory-sync-api/internal/warehouse"

	"github.com/gin-gonic/gin"
)

// HubStats is the read side of the realtime hub used by the inventory routes.
type HubStats interface {
	AvailableQuantity(productID int64) int64
	ClientCount() int
	SubscriberCount() int
}

// InventoryHandler serves warehouse operations and inventory queries.
type InventoryHandler struct {
	service *warehouse.Service
	hub     HubStats
}

// NewInventoryHandler creates an InventoryHandler.
func NewInventoryHandler(service *warehouse.Service, hub HubStats) *InventoryHandler {
	return &InventoryHandler{service: service, hub: hub}
}

// CreateProductRequest represents the request payload for creating a product
type CreateProductRequest struct {
	SKU        string `json:"sku" binding:"required"`
	Name       string `json:"name" binding:"required"`
	SupplierID *int64 `json:"supplier_id"`
}

// StockRequest is the body shared by receive, pick, reserve and release.
type StockRequest struct {
	ProductID int64             `json:"product_id" binding:"required"`
	Quantity  int64             `json:"quantity" binding:"required,gt=0"`
	Metadata  realtime.Metadata `json:"metadata"`
}

// CycleCountRequest represents a cycle count covering one or more products
type CycleCountRequest struct {
	Counts   []warehouse.Count `json:"counts" binding:"required,min=1,dive"`
	Metadata realtime.Metadata `json:"metadata"`
}

// CreateProduct handles POST /api/products
func (h *InventoryHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := h.service.CreateProduct(c.Request.Context(), req.SKU, req.Name, req.SupplierID)
	if err != nil {
		if errors.Is(err, warehouse.ErrDuplicateSKU) {
			c.JSON(http.StatusConflict, gin.H{"error": "SKU already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}
	c.JSON(http.StatusCreated, product)
}

// ListProducts handles GET /api/products
func (h *InventoryHandler) ListProducts(c *gin.Context) {
	products, err := h.service.ListProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// Receive handles POST /api/warehouse/receive
func (h *InventoryHandler) Receive(c *gin.Context) { h.stock(c, h.service.Receive) }

// Pick handles POST /api/warehouse/pick
func (h *InventoryHandler) Pick(c *gin.Context) { h.stock(c, h.service.Pick) }

// Reserve handles POST /api/warehouse/reserve
func (h *InventoryHandler) Reserve(c *gin.Context) { h.stock(c, h.service.Reserve) }

// Release handles POST /api/warehouse/release
func (h *InventoryHandler) Release(c *gin.Context) { h.stock(c, h.service.Release) }

type stockFunc = func(ctx context.Context, productID, qty, userID int64, meta realtime.Metadata) (*models.InventoryLevel, error)

func (h *InventoryHandler) stock(c *gin.Context, op stockFunc) {
	var req StockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	level, err := op(c.Request.Context(), req.ProductID, req.Quantity, middleware.UserID(c), req.Metadata)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, levelResponse(level))
}

// CycleCount handles POST /api/warehouse/cycle-count
func (h *InventoryHandler) CycleCount(c *gin.Context) {
	var req CycleCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	levels, err := h.service.CycleCount(c.Request.Context(), req.Counts, middleware.UserID(c), req.Metadata)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	resp := make([]gin.H, 0, len(levels))
	for i := range levels {
		resp = append(resp, levelResponse(&levels[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"levels": resp,
		"count":  len(resp),
	})
}

// Reconcile handles POST /api/warehouse/reconcile?broadcast=true
func (h *InventoryHandler) Reconcile(c *gin.Context) {
	broadcast, err := strconv.ParseBool(c.DefaultQuery("broadcast", "true"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "broadcast must be true or false"})
		return
	}
	changed, err := h.service.Reconcile(c.Request.Context(), broadcast)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reconcile inventory"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"changed":   changed,
		"broadcast": broadcast,
	})
}

// ListLevels handles GET /api/inventory
func (h *InventoryHandler) ListLevels(c *gin.Context) {
	levels, err := h.service.ListLevels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch inventory"})
		return
	}
	resp := make([]gin.H, 0, len(levels))
	for i := range levels {
		resp = append(resp, levelResponse(&levels[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"inventory": resp,
		"count":     len(resp),
	})
}

// GetAvailable handles GET /api/inventory/:productId
// The value comes from the realtime cache, which is what subscribers see.
func (h *InventoryHandler) GetAvailable(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id":         productID,
		"available_quantity": h.hub.AvailableQuantity(productID),
	})
}

// GetMovements handles GET /api/inventory/:productId/movements
func (h *InventoryHandler) GetMovements(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}
	movements, err := h.service.Movements(c.Request.Context(), productID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch movements"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"movements": movements,
		"count":     len(movements),
	})
}

// RealtimeStats handles GET /api/realtime/stats
func (h *InventoryHandler) RealtimeStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"clients":     h.hub.ClientCount(),
		"subscribers": h.hub.SubscriberCount(),
	})
}

func productIDParam(c *gin.Context) (int64, bool) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil || productID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product id"})
		return 0, false
	}
	return productID, true
}

func levelResponse(l *models.InventoryLevel) gin.H {
	return gin.H{
		"product_id":         l.ProductID,
		"on_hand":            l.OnHand,
		"reserved":           l.Reserved,
		"available_quantity": l.Available(),
		"updated_at":         l.UpdatedAt,
	}
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, warehouse.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.Is(err, warehouse.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock"})
	case errors.Is(err, warehouse.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quantity"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update inventory"})
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"inventory-sync-api/internal/middleware"
	"inventory-sync-api/internal/realtime"
	"inventory-sync-api/internal/warehouse"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type inventoryFixture struct {
	router *gin.Engine
	hub    *realtime.Hub
	token  string
}

func newInventoryFixture(t *testing.T) inventoryFixture {
	t.Helper()
	db := newTestDB(t)
	tokens := testTokens()
	hub := realtime.NewHub(nil, realtime.Options{})
	h := NewInventoryHandler(warehouse.NewService(db, hub, nil, warehouse.Options{}), hub)

	r := gin.New()
	api := r.Group("/api", middleware.JWTAuthMiddleware(tokens))
	api.POST("/products", h.CreateProduct)
	api.GET("/products", h.ListProducts)
	api.POST("/warehouse/receive", h.Receive)
	api.POST("/warehouse/pick", h.Pick)
	api.POST("/warehouse/reserve", h.Reserve)
	api.POST("/warehouse/release", h.Release)
	api.POST("/warehouse/cycle-count", h.CycleCount)
	api.POST("/warehouse/reconcile", h.Reconcile)
	api.GET("/inventory", h.ListLevels)
	api.GET("/inventory/:productId", h.GetAvailable)
	api.GET("/inventory/:productId/movements", h.GetMovements)
	api.GET("/realtime/stats", h.RealtimeStats)

	token, err := tokens.GenerateToken(5, "dock", "warehouse")
	require.NoError(t, err)
	return inventoryFixture{router: r, hub: hub, token: token}
}

func (f inventoryFixture) createProduct(t *testing.T, sku string) int64 {
	t.Helper()
	w := doJSON(t, f.router, http.MethodPost, "/api/products", f.token, map[string]any{"sku": sku, "name": "Pallet " + sku})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p.ID
}

func TestInventory_ReceiveUpdatesHub(t *testing.T) {
	f := newInventoryFixture(t)
	pid := f.createProduct(t, "SKU-1")

	w := doJSON(t, f.router, http.MethodPost, "/api/warehouse/receive", f.token, map[string]any{
		"product_id": pid, "quantity": 25, "metadata": map[string]any{"po": "PO-1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.EqualValues(t, 25, f.hub.AvailableQuantity(pid))

	w = doJSON(t, f.router, http.MethodGet, "/api/inventory/"+itoa(pid), f.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"product_id":`+itoa(pid)+`,"available_quantity":25}`, w.Body.String())
}

func TestInventory_PickInsufficientIsConflict(t *testing.T) {
	f := newInventoryFixture(t)
	pid := f.createProduct(t, "SKU-1")

	w := doJSON(t, f.router, http.MethodPost, "/api/warehouse/pick", f.token, map[string]any{"product_id": pid, "quantity": 1})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestInventory_UnknownProductIsNotFound(t *testing.T) {
	f := newInventoryFixture(t)
	w := doJSON(t, f.router, http.MethodPost, "/api/warehouse/receive", f.token, map[string]any{"product_id": 999, "quantity": 1})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestInventory_BadBody(t *testing.T) {
	f := newInventoryFixture(t)
	w := doJSON(t, f.router, http.MethodPost, "/api/warehouse/receive", f.token, map[string]any{"product_id": 1, "quantity": -2})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInventory_ReserveReleaseAndLevels(t *testing.T) {
	f := newInventoryFixture(t)
	pid := f.createProduct(t, "SKU-1")
	doJSON(t, f.router, http.MethodPost, "/api/warehouse/receive", f.token, map[string]any{"product_id": pid, "quantity": 10})

	w := doJSON(t, f.router, http.MethodPost, "/api/warehouse/reserve", f.token, map[string]any{"product_id": pid, "quantity": 3})
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 7, f.hub.AvailableQuantity(pid))

	w = doJSON(t, f.router, http.MethodPost, "/api/warehouse/release", f.token, map[string]any{"product_id": pid, "quantity": 5})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, f.router, http.MethodGet, "/api/inventory", f.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Inventory []map[string]any `json:"inventory"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Inventory, 1)
	require.EqualValues(t, 3, body.Inventory[0]["reserved"])
	require.EqualValues(t, 7, body.Inventory[0]["available_quantity"])
}

func TestInventory_CycleCount(t *testing.T) {
	f := newInventoryFixture(t)
	p1 := f.createProduct(t, "SKU-1")
	p2 := f.createProduct(t, "SKU-2")

	w := doJSON(t, f.router, http.MethodPost, "/api/warehouse/cycle-count", f.token, map[string]any{
		"counts": []map[string]any{{"product_id": p1, "quantity": 8}, {"product_id": p2, "quantity": 3}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.EqualValues(t, 8, f.hub.AvailableQuantity(p1))
	require.EqualValues(t, 3, f.hub.AvailableQuantity(p2))

	w = doJSON(t, f.router, http.MethodPost, "/api/warehouse/cycle-count", f.token, map[string]any{"counts": []any{}})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInventory_ReconcileAndStats(t *testing.T) {
	f := newInventoryFixture(t)
	f.createProduct(t, "SKU-1")

	w := doJSON(t, f.router, http.MethodPost, "/api/warehouse/reconcile?broadcast=false", f.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"changed":1,"broadcast":false}`, w.Body.String())

	w = doJSON(t, f.router, http.MethodPost, "/api/warehouse/reconcile?broadcast=maybe", f.token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, f.router, http.MethodGet, "/api/realtime/stats", f.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"clients":0,"subscribers":0}`, w.Body.String())
}

func TestInventory_Movements(t *testing.T) {
	f := newInventoryFixture(t)
	pid := f.createProduct(t, "SKU-1")
	doJSON(t, f.router, http.MethodPost, "/api/warehouse/receive", f.token, map[string]any{"product_id": pid, "quantity": 4})

	w := doJSON(t, f.router, http.MethodGet, "/api/inventory/"+itoa(pid)+"/movements", f.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"count":1`)
	require.Contains(t, w.Body.String(), `"user_id":5`)

	w = doJSON(t, f.router, http.MethodGet, "/api/inventory/abc/movements", f.token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInventory_DuplicateSKU(t *testing.T) {
	f := newInventoryFixture(t)
	f.createProduct(t, "SKU-1")
	w := doJSON(t, f.router, http.MethodPost, "/api/products", f.token, map[string]any{"sku": "SKU-1", "name": "again"})
	require.Equal(t, http.StatusConflict, w.Code)
}

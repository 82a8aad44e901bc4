package routes

import (
	"net/http"

	"inventory-sync-api/internal/auth"
	"inventory-sync-api/internal/handlers"
	"inventory-sync-api/internal/middleware"
	"inventory-sync-api/internal/models"
	"inventory-sync-api/internal/realtime"
	"inventory-sync-api/internal/warehouse"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	DB      *gorm.DB
	Tokens  *auth.TokenManager
	Service *warehouse.Service
	Hub     *realtime.Hub
	Logger  *zerolog.Logger
	// WSPath is where the hub accepts subscriber connections.
	WSPath string
}

func SetupRoutes(d Deps) *gin.Engine {
	ginRouter := gin.New()
	ginRouter.Use(middleware.RequestID(), middleware.Logger(d.Logger), middleware.Recovery(d.Logger))

	// CORS middleware (for frontend integration)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Inventory sync API is running",
			"clients": d.Hub.ClientCount(),
		})
	})

	// Subscribers are not authenticated; the hub trusts the client-supplied userId.
	wsPath := d.WSPath
	if wsPath == "" {
		wsPath = "/ws"
	}
	ginRouter.GET(wsPath, d.Hub.Handler())

	authHandler := handlers.NewAuthHandler(d.DB, d.Tokens)
	userHandler := handlers.NewUserHandler(d.DB)
	inventoryHandler := handlers.NewInventoryHandler(d.Service, d.Hub)

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/login", authHandler.Login)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware(d.Tokens))
	{
		protectedRoutes.GET("/products", inventoryHandler.ListProducts)
		protectedRoutes.GET("/inventory", inventoryHandler.ListLevels)
		protectedRoutes.GET("/inventory/:productId", inventoryHandler.GetAvailable)
		protectedRoutes.GET("/inventory/:productId/movements", inventoryHandler.GetMovements)
		protectedRoutes.GET("/realtime/stats", inventoryHandler.RealtimeStats)
	}

	warehouseRoutes := protectedRoutes.Group("")
	warehouseRoutes.Use(middleware.RequireRole(models.RoleWarehouse, models.RoleAdmin))
	{
		warehouseRoutes.POST("/products", inventoryHandler.CreateProduct)
		warehouseRoutes.POST("/warehouse/receive", inventoryHandler.Receive)
		warehouseRoutes.POST("/warehouse/pick", inventoryHandler.Pick)
		warehouseRoutes.POST("/warehouse/reserve", inventoryHandler.Reserve)
		warehouseRoutes.POST("/warehouse/release", inventoryHandler.Release)
		warehouseRoutes.POST("/warehouse/cycle-count", inventoryHandler.CycleCount)
	}

	adminRoutes := protectedRoutes.Group("")
	adminRoutes.Use(middleware.RequireRole(models.RoleAdmin))
	{
		adminRoutes.POST("/warehouse/reconcile", inventoryHandler.Reconcile)
		adminRoutes.GET("/users", userHandler.GetAllUsers)
		adminRoutes.POST("/users", userHandler.CreateUserHandler)
	}

	return ginRouter
}

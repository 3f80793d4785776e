package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"syntra-ledger/internal/gateway/handlers"
	"syntra-ledger/internal/gateway/middleware"
	"syntra-ledger/internal/ledger"
	"syntra-ledger/internal/ledger/billing"
)

type routerDeps struct {
	engine    *billing.Engine
	store     ledger.Store
	registry  *prometheus.Registry
	logger    *slog.Logger
	jwtSecret []byte
	rateLimit string
}

func setupRouter(deps routerDeps) (*gin.Engine, error) {
	limit, err := middleware.RateLimit(deps.rateLimit)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(limit)

	ledgerHandler := handlers.NewLedgerHTTPHandler(deps.engine, deps.store, deps.logger)

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(deps.jwtSecret))
	{
		protected.POST("/bills", ledgerHandler.CreateBill)
		protected.POST("/bill-returns", ledgerHandler.CreateBillReturn)
		protected.POST("/stock-receipts", ledgerHandler.CreateStockReceipt)
		protected.GET("/documents/:id", ledgerHandler.GetDocument)

		products := protected.Group("/products")
		{
			products.GET("/:id/stock", ledgerHandler.GetProductStock)
			products.GET("/:id/movements", ledgerHandler.ListProductMovements)
		}

		customers := protected.Group("/customers")
		{
			customers.GET("/:id/balance", ledgerHandler.GetCustomerBalance)
		}
	}

	r.GET("/health", healthCheckHandler(deps.store))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{})))

	return r, nil
}

func healthCheckHandler(store ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		httpStatus := http.StatusOK
		storeStatus := "available"

		if p, ok := store.(pinger); ok {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				status = "degraded"
				storeStatus = "unavailable"
				httpStatus = http.StatusServiceUnavailable
			}
		}

		c.JSON(httpStatus, gin.H{
			"status":    status,
			"message":   "Server is running",
			"store":     storeStatus,
			"timestamp": time.Now(),
		})
	}
}

package api_gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/household-ledger/internal/api_gateway/handler"
	"github.com/household-ledger/internal/api_gateway/middleware"
)

// healthCheckTimeout bounds each dependency ping of /health
const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency checked by /health
type Pinger interface {
	Ping(ctx context.Context) error
}

type handlers struct {
	account     *handler.AccountHandler
	balance     *handler.BalanceHandler
	transaction *handler.TransactionHandler
	imports     *handler.ImportHandler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, h handlers, checks map[string]Pinger) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())

	// API v1 endpoints, scoped to the user named by X-User-ID
	v1 := r.Group("/api/v1", middleware.UserID())
	{
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", h.account.Create)
			accounts.GET("", h.account.List)
			accounts.GET("/:id", h.account.GetByID)
			accounts.GET("/:id/balance", h.balance.GetAccountBalance)
			accounts.GET("/:id/ledger", h.balance.GetLedger)
		}

		v1.GET("/balances", h.balance.GetBalances)

		transactions := v1.Group("/transactions")
		{
			transactions.GET("/:id", h.transaction.GetByID)
			transactions.PATCH("/:id", h.transaction.Update)
			transactions.DELETE("/:id", h.transaction.Delete)
		}

		imports := v1.Group("/imports")
		{
			imports.POST("", h.imports.Create)
			imports.GET("/:id", h.imports.GetJob)
		}
	}

	r.GET("/health", healthHandler(logger, checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthHandler pings every dependency and answers 503 when any of them fails
func healthHandler(logger *slog.Logger, checks map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
			err := check.Ping(ctx)
			cancel()
			if err != nil {
				logger.Warn("Health check failed", "component", name, "error", err)
				components[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "components": components, "timestamp": time.Now().UTC()})
	}
}

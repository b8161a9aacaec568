// Package routes wires handlers and middlewares onto a gin engine
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/handler"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/middleware"
)

// Handlers groups everything SetupRoutes mounts; a nil Metrics handler skips /metrics
type Handlers struct {
	Credit  *handler.CreditHandler
	Admin   *handler.AdminHandler
	Health  *handler.HealthHandler
	Metrics http.Handler
}

// SetupRoutes configures all the routes for the API
func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", h.Health.Health)
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}

	credits := router.Group("/users/:userId/credits")
	{
		credits.GET("/balance", h.Credit.GetBalance)
		credits.GET("/transactions", h.Credit.GetTransactions)
		credits.GET("/expiring", h.Credit.GetExpiring)
		credits.GET("/stats", h.Credit.GetStats)
	}

	admin := router.Group("/admin/users/:userId/credits")
	{
		admin.POST("/bonus", h.Admin.GrantBonus)
	}
}

// SetupMiddlewares configures global middlewares for the API
func SetupMiddlewares(router *gin.Engine, logger coreport.Logger, timeProvider coreport.TimeProvider) {
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler(logger))
	router.Use(middleware.Logger(logger, timeProvider))
}

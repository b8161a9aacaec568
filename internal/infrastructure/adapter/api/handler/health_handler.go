package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/dto"
)

// HealthCheck probes one dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler reports whether the service and its dependencies are reachable
type HealthHandler struct {
	checks       []HealthCheck
	timeout      time.Duration
	timeProvider coreport.TimeProvider
	logger       coreport.Logger
}

// NewHealthHandler creates a health handler running checks with a per-request timeout
func NewHealthHandler(timeProvider coreport.TimeProvider, logger coreport.Logger, timeout time.Duration, checks ...HealthCheck) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{
		checks:       checks,
		timeout:      timeout,
		timeProvider: timeProvider,
		logger:       logger,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := h.timeProvider.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := dto.HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			h.logger.Warn("Health check failed", map[string]any{
				"check": check.Name,
				"error": err.Error(),
			})
			resp.Checks[check.Name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name] = "ok"
	}

	c.JSON(status, resp)
}

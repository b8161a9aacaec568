// Package middleware holds the gin middlewares shared by every route
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/dto"
)

// ErrorHandler recovers from panics and answers with a 500 in the standard error format
func ErrorHandler(logger coreport.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Panic recovered in API request", map[string]any{
					"panic":     rec,
					"path":      c.Request.URL.Path,
					"method":    c.Request.Method,
					"clientIp":  c.ClientIP(),
					"requestId": c.GetString(RequestIDKey),
				})

				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
					Code:      errs.CodeInternalServer,
					Message:   "Internal server error",
					RequestID: c.GetString(RequestIDKey),
				})
			}
		}()

		c.Next()
	}
}

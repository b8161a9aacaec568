package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/dto"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/middleware"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) (int, string) {
	switch {
	case errs.IsInsufficientCreditsError(err):
		return http.StatusPaymentRequired, "Insufficient credits"
	case errs.IsValidationError(err):
		return http.StatusBadRequest, err.Error()
	case errs.IsNotFoundError(err):
		return http.StatusNotFound, "Not found"
	case errs.IsConcurrencyConflict(err):
		return http.StatusConflict, "Concurrent modification, retry the request"
	case errs.ErrorCode(err) == errs.CodeDatabaseConnection:
		return http.StatusServiceUnavailable, "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondError logs err and writes the standard error body
func respondError(c *gin.Context, logger coreport.Logger, operation string, err error) {
	status, message := statusFor(err)

	fields := map[string]any{
		"operation": operation,
		"userId":    c.Param("userId"),
		"status":    status,
		"error":     err.Error(),
		"requestId": c.GetString(middleware.RequestIDKey),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", fields)
	} else {
		logger.Warn("Request rejected", fields)
	}

	c.JSON(status, errorBody(c, errs.ErrorCode(err), message))
}

func errorBody(c *gin.Context, code int, message string) dto.ErrorResponse {
	return dto.ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: c.GetString(middleware.RequestIDKey),
	}
}

// badRequest writes a 400 for malformed input that never reached a use case
func badRequest(c *gin.Context, code int, message string) {
	c.JSON(http.StatusBadRequest, errorBody(c, code, message))
}

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/dto"
	timeprovider "github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/time"
	mockcore "github.com/amirhossein-jamali/credit-ledger/mocks/port/core"
)

func TestErrorHandler(t *testing.T) {
	t.Run("should turn a panic into a 500", func(t *testing.T) {
		// Setup
		gin.SetMode(gin.TestMode)
		logger := mockcore.NewMockLogger(t)
		logger.On("Error", "Panic recovered in API request", mock.MatchedBy(func(f map[string]any) bool {
			return f["panic"] == "boom" && f["path"] == "/explode"
		})).Once()

		router := gin.New()
		router.Use(RequestID(), ErrorHandler(logger))
		router.GET("/explode", func(*gin.Context) { panic("boom") })

		// Execute
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/explode", nil))

		// Assert
		require.Equal(t, http.StatusInternalServerError, w.Code)
		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, errs.CodeInternalServer, resp.Code)
	})
}

func TestLogger(t *testing.T) {
	t.Run("should log the route status and latency", func(t *testing.T) {
		// Setup
		gin.SetMode(gin.TestMode)
		clock := timeprovider.NewManualTimeProvider(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
		logger := mockcore.NewMockLogger(t)
		logger.On("Info", "Request processed", mock.MatchedBy(func(f map[string]any) bool {
			return f["route"] == "/users/:userId" &&
				f["status"] == http.StatusTeapot &&
				f["latencyMs"] == int64(25) &&
				f["requestId"] == "abc"
		})).Once()

		router := gin.New()
		router.Use(RequestID(), Logger(logger, clock))
		router.GET("/users/:userId", func(c *gin.Context) {
			clock.Advance(25 * time.Millisecond)
			c.Status(http.StatusTeapot)
		})

		req := httptest.NewRequest(http.MethodGet, "/users/u1", nil)
		req.Header.Set(RequestIDHeader, "abc")

		// Execute
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		// Assert
		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
	})
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "Success", statusText(http.StatusOK))
	assert.Equal(t, "Client Error", statusText(http.StatusNotFound))
	assert.Equal(t, "Server Error", statusText(http.StatusBadGateway))
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/dto"
)

// AdminIDHeader carries the operator identity on admin routes
const AdminIDHeader = "X-Admin-ID"

// AdminHandler handles operator credit operations
type AdminHandler struct {
	policy usecase.PolicyUseCase
	logger coreport.Logger
}

// NewAdminHandler creates a new admin handler instance
func NewAdminHandler(policy usecase.PolicyUseCase, logger coreport.Logger) *AdminHandler {
	return &AdminHandler{
		policy: policy,
		logger: logger,
	}
}

// GrantBonus handles POST /admin/users/:userId/credits/bonus
func (h *AdminHandler) GrantBonus(c *gin.Context) {
	userID := c.Param("userId")

	adminID := c.GetHeader(AdminIDHeader)
	if adminID == "" {
		c.JSON(http.StatusUnauthorized, errorBody(c, errs.CodeInvalidRequest, "Missing "+AdminIDHeader+" header"))
		return
	}

	var req dto.AdminBonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid bonus request", map[string]any{
			"userId":  userID,
			"adminId": adminID,
			"error":   err.Error(),
		})
		badRequest(c, errs.CodeInvalidRequest, "Invalid request format")
		return
	}

	result, err := h.policy.GrantAdminBonus(c.Request.Context(), adminID, userID, req.Amount, req.Description, req.ExpiresInDays)
	if err != nil {
		respondError(c, h.logger, "grant_admin_bonus", err)
		return
	}

	c.JSON(http.StatusCreated, dto.AdminBonusResponse{
		UserID:      userID,
		NewBalance:  result.NewBalance,
		Transaction: dto.NewTransactionResponse(result.Transaction),
	})
}

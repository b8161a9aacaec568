package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/api/dto"
)

// CreditHandler serves the read side of a user's credits
type CreditHandler struct {
	ledger usecase.LedgerUseCase
	report usecase.ReportUseCase
	logger coreport.Logger
}

// NewCreditHandler creates a new credit handler instance
func NewCreditHandler(
	ledger usecase.LedgerUseCase,
	report usecase.ReportUseCase,
	logger coreport.Logger,
) *CreditHandler {
	return &CreditHandler{
		ledger: ledger,
		report: report,
		logger: logger,
	}
}

// GetBalance handles GET /users/:userId/credits/balance
func (h *CreditHandler) GetBalance(c *gin.Context) {
	userID := c.Param("userId")

	breakdown, err := h.ledger.GetBalanceBreakdown(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "get_balance", err)
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		UserID:    userID,
		Total:     breakdown.Total,
		Free:      breakdown.Free,
		Purchased: breakdown.Purchased,
	})
}

// GetTransactions handles GET /users/:userId/credits/transactions?limit=&offset=&type=
func (h *CreditHandler) GetTransactions(c *gin.Context) {
	userID := c.Param("userId")

	opts, ok := parseListOptions(c)
	if !ok {
		return
	}

	page, err := h.report.GetCreditTransactions(c.Request.Context(), userID, opts)
	if err != nil {
		respondError(c, h.logger, "get_transactions", err)
		return
	}

	c.JSON(http.StatusOK, dto.TransactionPageResponse{
		UserID:       userID,
		Transactions: dto.NewTransactionResponses(page.Transactions),
		Total:        page.Total,
		HasMore:      page.HasMore,
	})
}

// GetExpiring handles GET /users/:userId/credits/expiring
func (h *CreditHandler) GetExpiring(c *gin.Context) {
	userID := c.Param("userId")

	expiring, err := h.ledger.GetExpiringCredits(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "get_expiring", err)
		return
	}

	buckets := make([]dto.ExpiryBucketResponse, 0, len(expiring.Buckets))
	for _, b := range expiring.Buckets {
		buckets = append(buckets, dto.ExpiryBucketResponse{
			Days:   int(b.Window.Hours() / 24),
			Amount: b.Amount,
		})
	}

	c.JSON(http.StatusOK, dto.ExpiringCreditsResponse{
		UserID:       userID,
		Buckets:      buckets,
		Transactions: dto.NewTransactionResponses(expiring.Transactions),
	})
}

// GetStats handles GET /users/:userId/credits/stats
func (h *CreditHandler) GetStats(c *gin.Context) {
	userID := c.Param("userId")

	stats, err := h.report.GetCreditStats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "get_stats", err)
		return
	}

	c.JSON(http.StatusOK, dto.StatsResponse{UserID: userID, CreditStats: *stats})
}

func parseListOptions(c *gin.Context) (entity.ListOptions, bool) {
	var opts entity.ListOptions

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, errs.CodeInvalidPagination, "Invalid limit")
			return opts, false
		}
		opts.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, errs.CodeInvalidPagination, "Invalid offset")
			return opts, false
		}
		opts.Offset = offset
	}
	if raw := c.Query("type"); raw != "" {
		txType, err := entity.ParseTransactionType(raw)
		if err != nil {
			badRequest(c, errs.CodeInvalidTransactionType, "Invalid transaction type")
			return opts, false
		}
		opts.Type = txType
	}

	return opts, true
}

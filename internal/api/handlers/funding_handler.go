package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/services"
	"kliklens/studioops/internal/utils"
)

// FundingHandler handles REST requests for funding sources.
type FundingHandler struct {
	fundingService services.IFundingService
	ledgerService  services.ILedgerService
}

// NewFundingHandler creates a new FundingHandler.
func NewFundingHandler(fundingService services.IFundingService, ledgerService services.ILedgerService) *FundingHandler {
	return &FundingHandler{
		fundingService: fundingService,
		ledgerService:  ledgerService,
	}
}

type createFundingRequest struct {
	Label          string             `json:"label" binding:"required"`
	Kind           models.FundingKind `json:"kind" binding:"required"`
	OpeningBalance int64              `json:"opening_balance"`
}

// CreateFundingSource handles POST /v1/funding
func (h *FundingHandler) CreateFundingSource(c *gin.Context) {
	var req createFundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	source, err := h.fundingService.Create(c.Request.Context(), req.Label, req.Kind, req.OpeningBalance)
	if err != nil {
		respondServiceError(c, err, "Failed to create funding source")
		return
	}
	c.JSON(http.StatusCreated, source)
}

// ListFundingSources handles GET /v1/funding
func (h *FundingHandler) ListFundingSources(c *gin.Context) {
	sources, err := h.fundingService.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to list funding sources")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sources})
}

// GetFundingSource handles GET /v1/funding/:id
func (h *FundingHandler) GetFundingSource(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid funding source ID format"})
		return
	}

	source, err := h.fundingService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve funding source")
		return
	}
	c.JSON(http.StatusOK, source)
}

// GetFundingTransactions handles GET /v1/funding/:id/transactions
func (h *FundingHandler) GetFundingTransactions(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid funding source ID format"})
		return
	}

	txs, err := h.ledgerService.ListBySource(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to list transactions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": txs})
}

// GetFundingReconciliation handles GET /v1/funding/:id/reconciliation. It
// reports the stored balance next to the transaction sum so drift is visible.
func (h *FundingHandler) GetFundingReconciliation(c *gin.Context) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid funding source ID format"})
		return
	}
	ctx := c.Request.Context()

	source, err := h.fundingService.FindByID(ctx, id)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve funding source")
		return
	}
	sum, err := h.ledgerService.SumBySource(ctx, id)
	if err != nil {
		respondServiceError(c, err, "Failed to sum transactions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":         source.Balance,
		"transaction_sum": sum,
	})
}

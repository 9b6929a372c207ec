package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"kliklens/studioops/internal/config"
	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/services"
	"kliklens/studioops/internal/storage"
	"kliklens/studioops/internal/tasks"
	"kliklens/studioops/internal/utils"
)

// ProjectHandler handles REST requests for projects: the aggregate itself,
// its cost line items, settlement, corrections, team and payments.
type ProjectHandler struct {
	cfg               *config.Config
	projectService    services.IProjectService
	costService       services.ICostService
	settlementService services.ISettlementService
	recalcService     services.IRecalcService
	teamPayService    services.ITeamPaymentService
	ledgerService     services.ILedgerService
	clientService     services.IClientService
	evidenceStorage   storage.IEvidenceStorage
	taskClient        IAsynqClient
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(
	cfg *config.Config,
	projectService services.IProjectService,
	costService services.ICostService,
	settlementService services.ISettlementService,
	recalcService services.IRecalcService,
	teamPayService services.ITeamPaymentService,
	ledgerService services.ILedgerService,
	clientService services.IClientService,
	evidenceStorage storage.IEvidenceStorage,
	taskClient IAsynqClient,
) *ProjectHandler {
	return &ProjectHandler{
		cfg:               cfg,
		projectService:    projectService,
		costService:       costService,
		settlementService: settlementService,
		recalcService:     recalcService,
		teamPayService:    teamPayService,
		ledgerService:     ledgerService,
		clientService:     clientService,
		evidenceStorage:   evidenceStorage,
		taskClient:        taskClient,
	}
}

func parseIDParam(c *gin.Context, name string) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param(name))
	if err != nil || id == (utils.SixID{}) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " format"})
		return utils.SixID{}, false
	}
	return id, true
}

type createProjectRequest struct {
	Name         string                  `json:"name" binding:"required"`
	ClientID     utils.SixID             `json:"client_id" binding:"required"`
	PackageID    *utils.SixID            `json:"package_id"`
	PackagePrice int64                   `json:"package_price"`
	AddOns       []models.AddOn          `json:"add_ons"`
	Discount     int64                   `json:"discount"`
	EventDate    time.Time               `json:"event_date"`
	Team         []models.TeamAssignment `json:"team"`
	Status       string                  `json:"status"`
}

// CreateProject handles POST /v1/project
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), services.CreateProjectRequest{
		Name:         req.Name,
		ClientID:     req.ClientID,
		PackageID:    req.PackageID,
		PackagePrice: req.PackagePrice,
		AddOns:       req.AddOns,
		Discount:     req.Discount,
		EventDate:    req.EventDate,
		Team:         req.Team,
		Status:       req.Status,
	})
	if err != nil {
		respondServiceError(c, err, "Failed to create project")
		return
	}
	c.JSON(http.StatusCreated, project)
}

// ListProjects handles GET /v1/project
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	var statusPtr *string
	if status := c.Query("status"); status != "" {
		statusPtr = &status
	}
	projects, err := h.projectService.List(c.Request.Context(), statusPtr, 0)
	if err != nil {
		respondServiceError(c, err, "Failed to list projects")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": projects})
}

// GetProject handles GET /v1/project/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	project, err := h.projectService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve project")
		return
	}
	c.JSON(http.StatusOK, project)
}

// DeleteProject handles DELETE /v1/project/:id
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.projectService.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "Failed to delete project")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetProjectTransactions handles GET /v1/project/:id/transactions
func (h *ProjectHandler) GetProjectTransactions(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	txs, err := h.ledgerService.ListByProject(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to list transactions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": txs})
}

type costItemRequest struct {
	Label    string              `json:"label" binding:"required"`
	Category models.CostCategory `json:"category" binding:"required"`
	Amount   int64               `json:"amount" binding:"required"`
}

// AddCostItem handles POST /v1/project/:id/cost
func (h *ProjectHandler) AddCostItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req costItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	item, err := h.costService.AddItem(c.Request.Context(), id, req.Label, req.Category, req.Amount)
	if err != nil {
		respondServiceError(c, err, "Failed to add cost item")
		return
	}
	c.JSON(http.StatusCreated, item)
}

type editCostItemRequest struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount" binding:"required"`
}

// EditCostItem handles PUT /v1/project/:id/cost/:item_id
func (h *ProjectHandler) EditCostItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "item_id")
	if !ok {
		return
	}
	var req editCostItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	item, err := h.costService.EditItem(c.Request.Context(), id, itemID, req.Label, req.Amount)
	if err != nil {
		respondServiceError(c, err, "Failed to edit cost item")
		return
	}
	c.JSON(http.StatusOK, item)
}

// RemoveCostItem handles DELETE /v1/project/:id/cost/:item_id
func (h *ProjectHandler) RemoveCostItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "item_id")
	if !ok {
		return
	}
	if err := h.costService.RemoveItem(c.Request.Context(), id, itemID); err != nil {
		respondServiceError(c, err, "Failed to remove cost item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type settleRequest struct {
	FundingSourceID utils.SixID `json:"funding_source_id" binding:"required"`
}

// SettleCostItem handles POST /v1/project/:id/cost/:item_id/settle
func (h *ProjectHandler) SettleCostItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "item_id")
	if !ok {
		return
	}
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	tx, err := h.settlementService.Settle(c.Request.Context(), id, itemID, req.FundingSourceID)
	if err != nil {
		respondServiceError(c, err, "Failed to settle cost item")
		return
	}
	c.JSON(http.StatusOK, tx)
}

type settleBatchRequest struct {
	ItemIDs         []utils.SixID `json:"item_ids" binding:"required"`
	FundingSourceID utils.SixID   `json:"funding_source_id" binding:"required"`
}

// SettleCostBatch handles POST /v1/project/:id/settle-batch
func (h *ProjectHandler) SettleCostBatch(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req settleBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	txs, err := h.settlementService.SettleBatch(c.Request.Context(), id, req.ItemIDs, req.FundingSourceID)
	if err != nil {
		respondServiceError(c, err, "Failed to settle cost batch")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": txs})
}

type correctItemRequest struct {
	Amount int64 `json:"amount"`
}

// CorrectSettledItem handles POST /v1/project/:id/cost/:item_id/correct
func (h *ProjectHandler) CorrectSettledItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "item_id")
	if !ok {
		return
	}
	var req correctItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.recalcService.CorrectSettledItem(c.Request.Context(), id, itemID, req.Amount); err != nil {
		respondServiceError(c, err, "Failed to correct settled item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type addSettledCostRequest struct {
	Label           string              `json:"label" binding:"required"`
	Category        models.CostCategory `json:"category" binding:"required"`
	Amount          int64               `json:"amount" binding:"required"`
	FundingSourceID utils.SixID         `json:"funding_source_id" binding:"required"`
}

// AddSettledCost handles POST /v1/project/:id/settled-cost
func (h *ProjectHandler) AddSettledCost(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req addSettledCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	item, err := h.recalcService.AddSettledCost(c.Request.Context(), id, req.Category, req.Label, req.Amount, req.FundingSourceID)
	if err != nil {
		respondServiceError(c, err, "Failed to add settled cost")
		return
	}
	c.JSON(http.StatusCreated, item)
}

// SyncProjectTotals handles POST /v1/project/:id/sync-totals
func (h *ProjectHandler) SyncProjectTotals(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	project, err := h.recalcService.SyncTotals(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to sync project totals")
		return
	}
	c.JSON(http.StatusOK, project)
}

type updateTeamRequest struct {
	Team []models.TeamAssignment `json:"team" binding:"required"`
}

// UpdateProjectTeam handles PUT /v1/project/:id/team
func (h *ProjectHandler) UpdateProjectTeam(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req updateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	project, err := h.projectService.UpdateTeam(c.Request.Context(), id, req.Team)
	if err != nil {
		respondServiceError(c, err, "Failed to update project team")
		return
	}
	c.JSON(http.StatusOK, project)
}

// GetTeamPayments handles GET /v1/project/:id/team-payments
func (h *ProjectHandler) GetTeamPayments(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	records, err := h.teamPayService.ListByProject(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to list team payments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

// SettleTeamPayment handles POST /v1/team-payment/:id/settle
func (h *ProjectHandler) SettleTeamPayment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	tx, err := h.settlementService.SettleTeamPayment(c.Request.Context(), id, req.FundingSourceID)
	if err != nil {
		respondServiceError(c, err, "Failed to settle team payment")
		return
	}
	c.JSON(http.StatusOK, tx)
}

type recordPaymentRequest struct {
	Amount          int64       `json:"amount" binding:"required"`
	FundingSourceID utils.SixID `json:"funding_source_id" binding:"required"`
	EvidenceURL     string      `json:"evidence_url"`
}

// RecordClientPayment handles POST /v1/project/:id/payment
func (h *ProjectHandler) RecordClientPayment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	ctx := c.Request.Context()

	tx, err := h.projectService.RecordClientPayment(ctx, id, req.Amount, req.FundingSourceID, req.EvidenceURL)
	if err != nil {
		respondServiceError(c, err, "Failed to record client payment")
		return
	}

	// Receipt is best effort; the payment is already booked.
	h.enqueuePaymentReceipt(c, id, req.Amount)

	c.JSON(http.StatusCreated, tx)
}

func (h *ProjectHandler) enqueuePaymentReceipt(c *gin.Context, projectID utils.SixID, amount int64) {
	ctx := c.Request.Context()
	project, err := h.projectService.FindByID(ctx, projectID)
	if err != nil {
		return
	}
	client, err := h.clientService.FindByID(ctx, project.ClientID)
	if err != nil || client.Email == "" {
		return
	}
	payload := tasks.MessageTaskPayload{
		To:         client.Email,
		TemplateID: "payment_receipt",
		Data: map[string]interface{}{
			"client_name":  client.Name,
			"project_name": project.Name,
			"amount":       amount,
		},
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return
	}
	task := asynq.NewTask(tasks.TypeMessageDeliver, payloadBytes)
	if _, err := h.taskClient.EnqueueContext(ctx, task); err != nil {
		_ = c.Error(err)
	}
}

type evidenceURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// GetEvidenceUploadURL handles POST /v1/project/:id/evidence-url
func (h *ProjectHandler) GetEvidenceUploadURL(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req evidenceURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	url, objectKey, err := h.evidenceStorage.GeneratePresignedPutURL(
		c.Request.Context(), id.String(), time.Now().UTC().Format("20060102"), req.Filename, req.ContentType)
	if err != nil {
		respondServiceError(c, err, "Failed to generate upload URL")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"upload_url": url,
		"object_key": objectKey,
	})
}

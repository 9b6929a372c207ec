package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"kliklens/studioops/internal/services"
	"kliklens/studioops/internal/tasks"
)

// WorkflowHandler handles project status moves, sub-status checklists and
// client confirmations.
type WorkflowHandler struct {
	workflowService services.IWorkflowService
	projectService  services.IProjectService
	clientService   services.IClientService
	taskClient      IAsynqClient
}

// NewWorkflowHandler creates a new WorkflowHandler.
func NewWorkflowHandler(
	workflowService services.IWorkflowService,
	projectService services.IProjectService,
	clientService services.IClientService,
	taskClient IAsynqClient,
) *WorkflowHandler {
	return &WorkflowHandler{
		workflowService: workflowService,
		projectService:  projectService,
		clientService:   clientService,
		taskClient:      taskClient,
	}
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetStatus handles PUT /v1/project/:id/status
func (h *WorkflowHandler) SetStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	project, err := h.workflowService.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondServiceError(c, err, "Failed to set project status")
		return
	}
	c.JSON(http.StatusOK, project)
}

type toggleSubStatusRequest struct {
	SubStatus string `json:"sub_status" binding:"required"`
	Active    *bool  `json:"active" binding:"required"`
}

// ToggleSubStatus handles PUT /v1/project/:id/sub-status
func (h *WorkflowHandler) ToggleSubStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req toggleSubStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	project, err := h.workflowService.ToggleSubStatus(c.Request.Context(), id, req.SubStatus, *req.Active)
	if err != nil {
		respondServiceError(c, err, "Failed to toggle sub-status")
		return
	}
	c.JSON(http.StatusOK, project)
}

type requestConfirmationRequest struct {
	SubStatus string `json:"sub_status" binding:"required"`
	Recipient string `json:"recipient"`
}

// RequestConfirmation handles POST /v1/project/:id/request-confirmation.
// It marks the sub-status as awaiting client confirmation and enqueues the
// outbound message.
func (h *WorkflowHandler) RequestConfirmation(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req requestConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	ctx := c.Request.Context()

	recipient := req.Recipient
	if recipient == "" {
		// Default to the project client's email.
		if project, pErr := h.projectService.FindByID(ctx, id); pErr == nil {
			if client, cErr := h.clientService.FindByID(ctx, project.ClientID); cErr == nil {
				recipient = client.Email
			}
		}
	}

	project, err := h.workflowService.RequestConfirmation(ctx, id, req.SubStatus, recipient)
	if err != nil {
		respondServiceError(c, err, "Failed to request confirmation")
		return
	}

	if recipient != "" {
		payload := tasks.MessageTaskPayload{
			To:         recipient,
			TemplateID: "confirmation_request",
			Data: map[string]interface{}{
				"project_name": project.Name,
				"sub_status":   req.SubStatus,
			},
		}
		if payloadBytes, mErr := json.Marshal(payload); mErr == nil {
			task := asynq.NewTask(tasks.TypeMessageDeliver, payloadBytes)
			if _, qErr := h.taskClient.EnqueueContext(ctx, task); qErr != nil {
				_ = c.Error(qErr)
			}
		}
	}

	c.JSON(http.StatusOK, project)
}

type clientConfirmationRequest struct {
	SubStatus  string `json:"sub_status" binding:"required"`
	ClientNote string `json:"client_note"`
}

// RecordClientConfirmation handles POST /v1/project/:id/confirm
func (h *WorkflowHandler) RecordClientConfirmation(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req clientConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	project, err := h.workflowService.RecordClientConfirmation(c.Request.Context(), id, req.SubStatus, req.ClientNote)
	if err != nil {
		respondServiceError(c, err, "Failed to record client confirmation")
		return
	}
	c.JSON(http.StatusOK, project)
}

// ListPendingFollowUps handles GET /v1/workflow/follow-ups. It returns
// confirmation requests older than the given max age in hours (default 24).
func (h *WorkflowHandler) ListPendingFollowUps(c *gin.Context) {
	maxAge := 24 * time.Hour
	if raw := c.Query("hours"); raw != "" {
		if hours, err := strconv.Atoi(raw); err == nil && hours > 0 {
			maxAge = time.Duration(hours) * time.Hour
		}
	}

	items, err := h.workflowService.PendingFollowUps(c.Request.Context(), maxAge)
	if err != nil {
		respondServiceError(c, err, "Failed to list pending follow-ups")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

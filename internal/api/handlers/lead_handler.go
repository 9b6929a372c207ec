package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/services"
	"kliklens/studioops/internal/utils"
)

// LeadHandler handles REST requests for leads and lead conversion.
type LeadHandler struct {
	leadService       services.ILeadService
	conversionService services.IConversionService
}

// NewLeadHandler creates a new LeadHandler.
func NewLeadHandler(leadService services.ILeadService, conversionService services.IConversionService) *LeadHandler {
	return &LeadHandler{
		leadService:       leadService,
		conversionService: conversionService,
	}
}

type createLeadRequest struct {
	Name    string `json:"name" binding:"required"`
	Channel string `json:"channel" binding:"required"`
	Phone   string `json:"phone"`
	Notes   string `json:"notes"`
}

// CreateLead handles POST /v1/lead
func (h *LeadHandler) CreateLead(c *gin.Context) {
	var req createLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	lead, err := h.leadService.Create(c.Request.Context(), req.Name, req.Channel, req.Phone, req.Notes)
	if err != nil {
		respondServiceError(c, err, "Failed to create lead")
		return
	}
	c.JSON(http.StatusCreated, lead)
}

// ListLeads handles GET /v1/lead
func (h *LeadHandler) ListLeads(c *gin.Context) {
	var statusPtr *models.LeadStatus
	if raw := c.Query("status"); raw != "" {
		status := models.LeadStatus(raw)
		statusPtr = &status
	}
	leads, err := h.leadService.List(c.Request.Context(), statusPtr)
	if err != nil {
		respondServiceError(c, err, "Failed to list leads")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": leads})
}

// GetLead handles GET /v1/lead/:id
func (h *LeadHandler) GetLead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	lead, err := h.leadService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve lead")
		return
	}
	c.JSON(http.StatusOK, lead)
}

type transitionLeadRequest struct {
	Status models.LeadStatus `json:"status" binding:"required"`
}

// TransitionLead handles PUT /v1/lead/:id/status
func (h *LeadHandler) TransitionLead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req transitionLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	lead, err := h.leadService.Transition(c.Request.Context(), id, req.Status)
	if err != nil {
		respondServiceError(c, err, "Failed to transition lead")
		return
	}
	c.JSON(http.StatusOK, lead)
}

type updateLeadNotesRequest struct {
	Notes string `json:"notes"`
}

// UpdateLeadNotes handles PUT /v1/lead/:id/notes
func (h *LeadHandler) UpdateLeadNotes(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req updateLeadNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.leadService.UpdateNotes(c.Request.Context(), id, req.Notes); err != nil {
		respondServiceError(c, err, "Failed to update lead notes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteLead handles DELETE /v1/lead/:id
func (h *LeadHandler) DeleteLead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.leadService.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "Failed to delete lead")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type convertLeadRequest struct {
	ProjectName     string                  `json:"project_name" binding:"required"`
	PackageID       utils.SixID             `json:"package_id" binding:"required"`
	AddOns          []models.AddOn          `json:"add_ons"`
	PromoCode       string                  `json:"promo_code"`
	EventDate       time.Time               `json:"event_date"`
	Team            []models.TeamAssignment `json:"team"`
	ClientEmail     string                  `json:"client_email"`
	ClientAddress   string                  `json:"client_address"`
	DepositAmount   int64                   `json:"deposit_amount"`
	DepositSourceID *utils.SixID            `json:"deposit_source_id"`
}

// ConvertLead handles POST /v1/lead/:id/convert
func (h *LeadHandler) ConvertLead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req convertLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := h.conversionService.Convert(c.Request.Context(), services.ConvertLeadRequest{
		LeadID:          id,
		ProjectName:     req.ProjectName,
		PackageID:       req.PackageID,
		AddOns:          req.AddOns,
		PromoCode:       req.PromoCode,
		EventDate:       req.EventDate,
		Team:            req.Team,
		ClientEmail:     req.ClientEmail,
		ClientAddress:   req.ClientAddress,
		DepositAmount:   req.DepositAmount,
		DepositSourceID: req.DepositSourceID,
	})
	if err != nil {
		// The conversion may stand even though the deposit write failed; hand
		// the created records back so staff can book the payment manually.
		if errors.Is(err, services.ErrDepositFailed) && result != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "result": result})
			return
		}
		respondServiceError(c, err, "Failed to convert lead")
		return
	}
	c.JSON(http.StatusCreated, result)
}

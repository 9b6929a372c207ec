package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/services"
)

// SettingsHandler handles tenant settings, the workflow configuration and
// message templates.
type SettingsHandler struct {
	settingsService services.ISettingsService
	templateService services.ITemplateService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settingsService services.ISettingsService, templateService services.ITemplateService) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		templateService: templateService,
	}
}

// GetPublicSettings handles GET /v1/settings (public)
func (h *SettingsHandler) GetPublicSettings(c *gin.Context) {
	settings, err := h.settingsService.GetAllPublic(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve settings")
		return
	}
	c.JSON(http.StatusOK, settings)
}

type setSettingRequest struct {
	Value  interface{} `json:"value" binding:"required"`
	Public bool        `json:"public"`
}

// SetSetting handles PUT /v1/settings/:key (admin)
func (h *SettingsHandler) SetSetting(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Setting key is required"})
		return
	}
	var req setSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.settingsService.SetValue(c.Request.Context(), key, req.Value, req.Public); err != nil {
		respondServiceError(c, err, "Failed to set setting")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetWorkflowConfig handles GET /v1/workflow-config
func (h *SettingsHandler) GetWorkflowConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.settingsService.GetWorkflowConfig(c.Request.Context()))
}

// SetWorkflowConfig handles PUT /v1/workflow-config (admin)
func (h *SettingsHandler) SetWorkflowConfig(c *gin.Context) {
	var cfg models.WorkflowConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.settingsService.SetWorkflowConfig(c.Request.Context(), cfg); err != nil {
		respondServiceError(c, err, "Failed to set workflow configuration")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetTemplate handles GET /v1/template/:template_id/:locale (admin)
func (h *SettingsHandler) GetTemplate(c *gin.Context) {
	tmpl, err := h.templateService.GetTemplate(c.Request.Context(), c.Param("template_id"), c.Param("locale"))
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve message template")
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// SaveTemplate handles PUT /v1/template (admin)
func (h *SettingsHandler) SaveTemplate(c *gin.Context) {
	var tmpl models.MessageTemplate
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if tmpl.TemplateID == "" || tmpl.Locale == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template_id and locale are required"})
		return
	}

	if err := h.templateService.SaveTemplate(c.Request.Context(), &tmpl); err != nil {
		respondServiceError(c, err, "Failed to save message template")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteTemplate handles DELETE /v1/template/:template_id/:locale (admin)
func (h *SettingsHandler) DeleteTemplate(c *gin.Context) {
	if err := h.templateService.DeleteTemplate(c.Request.Context(), c.Param("template_id"), c.Param("locale")); err != nil {
		respondServiceError(c, err, "Failed to delete message template")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

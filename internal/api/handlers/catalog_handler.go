package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/services"
	"kliklens/studioops/internal/utils"
)

// CatalogHandler handles the supporting catalogs: packages, team members,
// promo codes and clients.
type CatalogHandler struct {
	packageService services.IPackageService
	memberService  services.IMemberService
	promoService   services.IPromoService
	clientService  services.IClientService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(
	packageService services.IPackageService,
	memberService services.IMemberService,
	promoService services.IPromoService,
	clientService services.IClientService,
) *CatalogHandler {
	return &CatalogHandler{
		packageService: packageService,
		memberService:  memberService,
		promoService:   promoService,
		clientService:  clientService,
	}
}

// --- Packages ---

type packageRequest struct {
	Name          string                `json:"name" binding:"required"`
	Price         int64                 `json:"price" binding:"required"`
	Description   string                `json:"description"`
	PhysicalItems []models.PhysicalItem `json:"physical_items"`
	Active        *bool                 `json:"active"`
}

// CreatePackage handles POST /v1/package
func (h *CatalogHandler) CreatePackage(c *gin.Context) {
	var req packageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	pkg, err := h.packageService.Create(c.Request.Context(), req.Name, req.Price, req.Description, req.PhysicalItems)
	if err != nil {
		respondServiceError(c, err, "Failed to create package")
		return
	}
	c.JSON(http.StatusCreated, pkg)
}

// ListPackages handles GET /v1/package
func (h *CatalogHandler) ListPackages(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	pkgs, err := h.packageService.List(c.Request.Context(), activeOnly)
	if err != nil {
		respondServiceError(c, err, "Failed to list packages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pkgs})
}

// GetPackage handles GET /v1/package/:id
func (h *CatalogHandler) GetPackage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	pkg, err := h.packageService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve package")
		return
	}
	c.JSON(http.StatusOK, pkg)
}

// UpdatePackage handles PUT /v1/package/:id
func (h *CatalogHandler) UpdatePackage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req packageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	pkg, err := h.packageService.Update(c.Request.Context(), id, req.Name, req.Price, req.Description, req.PhysicalItems, active)
	if err != nil {
		respondServiceError(c, err, "Failed to update package")
		return
	}
	c.JSON(http.StatusOK, pkg)
}

// DeletePackage handles DELETE /v1/package/:id
func (h *CatalogHandler) DeletePackage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.packageService.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "Failed to delete package")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// --- Team members ---

type memberRequest struct {
	Name       string `json:"name" binding:"required"`
	Role       string `json:"role" binding:"required"`
	Phone      string `json:"phone"`
	DefaultFee int64  `json:"default_fee"`
	Active     *bool  `json:"active"`
}

// CreateMember handles POST /v1/member
func (h *CatalogHandler) CreateMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	member, err := h.memberService.Create(c.Request.Context(), req.Name, req.Role, req.Phone, req.DefaultFee)
	if err != nil {
		respondServiceError(c, err, "Failed to create team member")
		return
	}
	c.JSON(http.StatusCreated, member)
}

// ListMembers handles GET /v1/member
func (h *CatalogHandler) ListMembers(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	members, err := h.memberService.List(c.Request.Context(), activeOnly)
	if err != nil {
		respondServiceError(c, err, "Failed to list team members")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": members})
}

// GetMember handles GET /v1/member/:id
func (h *CatalogHandler) GetMember(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	member, err := h.memberService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve team member")
		return
	}
	c.JSON(http.StatusOK, member)
}

// UpdateMember handles PUT /v1/member/:id
func (h *CatalogHandler) UpdateMember(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	member, err := h.memberService.Update(c.Request.Context(), id, req.Name, req.Role, req.Phone, req.DefaultFee, active)
	if err != nil {
		respondServiceError(c, err, "Failed to update team member")
		return
	}
	c.JSON(http.StatusOK, member)
}

// DeleteMember handles DELETE /v1/member/:id
func (h *CatalogHandler) DeleteMember(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.memberService.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "Failed to delete team member")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// --- Promo codes ---

type promoRequest struct {
	Code          string              `json:"code" binding:"required"`
	DiscountType  models.DiscountType `json:"discount_type" binding:"required"`
	DiscountValue int64               `json:"discount_value" binding:"required"`
	MaxUsage      int                 `json:"max_usage"`
	ExpiresAt     *time.Time          `json:"expires_at"`
}

// CreatePromo handles POST /v1/promo
func (h *CatalogHandler) CreatePromo(c *gin.Context) {
	var req promoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	promo, err := h.promoService.Create(c.Request.Context(), req.Code, req.DiscountType, req.DiscountValue, req.MaxUsage, req.ExpiresAt)
	if err != nil {
		respondServiceError(c, err, "Failed to create promo code")
		return
	}
	c.JSON(http.StatusCreated, promo)
}

// ListPromos handles GET /v1/promo
func (h *CatalogHandler) ListPromos(c *gin.Context) {
	promos, err := h.promoService.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to list promo codes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": promos})
}

// ValidatePromo handles GET /v1/promo/validate/:code (public)
func (h *CatalogHandler) ValidatePromo(c *gin.Context) {
	promo, err := h.promoService.Validate(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondServiceError(c, err, "Failed to validate promo code")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":           promo.Code,
		"discount_type":  promo.DiscountType,
		"discount_value": promo.DiscountValue,
	})
}

// DeactivatePromo handles POST /v1/promo/:id/deactivate
func (h *CatalogHandler) DeactivatePromo(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.promoService.Deactivate(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "Failed to deactivate promo code")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// --- Clients ---

type clientRequest struct {
	Name    string       `json:"name" binding:"required"`
	Phone   string       `json:"phone"`
	Email   string       `json:"email"`
	Address string       `json:"address"`
	LeadID  *utils.SixID `json:"lead_id"`
}

// CreateClient handles POST /v1/client
func (h *CatalogHandler) CreateClient(c *gin.Context) {
	var req clientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	client, err := h.clientService.Create(c.Request.Context(), req.Name, req.Phone, req.Email, req.Address, req.LeadID)
	if err != nil {
		respondServiceError(c, err, "Failed to create client")
		return
	}
	c.JSON(http.StatusCreated, client)
}

// ListClients handles GET /v1/client
func (h *CatalogHandler) ListClients(c *gin.Context) {
	clients, err := h.clientService.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to list clients")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": clients})
}

// GetClient handles GET /v1/client/:id
func (h *CatalogHandler) GetClient(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	client, err := h.clientService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve client")
		return
	}
	c.JSON(http.StatusOK, client)
}

// UpdateClient handles PUT /v1/client/:id
func (h *CatalogHandler) UpdateClient(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req clientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	client, err := h.clientService.Update(c.Request.Context(), id, req.Name, req.Phone, req.Email, req.Address)
	if err != nil {
		respondServiceError(c, err, "Failed to update client")
		return
	}
	c.JSON(http.StatusOK, client)
}

// DeleteClient handles DELETE /v1/client/:id
func (h *CatalogHandler) DeleteClient(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.clientService.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "Failed to delete client")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

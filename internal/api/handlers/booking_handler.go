package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"kliklens/studioops/internal/services"
	"kliklens/studioops/internal/tasks"
	"kliklens/studioops/internal/utils"
)

// BookingHandler handles the public booking form and the staff-side intake
// queue.
type BookingHandler struct {
	bookingService services.IBookingService
	taskClient     IAsynqClient
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService services.IBookingService, taskClient IAsynqClient) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		taskClient:     taskClient,
	}
}

type submitBookingRequest struct {
	Name      string      `json:"name" binding:"required"`
	Phone     string      `json:"phone" binding:"required"`
	Email     string      `json:"email"`
	PackageID utils.SixID `json:"package_id" binding:"required"`
	EventDate time.Time   `json:"event_date" binding:"required"`
	Notes     string      `json:"notes"`
}

// SubmitBooking handles POST /v1/booking (public)
func (h *BookingHandler) SubmitBooking(c *gin.Context) {
	var req submitBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	ctx := c.Request.Context()

	project, err := h.bookingService.Submit(ctx, services.BookingRequest{
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		PackageID: req.PackageID,
		EventDate: req.EventDate,
		Notes:     req.Notes,
	})
	if err != nil {
		respondServiceError(c, err, "Failed to submit booking")
		return
	}

	if req.Email != "" {
		payload := tasks.MessageTaskPayload{
			To:         req.Email,
			TemplateID: "booking_ack",
			Data: map[string]interface{}{
				"client_name":  req.Name,
				"project_name": project.Name,
			},
		}
		if payloadBytes, mErr := json.Marshal(payload); mErr == nil {
			task := asynq.NewTask(tasks.TypeMessageDeliver, payloadBytes)
			if _, qErr := h.taskClient.EnqueueContext(ctx, task); qErr != nil {
				_ = c.Error(qErr)
			}
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":     project.ID,
		"status": project.BookingStatus,
	})
}

// ListPendingBookings handles GET /v1/booking/pending
func (h *BookingHandler) ListPendingBookings(c *gin.Context) {
	projects, err := h.bookingService.ListPending(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to list pending bookings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": projects})
}

// ConfirmBooking handles POST /v1/booking/:id/confirm
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	project, err := h.bookingService.Confirm(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to confirm booking")
		return
	}
	c.JSON(http.StatusOK, project)
}

// RejectBooking handles POST /v1/booking/:id/reject
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	project, err := h.bookingService.Reject(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to reject booking")
		return
	}
	c.JSON(http.StatusOK, project)
}

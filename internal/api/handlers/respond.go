package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"

	"kliklens/studioops/internal/services"
)

// IAsynqClient abstracts task enqueuing so handlers can be tested with a
// mock instead of the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// respondServiceError maps service sentinel errors onto HTTP statuses.
// Anything unclassified becomes a 500 with the fallback message.
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrValidationFailed),
		errors.Is(err, services.ErrPackageRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrAlreadySettled),
		errors.Is(err, services.ErrItemLocked),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrInvalidPromo),
		errors.Is(err, services.ErrDepositFailed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

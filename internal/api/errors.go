package api

import (
	"errors"
	"net/http"

	"pricing-service/internal/payments"
	"pricing-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errorStatus = []struct {
	err     error
	status  int
	message string
}{
	{service.ErrNotFound, http.StatusNotFound, "Not found"},
	{service.ErrInvalidInput, http.StatusBadRequest, "Invalid request"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{service.ErrInvalidToken, http.StatusBadRequest, "Invalid or expired token"},
	{service.ErrUserExists, http.StatusConflict, "User already exists"},
	{service.ErrInvalidPlan, http.StatusBadRequest, "Invalid plan"},
	{service.ErrNoSubscription, http.StatusBadRequest, "No active subscription"},
	{service.ErrStoreValidation, http.StatusBadRequest, "Failed to connect store"},
	{service.ErrCannotPrice, http.StatusUnprocessableEntity, "Product cannot be optimized with current settings"},
	{service.ErrOptimizationInProgress, http.StatusConflict, "Optimization already running"},
	{service.ErrLeaseLost, http.StatusConflict, "Optimization was taken over by another run"},
	{service.ErrInvalidSignature, http.StatusBadRequest, "Invalid signature"},
	{payments.ErrPlanNotConfigured, http.StatusServiceUnavailable, "Plan is not available"},
}

// respondError maps service errors to a status and a JSON error body.
// Unmapped errors are logged and reported as 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{
				"error":   e.message,
				"details": err.Error(),
			})
			return
		}
	}

	h.logger.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Internal server error",
		"details": err.Error(),
	})
}

func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

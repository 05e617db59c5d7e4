package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type updateSubscriptionRequest struct {
	Plan   string `json:"plan"`
	Status string `json:"status"`
}

func (h *Handler) adminStats(c *gin.Context) {
	stats, err := h.Admin.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) adminListUsers(c *gin.Context) {
	res, err := h.Admin.ListUsers(c.Request.Context(), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users":      res.Users,
		"pagination": pagination(res.Page, res.Limit, res.Total),
	})
}

func (h *Handler) adminUpdateSubscription(c *gin.Context) {
	var req updateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Plan == "" || req.Status == "" {
		badRequest(c, "Plan and status are required", err)
		return
	}

	user, err := h.Admin.UpdateUserSubscription(c.Request.Context(), c.Param("userId"), req.Plan, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User subscription updated",
		"user":    user,
	})
}

func (h *Handler) adminAnalytics(c *gin.Context) {
	analytics, err := h.Admin.Analytics(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type subscribeRequest struct {
	PlanID          string `json:"planId"`
	PaymentMethodID string `json:"paymentMethodId"`
}

type paymentIntentRequest struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"paymentMethod"`
}

func (h *Handler) listPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": h.Billing.Plans()})
}

func (h *Handler) paymentMethods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"methods": h.Billing.PaymentMethods(c.Query("country"))})
}

func (h *Handler) subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlanID == "" {
		badRequest(c, "Plan is required", err)
		return
	}

	sub, err := h.Billing.Subscribe(c.Request.Context(), userID(c), req.PlanID, req.PaymentMethodID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Subscription created successfully",
		"subscription": sub,
	})
}

func (h *Handler) getSubscription(c *gin.Context) {
	sub, err := h.Billing.GetSubscription(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) cancelSubscription(c *gin.Context) {
	if err := h.Billing.CancelSubscription(c.Request.Context(), userID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subscription will be canceled at the end of the billing period"})
}

func (h *Handler) createPaymentIntent(c *gin.Context) {
	var req paymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	secret, err := h.Billing.CreatePaymentIntent(c.Request.Context(), userID(c), req.Amount, req.Currency, req.PaymentMethod)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clientSecret": secret})
}

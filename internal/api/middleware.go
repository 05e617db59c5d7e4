package api

import (
	"net/http"
	"strconv"
	"strings"

	"pricing-service/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ctxUserID = "userID"
	ctxEmail  = "email"
)

// authMiddleware requires a valid bearer token
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
			return
		}

		claims, err := h.Auth.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxEmail, claims.Email)
		c.Next()
	}
}

// adminMiddleware requires the authenticated user to have the admin role
func (h *Handler) adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.Auth.Me(c.Request.Context(), userID(c))
		if err != nil || user.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// rateLimitMiddleware applies a fixed window per client IP. Requests pass
// when Redis is unavailable.
func (h *Handler) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.Limiter == nil || h.rateLimit.Requests <= 0 {
			c.Next()
			return
		}

		res, err := h.Limiter.AllowRequest(c.Request.Context(), "ip:"+c.ClientIP(), h.rateLimit.Requests, h.rateLimit.Window)
		if err != nil {
			h.logger.Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(h.rateLimit.Requests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(res.ResetIn.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests from this IP, please try again later.",
			})
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

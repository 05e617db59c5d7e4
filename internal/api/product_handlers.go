package api

import (
	"net/http"
	"strconv"

	"pricing-service/internal/models"
	"pricing-service/internal/service"

	"github.com/gin-gonic/gin"
)

type updatePriceRequest struct {
	Price *float64 `json:"price"`
}

type optimizeRequest struct {
	Strategy models.Strategy `json:"strategy"`
}

type bulkOptimizeRequest struct {
	ProductIDs []string        `json:"productIds"`
	Strategy   models.Strategy `json:"strategy"`
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}

func pagination(page, limit, total int) gin.H {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return gin.H{"page": page, "limit": limit, "total": total, "pages": pages}
}

func (h *Handler) listProducts(c *gin.Context) {
	res, err := h.Products.ListProducts(c.Request.Context(), userID(c), service.ListProductsParams{
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
		Status:   c.Query("status"),
		Category: c.Query("category"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products":   res.Products,
		"pagination": pagination(res.Page, res.Limit, res.Total),
	})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.Products.GetProduct(c.Request.Context(), userID(c), c.Param("productId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *Handler) updatePrice(c *gin.Context) {
	var req updatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Price == nil {
		badRequest(c, "Price is required", err)
		return
	}

	product, err := h.Products.UpdatePrice(c.Request.Context(), userID(c), c.Param("productId"), *req.Price)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Price updated successfully",
		"product": product,
	})
}

func (h *Handler) optimizeProduct(c *gin.Context) {
	var req optimizeRequest
	// the body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body", err)
			return
		}
	}

	res, err := h.Products.OptimizeProduct(c.Request.Context(), userID(c), c.Param("productId"), req.Strategy)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Product optimized successfully",
		"product":     res.Product,
		"priceChange": res.PriceChange,
	})
}

func (h *Handler) bulkOptimize(c *gin.Context) {
	var req bulkOptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	results, err := h.Products.BulkOptimize(c.Request.Context(), userID(c), req.ProductIDs, req.Strategy)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Bulk optimization completed",
		"results": results,
	})
}

func (h *Handler) pricingHistory(c *gin.Context) {
	history, err := h.Products.PricingHistory(c.Request.Context(), userID(c), c.Param("productId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *Handler) getSettings(c *gin.Context) {
	settings, err := h.Products.GetSettings(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *Handler) updateSettings(c *gin.Context) {
	var req service.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	settings, err := h.Products.UpdateSettings(c.Request.Context(), userID(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Settings updated successfully",
		"settings": settings,
	})
}

// runOptimization runs the caller's catalog now, pushing accepted prices
func (h *Handler) runOptimization(c *gin.Context) {
	report, err := h.Optimizer.OptimizeUser(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

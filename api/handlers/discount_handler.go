package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
	"storefront/internal/services"
)

type DiscountHandler struct {
	discountService *services.DiscountService
}

func NewDiscountHandler(discountService *services.DiscountService) *DiscountHandler {
	return &DiscountHandler{discountService: discountService}
}

// GET /api/discounts
func (h *DiscountHandler) ListDiscounts(c *gin.Context) {
	discounts, err := h.discountService.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, discounts)
}

// POST /api/discounts (admin)
func (h *DiscountHandler) CreateDiscount(c *gin.Context) {
	var req models.CreateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.discountService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// POST /api/discounts/verify
func (h *DiscountHandler) VerifyDiscount(c *gin.Context) {
	var req models.VerifyDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.discountService.Verify(c.Request.Context(), req.Code, req.Subtotal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.VerifyDiscountResponse{
		Code:        d.Code,
		Rate:        d.Rate,
		MinPurchase: d.MinPurchase,
		Description: d.Description,
		Valid:       true,
	})
}

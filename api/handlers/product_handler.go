package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
	"storefront/internal/services"
)

type ProductHandler struct {
	productService *services.ProductService
}

func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// GET /api/products
// Get all products with pagination
func (h *ProductHandler) GetAllProducts(c *gin.Context) {
	h.list(c, services.ProductFilter{Category: c.Query("category")})
}

// GET /api/products/search
func (h *ProductHandler) SearchProducts(c *gin.Context) {
	minPrice, _ := strconv.ParseFloat(c.Query("min_price"), 64)
	maxPrice, _ := strconv.ParseFloat(c.Query("max_price"), 64)
	h.list(c, services.ProductFilter{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
	})
}

func (h *ProductHandler) list(c *gin.Context, f services.ProductFilter) {
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}

	products, total, err := h.productService.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}

	totalPages := (int(total) + f.Limit - 1) / f.Limit
	c.JSON(http.StatusOK, gin.H{
		"data": products,
		"meta": gin.H{
			"page":        f.Page,
			"limit":       f.Limit,
			"total":       total,
			"total_pages": totalPages,
			"has_next":    f.Page < totalPages,
			"has_prev":    f.Page > 1,
			"query":       f.Query,
			"category":    f.Category,
		},
	})
}

// GET /api/products/:id
func (h *ProductHandler) GetProductByID(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	product, err := h.productService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}

// GET /api/products/categories
func (h *ProductHandler) GetCategories(c *gin.Context) {
	categories, err := h.productService.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": categories})
}

// POST /api/products (admin)
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.productService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": product})
}

// PUT /api/products/:id/stock (admin)
func (h *ProductHandler) UpdateStock(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	old, err := h.productService.SetStock(c.Request.Context(), id, req.Stock)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Stock updated",
		"product_id": id,
		"old_stock":  old,
		"new_stock":  req.Stock,
	})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
	"storefront/internal/services"
)

type DiscussionHandler struct {
	discussionService *services.DiscussionService
}

func NewDiscussionHandler(discussionService *services.DiscussionService) *DiscussionHandler {
	return &DiscussionHandler{discussionService: discussionService}
}

// GET /api/products/:id/discussions
func (h *DiscussionHandler) ListForProduct(c *gin.Context) {
	productID, ok := intParam(c, "id")
	if !ok {
		return
	}
	discussions, err := h.discussionService.ListForProduct(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, discussions)
}

// POST /api/products/:id/discussions
func (h *DiscussionHandler) Create(c *gin.Context) {
	productID, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req models.CreateDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.discussionService.Create(c.Request.Context(), productID, getCurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// GET /api/discussions/:id
func (h *DiscussionHandler) Get(c *gin.Context) {
	d, err := h.discussionService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GET /api/discussions/:id/comments
func (h *DiscussionHandler) Comments(c *gin.Context) {
	comments, err := h.discussionService.Comments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

// POST /api/discussions/:id/comments
func (h *DiscussionHandler) AddComment(c *gin.Context) {
	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.discussionService.AddComment(c.Request.Context(), c.Param("id"), getCurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
	"storefront/internal/services"
)

type ChatHandler struct {
	chatService *services.ChatService
}

func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// GET /api/conversations
func (h *ChatHandler) ListConversations(c *gin.Context) {
	convs, err := h.chatService.ListConversations(c.Request.Context(), getCurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

// POST /api/conversations
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.chatService.CreateConversation(c.Request.Context(), getCurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// GET /api/conversations/:id
// Marks the caller's unread messages in the conversation as read.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	conv, err := h.chatService.GetConversation(c.Request.Context(), c.Param("id"), getCurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// POST /api/conversations/:id
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), c.Param("id"), getCurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// POST /api/messages/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	var req models.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.chatService.MarkRead(c.Request.Context(), getCurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

// GET /api/messages/unread-count
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	n, err := h.chatService.UnreadCount(c.Request.Context(), getCurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// POST /api/messages/check-new
func (h *ChatHandler) CheckNew(c *gin.Context) {
	var req models.CheckNewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	resp, err := h.chatService.CheckNew(c.Request.Context(), getCurrentUserID(c), req.LastChecked)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

package handlers

import (
	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"

	"storefront/internal/realtime"
)

type WSHandler struct {
	hub  *realtime.Hub
	opts *websocket.AcceptOptions
}

// NewWSHandler accepts upgrades from any origin when insecureSkipVerify is set;
// otherwise only same-origin and originPatterns are allowed.
func NewWSHandler(hub *realtime.Hub, insecureSkipVerify bool, originPatterns []string) *WSHandler {
	return &WSHandler{
		hub: hub,
		opts: &websocket.AcceptOptions{
			InsecureSkipVerify: insecureSkipVerify,
			OriginPatterns:     originPatterns,
		},
	}
}

// GET /ws
func (h *WSHandler) Connect(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, h.opts)
	if err != nil {
		return // Accept already wrote the error response
	}
	h.hub.Serve(c.Request.Context(), conn, getCurrentUserID(c))
}

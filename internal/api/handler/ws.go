package handler

import (
	"batchchat/backend/internal/chathub"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients are served from other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the request to the room's real-time channel. The room
// must exist. A token in the query identifies the user; without one the
// connection is anonymous, which is refused when senders are bound to tokens.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	roomID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}

	var userID string
	if token := c.Query("token"); token != "" {
		claims, err := h.Auth.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}
		userID = claims.UserID
	} else if h.Hub.BindSender {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}

	if _, err := h.Store.GetRoom(c.Request.Context(), roomID); err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.Log.Warn("websocket upgrade failed", "chat_id", roomID, "error", err)
		return
	}

	client := chathub.NewWebSocketClient(conn, h.Hub, userID, roomID, h.SendBuffer, h.WriteWait)
	// The connection outlives the request, so it does not inherit its context.
	h.Hub.Connect(context.Background(), client)
}

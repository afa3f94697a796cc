package chathub

import (
	"batchchat/backend/internal/config"
	"batchchat/backend/internal/models"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	ID     string
	UserID string
	RoomID uint
	Conn   *websocket.Conn
	Hub    *ManagerService

	// WriteWait bounds every single write to the peer.
	WriteWait time.Duration

	send      chan models.OutboundFrame
	done      chan struct{}
	closeOnce sync.Once
	state     atomic.Int32
}

// NewWebSocketClient wraps an upgraded connection. bufferSize frames may be queued
// before the peer counts as stalled.
func NewWebSocketClient(conn *websocket.Conn, hub *ManagerService, userID string, roomID uint, bufferSize int, writeWait time.Duration) *WebSocketClient {
	if bufferSize <= 0 {
		bufferSize = config.SendBufferSize
	}
	if writeWait <= 0 {
		writeWait = config.WriteWait
	}
	return &WebSocketClient{
		ID:        uuid.NewString(),
		UserID:    userID,
		RoomID:    roomID,
		Conn:      conn,
		Hub:       hub,
		WriteWait: writeWait,
		send:      make(chan models.OutboundFrame, bufferSize),
		done:      make(chan struct{}),
	}
}

func (c *WebSocketClient) GetID() string     { return c.ID }
func (c *WebSocketClient) GetUserID() string { return c.UserID }
func (c *WebSocketClient) GetRoomID() uint   { return c.RoomID }
func (c *WebSocketClient) State() ConnState  { return ConnState(c.state.Load()) }

// Send queues a frame for the write pump. A full queue means the peer is not
// reading and is reported as an error instead of blocking the broadcaster.
func (c *WebSocketClient) Send(frame models.OutboundFrame) error {
	if c.State() == StateClosed {
		return ErrClientClosed
	}
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateJoined)) {
		return
	}
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump, which sends a close frame and closes the socket.
// The send channel is never closed, so a concurrent Send cannot panic.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() {
		prev := ConnState(c.state.Swap(int32(StateClosed)))
		close(c.done)
		if prev == StateConnecting && c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

func (c *WebSocketClient) readPump() {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			c.Hub.Log.Error("read pump panic", "conn_id", c.ID, "panic", r)
		}
		c.Hub.Disconnect(ctx, c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.Hub.Log.Warn("websocket read failed", "conn_id", c.ID, "error", err)
			}
			return
		}
		c.Hub.HandleInbound(ctx, c, message)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.WriteWait))
			if err := c.Conn.WriteJSON(frame); err != nil {
				c.Hub.Log.Warn("websocket write failed", "conn_id", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.WriteWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

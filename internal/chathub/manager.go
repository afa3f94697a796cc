package chathub

import (
	"batchchat/backend/internal/locks"
	"batchchat/backend/internal/models"
	"batchchat/backend/internal/storage"
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
)

// Reasons reported to the drop hook.
const (
	DropInvalidFrame    = "invalid_frame"
	DropUnauthenticated = "unauthenticated"
	DropAppendFailed    = "append_failed"
)

// Store is what the hub needs from persistence.
type Store interface {
	storage.MessageLog
	storage.Presence
	storage.DropCounter
}

// ManagerService persists inbound messages and fans them out to every live
// connection of their room.
type ManagerService struct {
	Registry *Registry
	Storage  Store
	Log      *slog.Logger

	// BindSender makes the authenticated user of a connection the sender of its
	// frames, ignoring the sender_id the client put in the payload.
	BindSender bool

	validate  *validator.Validate
	roomLocks locks.Keyed[uint]
	dropped   atomic.Int64
}

// NewManagerService Constructor
func NewManagerService(reg *Registry, s Store, log *slog.Logger) *ManagerService {
	if reg == nil {
		reg = NewRegistry()
	}
	if log == nil {
		log = slog.Default()
	}
	return &ManagerService{
		Registry: reg,
		Storage:  s,
		Log:      log,
		validate: validator.New(),
	}
}

// Connect registers a client, records its presence and starts its pumps.
func (m *ManagerService) Connect(ctx context.Context, c Client) {
	m.Registry.Add(c)
	// Anonymous connections receive frames but are not listed as online.
	if c.GetUserID() != "" {
		if err := m.Storage.JoinRoom(ctx, c.GetRoomID(), c.GetUserID()); err != nil {
			m.Log.Warn("presence join failed", "chat_id", c.GetRoomID(), "user_id", c.GetUserID(), "error", err)
		}
	}
	m.Log.Debug("client connected", "conn_id", c.GetID(), "chat_id", c.GetRoomID(), "user_id", c.GetUserID())
	c.Run()
}

// Disconnect unregisters and closes a client. Only the first call for a given
// client has any effect.
func (m *ManagerService) Disconnect(ctx context.Context, c Client) {
	if !m.Registry.Remove(c) {
		return
	}
	if c.GetUserID() != "" {
		if err := m.Storage.LeaveRoom(ctx, c.GetRoomID(), c.GetUserID()); err != nil {
			m.Log.Warn("presence leave failed", "chat_id", c.GetRoomID(), "user_id", c.GetUserID(), "error", err)
		}
	}
	c.Close()
	m.Log.Debug("client disconnected", "conn_id", c.GetID(), "chat_id", c.GetRoomID())
}

// Broadcast hands frame to every connection of roomID and returns how many took
// it. A connection that fails is evicted and the others still get the frame.
func (m *ManagerService) Broadcast(ctx context.Context, roomID uint, frame models.OutboundFrame) int {
	delivered := 0
	for _, c := range m.Registry.Snapshot(roomID) {
		if err := c.Send(frame); err != nil {
			m.Log.Warn("evicting client", "conn_id", c.GetID(), "chat_id", roomID, "error", err)
			m.Disconnect(ctx, c)
			continue
		}
		delivered++
	}
	return delivered
}

// Publish stores a message and then broadcasts it. Calls for the same room are
// serialized, so connections receive frames in sequence order. Nothing is
// broadcast when the append fails.
func (m *ManagerService) Publish(ctx context.Context, req models.AppendRequest) (*models.Message, error) {
	unlock := m.roomLocks.Lock(req.RoomID)
	defer unlock()

	msg, err := m.Storage.Append(ctx, req)
	if err != nil {
		return nil, err
	}
	m.Broadcast(ctx, req.RoomID, models.NewOutboundFrame(msg))
	return msg, nil
}

// HandleInbound processes one raw frame read from c. Frames that do not parse,
// or lack a sender or a body, are dropped without a reply.
func (m *ManagerService) HandleInbound(ctx context.Context, c Client, raw []byte) {
	roomID := c.GetRoomID()

	var frame models.InboundFrame
	if m.BindSender && c.GetUserID() == "" {
		m.drop(ctx, roomID, DropUnauthenticated)
		return
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		m.drop(ctx, roomID, DropInvalidFrame)
		return
	}
	if m.BindSender {
		frame.SenderID = c.GetUserID()
	}
	if err := m.validate.Struct(frame); err != nil {
		m.drop(ctx, roomID, DropInvalidFrame)
		return
	}

	sender := frame.SenderID
	_, err := m.Publish(ctx, models.AppendRequest{
		RoomID:   roomID,
		SenderID: &sender,
		Body:     frame.Message,
		BatchID:  frame.BatchID,
	})
	if err != nil {
		m.Log.Error("append failed, frame discarded", "chat_id", roomID, "conn_id", c.GetID(), "error", err)
		m.drop(ctx, roomID, DropAppendFailed)
	}
}

// DroppedFrames is the number of frames dropped since start.
func (m *ManagerService) DroppedFrames() int64 {
	return m.dropped.Load()
}

// Shutdown disconnects every live connection.
func (m *ManagerService) Shutdown(ctx context.Context) {
	for _, c := range m.Registry.All() {
		m.Disconnect(ctx, c)
	}
}

func (m *ManagerService) drop(ctx context.Context, roomID uint, reason string) {
	m.dropped.Add(1)
	m.Log.Debug("frame dropped", "chat_id", roomID, "reason", reason)
	m.Storage.FrameDropped(ctx, roomID, reason)
}

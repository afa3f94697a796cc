package chathub_test

import (
	"batchchat/backend/internal/chathub"
	"batchchat/backend/internal/models"
	"sync"
	"sync/atomic"
)

type MockClient struct {
	id      string
	userID  string
	roomID  uint
	sendErr error

	mu       sync.Mutex
	received []models.OutboundFrame
	closes   atomic.Int32
	runs     atomic.Int32
	state    atomic.Int32
}

func newMockClient(id, userID string, roomID uint) *MockClient {
	return &MockClient{id: id, userID: userID, roomID: roomID}
}

func (c *MockClient) GetID() string     { return c.id }
func (c *MockClient) GetUserID() string { return c.userID }
func (c *MockClient) GetRoomID() uint   { return c.roomID }
func (c *MockClient) State() chathub.ConnState {
	return chathub.ConnState(c.state.Load())
}

func (c *MockClient) Send(frame models.OutboundFrame) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, frame)
	return nil
}

func (c *MockClient) Run() {
	c.runs.Add(1)
	c.state.Store(int32(chathub.StateJoined))
}

func (c *MockClient) Close() {
	c.closes.Add(1)
	c.state.Store(int32(chathub.StateClosed))
}

func (c *MockClient) Frames() []models.OutboundFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.OutboundFrame(nil), c.received...)
}

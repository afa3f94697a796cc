package chathub_test

import (
	"batchchat/backend/internal/chathub"
	"batchchat/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.DiscardHandler)

func newHub(s chathub.Store) *chathub.ManagerService {
	return chathub.NewManagerService(chathub.NewRegistry(), s, quiet)
}

func storedMessage(roomID uint, seq uint64, sender, body string) *models.Message {
	return &models.Message{
		ID:        uint(seq),
		RoomID:    roomID,
		Seq:       seq,
		SenderID:  &sender,
		Body:      body,
		Status:    models.MessageStatusSent,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestRegistry(t *testing.T) {
	reg := chathub.NewRegistry()
	a := newMockClient("a", "u1", 1)
	b := newMockClient("b", "u1", 1)
	c := newMockClient("c", "u2", 2)
	reg.Add(a)
	reg.Add(b)
	reg.Add(c)

	assert.Equal(t, 2, reg.Count(1))
	assert.Equal(t, 3, reg.Total())
	assert.ElementsMatch(t, []chathub.Client{a, b}, reg.Snapshot(1))
	assert.Len(t, reg.All(), 3)

	assert.True(t, reg.Remove(a))
	assert.False(t, reg.Remove(a))
	assert.Equal(t, 1, reg.Count(1))

	assert.True(t, reg.Remove(c))
	assert.Empty(t, reg.Snapshot(2))
	assert.False(t, reg.Remove(newMockClient("zzz", "", 9)))
}

func TestConnectAndDisconnect(t *testing.T) {
	store := new(MockStorage)
	store.On("JoinRoom", uint(1), "u1").Return(nil)
	store.On("LeaveRoom", uint(1), "u1").Return(nil)
	hub := newHub(store)

	c := newMockClient("c1", "u1", 1)
	hub.Connect(context.Background(), c)
	assert.Equal(t, chathub.StateJoined, c.State())
	assert.Equal(t, 1, hub.Registry.Count(1))

	hub.Disconnect(context.Background(), c)
	hub.Disconnect(context.Background(), c)
	assert.Equal(t, chathub.StateClosed, c.State())
	assert.Equal(t, int32(1), c.closes.Load())
	assert.Zero(t, hub.Registry.Count(1))
	store.AssertNumberOfCalls(t, "LeaveRoom", 1)
}

func TestBroadcast_EvictsBrokenClient(t *testing.T) {
	store := new(MockStorage)
	store.On("LeaveRoom", uint(1), mock.Anything).Return(nil)
	hub := newHub(store)

	broken := newMockClient("c1", "u1", 1)
	broken.sendErr = syscall.EPIPE
	healthy := newMockClient("c2", "u2", 1)
	hub.Registry.Add(broken)
	hub.Registry.Add(healthy)

	frame := models.NewOutboundFrame(storedMessage(1, 1, "u3", "hello"))
	delivered := hub.Broadcast(context.Background(), 1, frame)

	assert.Equal(t, 1, delivered)
	assert.Equal(t, []models.OutboundFrame{frame}, healthy.Frames())
	assert.Equal(t, []chathub.Client{healthy}, hub.Registry.Snapshot(1))
	assert.Equal(t, int32(1), broken.closes.Load())

	// The evicted client no longer counts.
	assert.Equal(t, 1, hub.Broadcast(context.Background(), 1, frame))
}

func TestHandleInbound_StoresThenBroadcastsOnce(t *testing.T) {
	store := new(MockStorage)
	msg := storedMessage(1, 1, "u1", "hello")
	store.On("Append", models.AppendRequest{RoomID: 1, SenderID: &[]string{"u1"}[0], Body: "hello"}).Return(msg, nil).Once()
	hub := newHub(store)

	c1 := newMockClient("c1", "u1", 1)
	c2 := newMockClient("c2", "u2", 1)
	other := newMockClient("c3", "u3", 2)
	for _, c := range []*MockClient{c1, c2, other} {
		hub.Registry.Add(c)
	}

	hub.HandleInbound(context.Background(), c1, []byte(`{"sender_id":"u1","message":"hello"}`))

	want := []models.OutboundFrame{{
		ID:        1,
		Seq:       1,
		Message:   "hello",
		SenderID:  msg.SenderID,
		ChatID:    1,
		CreatedAt: "2026-01-02T03:04:05Z",
		Status:    "sent",
	}}
	assert.Equal(t, want, c1.Frames())
	assert.Equal(t, want, c2.Frames())
	assert.Empty(t, other.Frames())
	assert.Zero(t, hub.DroppedFrames())
	store.AssertExpectations(t)
}

func TestHandleInbound_DropsInvalidFrames(t *testing.T) {
	frames := map[string]string{
		"not json":       `hello`,
		"missing sender": `{"message":"hello"}`,
		"missing body":   `{"sender_id":"u1"}`,
		"empty body":     `{"sender_id":"u1","message":""}`,
	}
	for name, raw := range frames {
		t.Run(name, func(t *testing.T) {
			store := new(MockStorage)
			store.On("FrameDropped", uint(1), chathub.DropInvalidFrame).Return()
			hub := newHub(store)
			c := newMockClient("c1", "u1", 1)
			hub.Registry.Add(c)

			hub.HandleInbound(context.Background(), c, []byte(raw))

			assert.Empty(t, c.Frames())
			assert.Equal(t, int64(1), hub.DroppedFrames())
			store.AssertNotCalled(t, "Append", mock.Anything)
			store.AssertCalled(t, "FrameDropped", uint(1), chathub.DropInvalidFrame)
		})
	}
}

func TestHandleInbound_AppendFailureDiscardsFrame(t *testing.T) {
	store := new(MockStorage)
	store.On("Append", mock.Anything).Return(nil, fmt.Errorf("%w: db down", models.ErrUnavailable))
	store.On("FrameDropped", uint(1), chathub.DropAppendFailed).Return()
	hub := newHub(store)
	c := newMockClient("c1", "u1", 1)
	hub.Registry.Add(c)

	hub.HandleInbound(context.Background(), c, []byte(`{"sender_id":"u1","message":"hello"}`))

	assert.Empty(t, c.Frames())
	assert.Equal(t, int64(1), hub.DroppedFrames())
	store.AssertExpectations(t)
}

func TestHandleInbound_BindSender(t *testing.T) {
	store := new(MockStorage)
	store.On("Append", mock.MatchedBy(func(req models.AppendRequest) bool {
		return req.SenderID != nil && *req.SenderID == "real-user"
	})).Return(storedMessage(1, 1, "real-user", "hi"), nil)
	store.On("FrameDropped", uint(1), chathub.DropUnauthenticated).Return()
	hub := newHub(store)
	hub.BindSender = true

	authed := newMockClient("c1", "real-user", 1)
	anonymous := newMockClient("c2", "", 1)
	hub.Registry.Add(authed)
	hub.Registry.Add(anonymous)

	hub.HandleInbound(context.Background(), authed, []byte(`{"sender_id":"someone-else","message":"hi"}`))
	require.Len(t, authed.Frames(), 1)
	assert.Equal(t, "real-user", *authed.Frames()[0].SenderID)

	hub.HandleInbound(context.Background(), anonymous, []byte(`{"sender_id":"x","message":"hi"}`))
	assert.Equal(t, int64(1), hub.DroppedFrames())
	store.AssertNumberOfCalls(t, "Append", 1)
}

func TestPublish_PreservesSequenceOrder(t *testing.T) {
	hub := newHub(newMemStorage())
	c := newMockClient("c1", "u1", 1)
	hub.Registry.Add(c)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := hub.Publish(context.Background(), models.AppendRequest{RoomID: 1, Body: fmt.Sprintf("m%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	frames := c.Frames()
	require.Len(t, frames, n)
	for i, f := range frames {
		assert.Equal(t, uint64(i+1), f.Seq)
	}
	assert.Zero(t, hub.RoomLocksHeld())
}

func TestPublish_ForgetsRoomLocks(t *testing.T) {
	hub := newHub(newMemStorage())
	for roomID := uint(1); roomID <= 100; roomID++ {
		_, err := hub.Publish(context.Background(), models.AppendRequest{RoomID: roomID, Body: "hi"})
		require.NoError(t, err)
	}
	assert.Zero(t, hub.RoomLocksHeld())
}

func TestWebSocketClient_SendBufferFull(t *testing.T) {
	c := chathub.NewWebSocketClient(nil, newHub(newMemStorage()), "u1", 1, 1, time.Second)
	assert.Equal(t, chathub.StateConnecting, c.State())
	assert.NotEmpty(t, c.GetID())

	require.NoError(t, c.Send(models.OutboundFrame{Seq: 1}))
	assert.True(t, errors.Is(c.Send(models.OutboundFrame{Seq: 2}), chathub.ErrSendBufferFull))

	c.Close()
	c.Close()
	assert.Equal(t, chathub.StateClosed, c.State())
	assert.ErrorIs(t, c.Send(models.OutboundFrame{Seq: 3}), chathub.ErrClientClosed)
}

func TestWebSocketClient_EndToEnd(t *testing.T) {
	hub := newHub(newMemStorage())
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := chathub.NewWebSocketClient(conn, hub, r.URL.Query().Get("user"), 7, 8, time.Second)
		hub.Connect(context.Background(), client)
	}))
	defer srv.Close()

	dial := func(user string) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}
	alice := dial("alice")
	bob := dial("bob")
	require.Eventually(t, func() bool { return hub.Registry.Count(7) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"sender_id":"alice","message":"hi bob"}`)))

	for _, conn := range []*websocket.Conn{alice, bob} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var frame models.OutboundFrame
		require.NoError(t, conn.ReadJSON(&frame))
		assert.Equal(t, uint64(1), frame.Seq)
		assert.Equal(t, "hi bob", frame.Message)
		assert.Equal(t, uint(7), frame.ChatID)
	}

	require.NoError(t, bob.Close())
	require.Eventually(t, func() bool { return hub.Registry.Count(7) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Shutdown(context.Background())
	assert.Zero(t, hub.Registry.Total())
}

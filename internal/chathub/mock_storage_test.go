package chathub_test

import (
	"batchchat/backend/internal/models"
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Append(ctx context.Context, req models.AppendRequest) (*models.Message, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStorage) List(ctx context.Context, roomID uint, beforeSeq uint64, limit int) ([]models.Message, error) {
	args := m.Called(roomID, beforeSeq, limit)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) JoinRoom(ctx context.Context, roomID uint, userID string) error {
	args := m.Called(roomID, userID)
	return args.Error(0)
}

func (m *MockStorage) LeaveRoom(ctx context.Context, roomID uint, userID string) error {
	args := m.Called(roomID, userID)
	return args.Error(0)
}

func (m *MockStorage) OnlineUsers(ctx context.Context, roomID uint) ([]string, error) {
	args := m.Called(roomID)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) FrameDropped(ctx context.Context, roomID uint, reason string) {
	m.Called(roomID, reason)
}

// memStorage is an in-memory message log that assigns sequence numbers the way
// the real one does.
type memStorage struct {
	mu   sync.Mutex
	seqs map[uint]uint64
	next uint
}

func newMemStorage() *memStorage {
	return &memStorage{seqs: map[uint]uint64{}}
}

func (s *memStorage) Append(_ context.Context, req models.AppendRequest) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.seqs[req.RoomID]++
	return &models.Message{
		ID:        s.next,
		RoomID:    req.RoomID,
		Seq:       s.seqs[req.RoomID],
		SenderID:  req.SenderID,
		Body:      req.Body,
		Status:    models.MessageStatusSent,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (s *memStorage) List(context.Context, uint, uint64, int) ([]models.Message, error) {
	return nil, nil
}

func (s *memStorage) JoinRoom(context.Context, uint, string) error  { return nil }
func (s *memStorage) LeaveRoom(context.Context, uint, string) error { return nil }
func (s *memStorage) OnlineUsers(context.Context, uint) ([]string, error) {
	return nil, nil
}
func (s *memStorage) FrameDropped(context.Context, uint, string) {}

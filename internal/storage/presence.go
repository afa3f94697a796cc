package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const droppedFramesKey = "chat:frames:dropped"

func onlineKey(roomID uint) string {
	return fmt.Sprintf("chat:%d:online", roomID)
}

// JoinRoom counts one more live connection of userID in roomID. A user with two
// tabs open holds two connections and stays online until both are gone.
func (s *Service) JoinRoom(ctx context.Context, roomID uint, userID string) error {
	if s.Redis == nil || userID == "" {
		return nil
	}
	return s.Redis.HIncrBy(ctx, onlineKey(roomID), userID, 1).Err()
}

// LeaveRoom releases one connection of userID in roomID.
func (s *Service) LeaveRoom(ctx context.Context, roomID uint, userID string) error {
	if s.Redis == nil || userID == "" {
		return nil
	}
	key := onlineKey(roomID)
	n, err := s.Redis.HIncrBy(ctx, key, userID, -1).Result()
	if err != nil {
		return err
	}
	if n <= 0 {
		return s.Redis.HDel(ctx, key, userID).Err()
	}
	return nil
}

// OnlineUsers lists the users with at least one live connection to roomID,
// sorted. Without Redis nobody is reported online.
func (s *Service) OnlineUsers(ctx context.Context, roomID uint) ([]string, error) {
	if s.Redis == nil {
		return []string{}, nil
	}
	counts, err := s.Redis.HGetAll(ctx, onlineKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(counts))
	for user, raw := range counts {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			users = append(users, user)
		}
	}
	sort.Strings(users)
	return users, nil
}

// FrameDropped bumps the global drop counter and the per-reason breakdown.
// Failures are ignored: the counter is best effort.
func (s *Service) FrameDropped(ctx context.Context, roomID uint, reason string) {
	if s.Redis == nil {
		return
	}
	pipe := s.Redis.TxPipeline()
	pipe.Incr(ctx, droppedFramesKey)
	pipe.HIncrBy(ctx, droppedFramesKey+":by_reason", reason, 1)
	_, _ = pipe.Exec(ctx)
}

// DroppedFrames reads the global drop counter.
func (s *Service) DroppedFrames(ctx context.Context) (int64, error) {
	if s.Redis == nil {
		return 0, nil
	}
	n, err := s.Redis.Get(ctx, droppedFramesKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

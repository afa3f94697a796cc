package queue_test

import (
	"batchchat/backend/internal/models"
	"batchchat/backend/internal/queue"
	"batchchat/backend/internal/roster"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, batchID uint, actorID string) (*roster.Result, error) {
	args := m.Called(batchID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*roster.Result), args.Error(1)
}

func newHandler(r queue.Reconciler) *queue.Handler {
	return &queue.Handler{Reconciler: r, Log: slog.New(slog.DiscardHandler)}
}

func TestHandleReconcileTask_Success(t *testing.T) {
	rec := new(MockReconciler)
	rec.On("Reconcile", uint(7), "actor").Return(&roster.Result{BatchID: 7, Added: []string{"u1"}}, nil)

	task, err := queue.NewReconcileTask(7, "actor")
	require.NoError(t, err)
	assert.Equal(t, queue.TypeReconcileBatch, task.Type())

	require.NoError(t, newHandler(rec).HandleReconcileTask(context.Background(), task))
	rec.AssertExpectations(t)
}

func TestHandleReconcileTask_Retries(t *testing.T) {
	rec := new(MockReconciler)
	rec.On("Reconcile", uint(1), "").Return(&roster.Result{Warnings: []string{"user x: down"}}, nil)
	rec.On("Reconcile", uint(2), "").Return(nil, fmt.Errorf("%w: db down", models.ErrUnavailable))
	h := newHandler(rec)

	task, _ := queue.NewReconcileTask(1, "")
	err := h.HandleReconcileTask(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	task, _ = queue.NewReconcileTask(2, "")
	err = h.HandleReconcileTask(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleReconcileTask_SkipsRetry(t *testing.T) {
	rec := new(MockReconciler)
	rec.On("Reconcile", uint(3), "").Return(nil, fmt.Errorf("%w: batch 3", models.ErrNotFound))
	h := newHandler(rec)

	task, _ := queue.NewReconcileTask(3, "")
	assert.ErrorIs(t, h.HandleReconcileTask(context.Background(), task), asynq.SkipRetry)

	bad := asynq.NewTask(queue.TypeReconcileBatch, []byte("{"))
	assert.ErrorIs(t, h.HandleReconcileTask(context.Background(), bad), asynq.SkipRetry)
	rec.AssertNumberOfCalls(t, "Reconcile", 1)
}

func TestClient_ScheduleReconcile(t *testing.T) {
	mr := miniredis.RunT(t)
	c := queue.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()}, 3)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.ScheduleReconcile(ctx, 11, "actor"))
	// a second request inside the uniqueness window is absorbed
	require.NoError(t, c.ScheduleReconcile(ctx, 11, "actor"))
	require.NoError(t, c.ScheduleReconcile(ctx, 12, "actor"))

	scheduled, err := mr.ZMembers("asynq:{roster}:scheduled")
	require.NoError(t, err)
	assert.Len(t, scheduled, 2)
}

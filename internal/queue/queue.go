// Package queue moves soft-failed reconciles onto an asynq queue so a worker can
// retry them later.
package queue

import (
	"batchchat/backend/internal/config"
	"batchchat/backend/internal/models"
	"batchchat/backend/internal/roster"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TypeReconcileBatch is the task type of a batch room reconcile.
const TypeReconcileBatch = "roster:reconcile"

// ReconcilePayload is the JSON payload of a reconcile task.
type ReconcilePayload struct {
	BatchID uint   `json:"batch_id"`
	ActorID string `json:"actor_id"`
}

// NewReconcileTask builds a reconcile task for batchID.
func NewReconcileTask(batchID uint, actorID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReconcilePayload{BatchID: batchID, ActorID: actorID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReconcileBatch, payload), nil
}

// Client enqueues reconcile retries. It implements roster.RetryScheduler.
type Client struct {
	client    *asynq.Client
	MaxRetry  int
	UniqueTTL time.Duration
	Delay     time.Duration
}

var _ roster.RetryScheduler = (*Client)(nil)

// NewClient connects an asynq client to Redis.
func NewClient(opt asynq.RedisConnOpt, maxRetry int) *Client {
	return &Client{
		client:    asynq.NewClient(opt),
		MaxRetry:  maxRetry,
		UniqueTTL: config.ReconcileUniqueTTL,
		Delay:     5 * time.Second,
	}
}

// ScheduleReconcile queues a reconcile of batchID. While one is already pending
// for the batch another request is a no-op.
func (c *Client) ScheduleReconcile(ctx context.Context, batchID uint, actorID string) error {
	task, err := NewReconcileTask(batchID, actorID)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Queue(config.ReconcileQueue)}
	if c.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(c.MaxRetry))
	}
	if c.UniqueTTL > 0 {
		opts = append(opts, asynq.Unique(c.UniqueTTL))
	}
	if c.Delay > 0 {
		opts = append(opts, asynq.ProcessIn(c.Delay))
	}

	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue reconcile of batch %d: %w", batchID, err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Reconciler is the part of roster.Reconciler the worker needs.
type Reconciler interface {
	Reconcile(ctx context.Context, batchID uint, actorID string) (*roster.Result, error)
}

// Handler processes reconcile tasks.
type Handler struct {
	Reconciler Reconciler
	Log        *slog.Logger
}

// HandleReconcileTask reruns a reconcile. A batch that no longer exists or a
// malformed payload is not retried; warnings on individual members are.
func (h *Handler) HandleReconcileTask(ctx context.Context, t *asynq.Task) error {
	var p ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("reconcile payload: %v: %w", err, asynq.SkipRetry)
	}

	res, err := h.Reconciler.Reconcile(ctx, p.BatchID, p.ActorID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("batch %d: %v: %w", p.BatchID, err, asynq.SkipRetry)
		}
		return err
	}
	if len(res.Warnings) > 0 {
		return fmt.Errorf("batch %d: %d members still missing from the room", p.BatchID, len(res.Warnings))
	}
	h.Log.Info("reconcile retry done", "batch_id", p.BatchID, "added", len(res.Added))
	return nil
}

// Worker consumes the reconcile queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker builds a worker that runs reconcile tasks with the given concurrency.
func NewWorker(opt asynq.RedisConnOpt, concurrency int, h *Handler) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{config.ReconcileQueue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			h.Log.Warn("reconcile task failed", "type", task.Type(), "error", err)
		}),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReconcileBatch, h.HandleReconcileTask)
	return &Worker{server: srv, mux: mux}
}

// Start begins processing in the background.
func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

// Shutdown stops fetching new tasks and waits for running ones.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// Package roster keeps batch rosters and their official chat rooms in step.
package roster

import (
	"batchchat/backend/internal/localization"
	"batchchat/backend/internal/models"
	"batchchat/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
)

// SystemActor is recorded as the room creator when a reconcile has no caller.
const SystemActor = "system"

// Store is what the reconciler reads and writes.
type Store interface {
	storage.RosterStore
	storage.RoomDirectory
	storage.MessageLog
}

// RetryScheduler queues a later reconcile of a batch.
type RetryScheduler interface {
	ScheduleReconcile(ctx context.Context, batchID uint, actorID string) error
}

// Syncer runs a reconcile that never fails the caller.
type Syncer interface {
	Sync(ctx context.Context, batchID uint, actorID string) *Result
}

// Result describes what one reconcile did.
type Result struct {
	BatchID     uint     `json:"batch_id"`
	ChatID      *uint    `json:"chat_id"`
	ChatCreated bool     `json:"chat_created"`
	Added       []string `json:"added_members"`
	Warnings    []string `json:"warnings"`
}

// Reconciler makes the official room of a batch contain every active roster
// member. It owns no data and only ever adds room members.
type Reconciler struct {
	Store Store
	Texts *localization.Localizer
	Retry RetryScheduler
	Log   *slog.Logger
}

// NewReconciler Constructor
func NewReconciler(store Store, texts *localization.Localizer, log *slog.Logger) *Reconciler {
	if texts == nil {
		texts = localization.Default("")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{Store: store, Texts: texts, Log: log}
}

// Reconcile brings the official room of batchID in line with the batch's active
// roster, creating the room on first use. Running it again on an unchanged
// roster writes nothing. Failing to add one member is recorded as a warning and
// does not stop the others.
func (r *Reconciler) Reconcile(ctx context.Context, batchID uint, actorID string) (*Result, error) {
	batch, err := r.Store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	active, err := r.Store.ListActiveBatchMembers(ctx, batchID)
	if err != nil {
		return nil, err
	}

	creator := actorID
	if creator == "" {
		creator = lo.FromPtrOr(batch.TeacherID, SystemActor)
	}
	room, created, err := r.Store.CreateRoom(ctx, storage.RoomSpec{
		Name:      batch.Name,
		Type:      models.RoomGroup,
		BatchID:   &batch.ID,
		Official:  true,
		CreatorID: creator,
	})
	if err != nil {
		return nil, fmt.Errorf("official room of batch %d: %w", batchID, err)
	}

	res := &Result{BatchID: batchID, ChatID: &room.ID, ChatCreated: created, Added: []string{}, Warnings: []string{}}
	if created {
		r.Log.Info("official room created", "batch_id", batchID, "chat_id", room.ID)
		_, err := r.Store.Append(ctx, models.AppendRequest{
			RoomID:   room.ID,
			Body:     r.Texts.ChatWelcome(batch.Name),
			IsSystem: true,
			BatchID:  &batch.ID,
		})
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("welcome message: %v", err))
		}
	}

	current, err := r.Store.ListMembers(ctx, room.ID)
	if err != nil {
		return res, fmt.Errorf("members of room %d: %w", room.ID, err)
	}
	present := lo.SliceToMap(current, func(m models.RoomMember) (string, bool) { return m.UserID, true })

	for _, want := range desiredMembers(batch, active) {
		if present[want.UserID] {
			continue
		}
		_, added, err := r.Store.AddMember(ctx, room.ID, want.UserID, want.Role, want.RoleID)
		if err != nil {
			r.Log.Warn("add room member failed", "batch_id", batchID, "chat_id", room.ID, "user_id", want.UserID, "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("user %s: %v", want.UserID, err))
			continue
		}
		present[want.UserID] = true
		if added {
			res.Added = append(res.Added, want.UserID)
		}
	}
	return res, nil
}

// Sync runs Reconcile and absorbs its failure: the error is logged, reported in
// the result's warnings and, when a RetryScheduler is set, a later retry is queued.
func (r *Reconciler) Sync(ctx context.Context, batchID uint, actorID string) *Result {
	res, err := r.Reconcile(ctx, batchID, actorID)
	if err != nil {
		r.Log.Error("reconcile failed", "batch_id", batchID, "error", err)
		if res == nil {
			res = &Result{BatchID: batchID, Added: []string{}, Warnings: []string{}}
		}
		res.Warnings = append(res.Warnings, err.Error())
		if !errors.Is(err, models.ErrNotFound) {
			r.scheduleRetry(ctx, batchID, actorID)
		}
		return res
	}
	if len(res.Warnings) > 0 {
		r.Log.Warn("reconcile finished with warnings", "batch_id", batchID, "warnings", len(res.Warnings))
		r.scheduleRetry(ctx, batchID, actorID)
	}
	return res
}

func (r *Reconciler) scheduleRetry(ctx context.Context, batchID uint, actorID string) {
	if r.Retry == nil {
		return
	}
	if err := r.Retry.ScheduleReconcile(ctx, batchID, actorID); err != nil {
		r.Log.Error("schedule reconcile retry failed", "batch_id", batchID, "error", err)
	}
}

// desiredMembers lists who belongs in the batch room: the active roster in join
// order, followed by the batch teacher when the roster does not already name them.
func desiredMembers(batch *models.Batch, active []models.BatchMember) []models.RoomMember {
	out := lo.Map(active, func(m models.BatchMember, _ int) models.RoomMember {
		return models.RoomMember{UserID: m.UserID, Role: models.RoomRoleFor(m.Role), RoleID: m.RoleID}
	})
	if batch.TeacherID != nil && *batch.TeacherID != "" {
		out = append(out, models.RoomMember{UserID: *batch.TeacherID, Role: models.RoomRoleTeacher})
	}
	return lo.UniqBy(out, func(m models.RoomMember) string { return m.UserID })
}

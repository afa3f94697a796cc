package roster

import (
	"batchchat/backend/internal/models"
	"batchchat/backend/internal/storage"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MemberInput is one roster entry supplied by a caller.
type MemberInput struct {
	UserID string            `json:"user_id" binding:"required"`
	Role   models.MemberRole `json:"role"`
	RoleID *uint             `json:"role_id"`
}

// CreateBatchInput is the payload of a batch creation.
type CreateBatchInput struct {
	CourseID     uint          `json:"course_id" binding:"required"`
	Name         string        `json:"batch_name" binding:"required"`
	TeacherID    *string       `json:"teacher_id"`
	StartDate    *time.Time    `json:"start_date"`
	EndDate      *time.Time    `json:"end_date"`
	ScheduleTime string        `json:"schedule_time"`
	Members      []MemberInput `json:"members"`
}

// UpdateBatchInput carries the fields to change; nil fields are left alone.
// Members listed here are added or re-activated, members left out are kept.
type UpdateBatchInput struct {
	CourseID     *uint               `json:"course_id"`
	Name         *string             `json:"batch_name"`
	TeacherID    *string             `json:"teacher_id"`
	Status       *models.BatchStatus `json:"status"`
	StartDate    *time.Time          `json:"start_date"`
	EndDate      *time.Time          `json:"end_date"`
	ScheduleTime *string             `json:"schedule_time"`
	Members      []MemberInput       `json:"members"`
}

// BatchService runs batch edits and re-syncs the batch room after each one.
type BatchService struct {
	Store storage.RosterStore
	Sync  Syncer
	Log   *slog.Logger
}

// NewBatchService Constructor
func NewBatchService(store storage.RosterStore, sync Syncer, log *slog.Logger) *BatchService {
	if log == nil {
		log = slog.Default()
	}
	return &BatchService{Store: store, Sync: sync, Log: log}
}

// CreateBatch stores a batch with its initial roster and provisions its room.
// A failing room sync does not fail the creation; it shows up in the result.
func (s *BatchService) CreateBatch(ctx context.Context, actorID string, in CreateBatchInput) (*models.Batch, *Result, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.CourseID == 0 {
		return nil, nil, fmt.Errorf("%w: course_id and batch_name are required", models.ErrValidation)
	}
	if err := validateTeacher(in.TeacherID); err != nil {
		return nil, nil, err
	}
	members, err := toBatchMembers(in.Members)
	if err != nil {
		return nil, nil, err
	}

	batch := &models.Batch{
		CourseID:     in.CourseID,
		Name:         name,
		TeacherID:    in.TeacherID,
		Status:       models.BatchActive,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		ScheduleTime: in.ScheduleTime,
		Members:      members,
	}
	if err := s.Store.CreateBatch(ctx, batch); err != nil {
		return nil, nil, err
	}
	s.Log.Info("batch created", "batch_id", batch.ID, "members", len(members), "actor", actorID)

	return batch, s.Sync.Sync(ctx, batch.ID, actorID), nil
}

// UpdateBatch applies a partial update. The room is re-synced afterwards, which
// also provisions a room for batches that never got one.
func (s *BatchService) UpdateBatch(ctx context.Context, actorID string, batchID uint, in UpdateBatchInput) (*models.Batch, *Result, error) {
	batch, err := s.Store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, nil, fmt.Errorf("%w: batch_name must not be empty", models.ErrValidation)
		}
		batch.Name = name
	}
	if in.CourseID != nil {
		batch.CourseID = *in.CourseID
	}
	if in.TeacherID != nil {
		if err := validateTeacher(in.TeacherID); err != nil {
			return nil, nil, err
		}
		batch.TeacherID = in.TeacherID
	}
	if in.Status != nil {
		if *in.Status != models.BatchActive && *in.Status != models.BatchInactive {
			return nil, nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, *in.Status)
		}
		batch.Status = *in.Status
	}
	if in.StartDate != nil {
		batch.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		batch.EndDate = in.EndDate
	}
	if in.ScheduleTime != nil {
		batch.ScheduleTime = *in.ScheduleTime
	}
	members, err := toBatchMembers(in.Members)
	if err != nil {
		return nil, nil, err
	}

	if err := s.Store.UpdateBatch(ctx, batch); err != nil {
		return nil, nil, err
	}
	for i := range members {
		members[i].BatchID = batchID
		if _, _, err := s.Store.UpsertBatchMember(ctx, &members[i]); err != nil {
			return nil, nil, err
		}
	}

	updated, err := s.Store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	return updated, s.Sync.Sync(ctx, batchID, actorID), nil
}

// DeleteBatch marks the batch inactive. Its room and messages stay.
func (s *BatchService) DeleteBatch(ctx context.Context, batchID uint) error {
	batch, err := s.Store.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	batch.Status = models.BatchInactive
	return s.Store.UpdateBatch(ctx, batch)
}

// AddMember adds or re-activates one roster entry and syncs the room.
func (s *BatchService) AddMember(ctx context.Context, actorID string, batchID uint, in MemberInput) (*models.BatchMember, *Result, error) {
	if _, err := s.Store.GetBatch(ctx, batchID); err != nil {
		return nil, nil, err
	}
	members, err := toBatchMembers([]MemberInput{in})
	if err != nil {
		return nil, nil, err
	}
	member := members[0]
	member.BatchID = batchID

	stored, _, err := s.Store.UpsertBatchMember(ctx, &member)
	if err != nil {
		return nil, nil, err
	}
	return stored, s.Sync.Sync(ctx, batchID, actorID), nil
}

// RemoveMember deactivates a roster entry. Room membership is add-only, so the
// user keeps their seat in the room.
func (s *BatchService) RemoveMember(ctx context.Context, batchID uint, userID string) error {
	return s.Store.SetMemberStatus(ctx, batchID, userID, models.MemberInactive)
}

// ListMembers returns the whole roster of a batch.
func (s *BatchService) ListMembers(ctx context.Context, batchID uint) ([]models.BatchMember, error) {
	if _, err := s.Store.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	return s.Store.ListBatchMembers(ctx, batchID)
}

func validateTeacher(teacherID *string) error {
	if teacherID == nil || *teacherID == "" {
		return nil
	}
	if _, err := uuid.Parse(*teacherID); err != nil {
		return fmt.Errorf("%w: teacher_id %q is not a uuid", models.ErrValidation, *teacherID)
	}
	return nil
}

// toBatchMembers validates caller input and collapses repeated users, keeping
// the first entry.
func toBatchMembers(in []MemberInput) ([]models.BatchMember, error) {
	out := make([]models.BatchMember, 0, len(in))
	for _, m := range in {
		if _, err := uuid.Parse(m.UserID); err != nil {
			return nil, fmt.Errorf("%w: user_id %q is not a uuid", models.ErrValidation, m.UserID)
		}
		role := m.Role
		if role == "" {
			role = models.RoleStudent
		}
		if !role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", models.ErrValidation, m.Role)
		}
		out = append(out, models.BatchMember{UserID: m.UserID, Role: role, RoleID: m.RoleID, Status: models.MemberActive})
	}
	return lo.UniqBy(out, func(m models.BatchMember) string { return m.UserID }), nil
}

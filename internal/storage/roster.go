package storage

import (
	"batchchat/backend/internal/models"
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateBatch stores a batch together with any members it carries.
func (s *Service) CreateBatch(ctx context.Context, batch *models.Batch) error {
	if batch.Status == "" {
		batch.Status = models.BatchActive
	}
	err := s.DB.WithContext(ctx).Create(batch).Error
	return classify(err, "create batch")
}

// GetBatch returns the batch with all of its members, active or not.
func (s *Service) GetBatch(ctx context.Context, batchID uint) (*models.Batch, error) {
	var batch models.Batch
	err := s.DB.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at asc, id asc") }).
		First(&batch, batchID).Error
	if err != nil {
		return nil, classify(err, fmt.Sprintf("batch %d", batchID))
	}
	return &batch, nil
}

// UpdateBatch saves the batch's own columns. Members are managed separately.
func (s *Service) UpdateBatch(ctx context.Context, batch *models.Batch) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Batch
		if err := tx.Select("id").First(&existing, batch.ID).Error; err != nil {
			return err
		}
		return tx.Model(&existing).Updates(map[string]any{
			"course_id":     batch.CourseID,
			"name":          batch.Name,
			"teacher_id":    batch.TeacherID,
			"status":        batch.Status,
			"start_date":    batch.StartDate,
			"end_date":      batch.EndDate,
			"schedule_time": batch.ScheduleTime,
		}).Error
	})
	return classify(err, fmt.Sprintf("update batch %d", batch.ID))
}

// FindActiveBatchByCourse returns the most recent active batch of a course.
func (s *Service) FindActiveBatchByCourse(ctx context.Context, courseID uint) (*models.Batch, error) {
	var batch models.Batch
	err := s.DB.WithContext(ctx).
		Where("course_id = ? AND status = ?", courseID, models.BatchActive).
		Order("id desc").
		First(&batch).Error
	if err != nil {
		return nil, classify(err, fmt.Sprintf("active batch for course %d", courseID))
	}
	return &batch, nil
}

// UpsertBatchMember inserts a roster entry or brings the existing (batch, user) entry
// in line with the requested role and status. The bool reports whether anything
// was written.
func (s *Service) UpsertBatchMember(ctx context.Context, member *models.BatchMember) (*models.BatchMember, bool, error) {
	var (
		stored  models.BatchMember
		changed bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate := *member
		candidate.ID = 0
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			stored, changed = candidate, true
			return nil
		}

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("batch_id = ? AND user_id = ?", member.BatchID, member.UserID).
			First(&stored).Error
		if err != nil {
			return err
		}
		updates := map[string]any{}
		if member.Role != "" && stored.Role != member.Role {
			updates["role"] = member.Role
		}
		want := member.Status
		if want == "" {
			want = models.MemberActive
		}
		if stored.Status != want {
			updates["status"] = want
		}
		if member.RoleID != nil && (stored.RoleID == nil || *stored.RoleID != *member.RoleID) {
			updates["role_id"] = *member.RoleID
		}
		if len(updates) == 0 {
			return nil
		}
		changed = true
		if err := tx.Model(&stored).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&stored, stored.ID).Error
	})
	if err != nil {
		return nil, false, classify(err, fmt.Sprintf("upsert member %s of batch %d", member.UserID, member.BatchID))
	}
	return &stored, changed, nil
}

// SetMemberStatus flips one roster entry's status.
func (s *Service) SetMemberStatus(ctx context.Context, batchID uint, userID string, status models.MemberStatus) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.BatchMember
		if err := tx.Where("batch_id = ? AND user_id = ?", batchID, userID).First(&member).Error; err != nil {
			return err
		}
		return tx.Model(&member).Update("status", status).Error
	})
	return classify(err, fmt.Sprintf("member %s of batch %d", userID, batchID))
}

// ListActiveBatchMembers returns the active roster of a batch in join order.
func (s *Service) ListActiveBatchMembers(ctx context.Context, batchID uint) ([]models.BatchMember, error) {
	var members []models.BatchMember
	err := s.DB.WithContext(ctx).
		Where("batch_id = ? AND status = ?", batchID, models.MemberActive).
		Order("joined_at asc, id asc").
		Find(&members).Error
	return members, classify(err, "list active members")
}

// ListBatchMembers returns every roster entry of a batch.
func (s *Service) ListBatchMembers(ctx context.Context, batchID uint) ([]models.BatchMember, error) {
	var members []models.BatchMember
	err := s.DB.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("joined_at asc, id asc").
		Find(&members).Error
	return members, classify(err, "list members")
}

// GetMemberByUserAndCourse finds the user's roster entry in any batch of the course.
func (s *Service) GetMemberByUserAndCourse(ctx context.Context, userID string, courseID uint) (*models.BatchMember, error) {
	var member models.BatchMember
	err := s.DB.WithContext(ctx).
		Joins("JOIN batches ON batches.id = batch_members.batch_id").
		Where("batch_members.user_id = ? AND batches.course_id = ?", userID, courseID).
		Order("batch_members.id desc").
		First(&member).Error
	if err != nil {
		return nil, classify(err, fmt.Sprintf("member %s of course %d", userID, courseID))
	}
	return &member, nil
}

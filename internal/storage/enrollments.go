package storage

import (
	"batchchat/backend/internal/models"
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateEnrollment inserts an enrollment unless the (student, course) pair already
// exists, in which case the stored row is returned with created=false.
func (s *Service) CreateEnrollment(ctx context.Context, e *models.Enrollment) (*models.Enrollment, bool, error) {
	var (
		stored  models.Enrollment
		created bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stored = *e
		stored.ID = 0
		if stored.Status == "" {
			stored.Status = models.EnrollmentActive
		}
		if stored.EnrolledAt.IsZero() {
			stored.EnrolledAt = s.now()
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&stored)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			created = true
			return nil
		}
		stored = models.Enrollment{}
		return latest(tx).Where("student_id = ? AND course_id = ?", e.StudentID, e.CourseID).First(&stored).Error
	})
	if err != nil {
		return nil, false, classify(err, "create enrollment")
	}
	return &stored, created, nil
}

// SetEnrollmentStatus changes the status of an enrollment.
func (s *Service) SetEnrollmentStatus(ctx context.Context, enrollmentID uint, status models.EnrollmentStatus) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e models.Enrollment
		if err := tx.Select("id").First(&e, enrollmentID).Error; err != nil {
			return err
		}
		return tx.Model(&e).Update("status", status).Error
	})
	return classify(err, fmt.Sprintf("enrollment %d", enrollmentID))
}

// ListEnrollments returns all enrollments of a student, newest first.
func (s *Service) ListEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	err := s.DB.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("id desc").
		Find(&out).Error
	return out, classify(err, "list enrollments")
}

// GetCourse reads a course from the catalog table.
func (s *Service) GetCourse(ctx context.Context, courseID uint) (*models.Course, error) {
	var course models.Course
	if err := s.DB.WithContext(ctx).First(&course, courseID).Error; err != nil {
		return nil, classify(err, fmt.Sprintf("course %d", courseID))
	}
	return &course, nil
}

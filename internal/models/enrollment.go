package models

import "time"

// EnrollmentStatus is the status of a student's enrollment in a course.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentPaused    EnrollmentStatus = "paused"
)

// Enrollment links a student to a course, unique per (StudentID, CourseID).
type Enrollment struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	StudentID     string           `gorm:"size:36;not null;uniqueIndex:idx_student_course" json:"student_id"`
	CourseID      uint             `gorm:"not null;uniqueIndex:idx_student_course" json:"course_id"`
	TeacherID     *string          `gorm:"size:36" json:"teacher_id,omitempty"`
	PreferredTime string           `gorm:"size:64" json:"preferred_time,omitempty"`
	Status        EnrollmentStatus `gorm:"size:16;not null;default:active" json:"status"`
	EnrolledAt    time.Time        `json:"enrollment_date"`
}

// Outcome values reported back to the enrolling user.
const (
	OutcomeEnrolled        = "enrolled"
	OutcomeAlreadyEnrolled = "already_enrolled"
)

// EnrollmentResult describes where an enrollment landed.
type EnrollmentResult struct {
	EnrollmentID uint      `json:"id"`
	StudentID    string    `json:"student_id"`
	CourseID     uint      `json:"course_id"`
	BatchID      *uint     `json:"batch_id"`
	BatchName    *string   `json:"batch_name"`
	ChatID       *uint     `json:"chat_id"`
	EnrolledAt   time.Time `json:"enrollment_date"`
	Status       string    `json:"status"`
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// BatchStatus is the lifecycle status of a batch. Batches are never hard-deleted,
// removing one flips it to BatchInactive.
type BatchStatus string

const (
	BatchActive   BatchStatus = "active"
	BatchInactive BatchStatus = "inactive"
)

// MemberRole is the role a user holds inside a batch roster.
type MemberRole string

const (
	RoleStudent     MemberRole = "student"
	RoleTeacher     MemberRole = "teacher"
	RoleCoordinator MemberRole = "coordinator"
	RoleCounselor   MemberRole = "counselor"
	RoleSupport     MemberRole = "support"
)

// Valid reports whether r is one of the known roster roles.
func (r MemberRole) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleCoordinator, RoleCounselor, RoleSupport:
		return true
	}
	return false
}

// MemberStatus is the status of a single roster entry.
type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
)

// Batch is a cohort of users taking one course together.
type Batch struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	CourseID     uint        `gorm:"not null;index" json:"course_id"`
	Name         string      `gorm:"size:255;not null" json:"batch_name"`
	TeacherID    *string     `gorm:"size:36;index" json:"teacher_id,omitempty"`
	Status       BatchStatus `gorm:"size:16;not null;default:active;index" json:"status"`
	StartDate    *time.Time  `json:"start_date,omitempty"`
	EndDate      *time.Time  `json:"end_date,omitempty"`
	ScheduleTime string      `gorm:"size:64" json:"schedule_time,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`

	Members []BatchMember `gorm:"foreignKey:BatchID" json:"members,omitempty"`
}

// IsActive reports whether the batch is still running.
func (b *Batch) IsActive() bool {
	return b.Status == BatchActive
}

// BatchMember is one roster entry. The (BatchID, UserID) pair is unique, so a
// user has at most one active entry per batch; re-adding an inactive member
// re-activates the existing row.
type BatchMember struct {
	ID       uint         `gorm:"primaryKey" json:"id"`
	BatchID  uint         `gorm:"not null;uniqueIndex:idx_batch_user" json:"batch_id"`
	UserID   string       `gorm:"size:36;not null;uniqueIndex:idx_batch_user;index" json:"user_id"`
	Role     MemberRole   `gorm:"size:16;not null;default:student" json:"role"`
	RoleID   *uint        `json:"role_id,omitempty"`
	Status   MemberStatus `gorm:"size:16;not null;default:active;index" json:"status"`
	JoinedAt time.Time    `json:"joined_at"`
}

// BeforeCreate fills in defaults for fields the caller left empty.
func (m *BatchMember) BeforeCreate(tx *gorm.DB) (err error) {
	if m.Role == "" {
		m.Role = RoleStudent
	}
	if m.Status == "" {
		m.Status = MemberActive
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	return
}

// Course is the read-only slice of the external course catalog the enrollment
// flow needs.
type Course struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Title string `gorm:"size:255;not null" json:"title"`
}

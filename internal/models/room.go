package models

import (
	"time"

	"gorm.io/gorm"
)

// RoomType distinguishes group rooms from one-to-one conversations.
type RoomType string

const (
	RoomGroup  RoomType = "group"
	RoomDirect RoomType = "direct"
)

// RoomRole is the role of a member inside a chat room.
type RoomRole string

const (
	RoomRoleStudent RoomRole = "student"
	RoomRoleTeacher RoomRole = "teacher"
	RoomRoleAdmin   RoomRole = "admin"
)

// Room is a chat room. Official rooms are provisioned automatically for a batch;
// OfficialBatchID is only set on those and carries the unique index that allows a
// single official room per batch. BatchID may also be set on ad-hoc rooms.
type Room struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:255" json:"name"`
	Type            RoomType  `gorm:"size:16;not null;default:group" json:"chat_type"`
	BatchID         *uint     `gorm:"index" json:"batch_id,omitempty"`
	OfficialBatchID *uint     `gorm:"uniqueIndex" json:"-"`
	IsOfficial      bool      `gorm:"not null;default:false" json:"is_official"`
	CreatedBy       string    `gorm:"size:36;not null" json:"created_by"`
	LastSeq         uint64    `gorm:"not null;default:0" json:"last_seq"`
	CreatedAt       time.Time `json:"created_at"`

	Members []RoomMember `gorm:"foreignKey:RoomID" json:"members,omitempty"`
}

// RoomMember is one member of a room, unique per (RoomID, UserID).
type RoomMember struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	RoomID   uint      `gorm:"not null;uniqueIndex:idx_room_user" json:"chat_id"`
	UserID   string    `gorm:"size:36;not null;uniqueIndex:idx_room_user;index" json:"user_id"`
	Role     RoomRole  `gorm:"size:16;not null;default:student" json:"role"`
	RoleID   *uint     `json:"role_id,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// BeforeCreate fills in the join time and default role.
func (m *RoomMember) BeforeCreate(tx *gorm.DB) (err error) {
	if m.Role == "" {
		m.Role = RoomRoleStudent
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	return
}

// RoomRoleFor maps a roster role onto the matching room role. Staff roles become
// admins, anything unknown falls back to student.
func RoomRoleFor(role MemberRole) RoomRole {
	switch role {
	case RoleTeacher:
		return RoomRoleTeacher
	case RoleCoordinator, RoleCounselor, RoleSupport:
		return RoomRoleAdmin
	default:
		return RoomRoleStudent
	}
}

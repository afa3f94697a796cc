package models_test

import (
	"batchchat/backend/internal/models"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestBatchMemberBeforeCreate_SetsDefaults verifies that the hook fills role, status and join time.
func TestBatchMemberBeforeCreate_SetsDefaults(t *testing.T) {
	m := &models.BatchMember{BatchID: 1, UserID: "u1"}

	err := m.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	assert.NoError(t, err)
	assert.Equal(t, models.RoleStudent, m.Role)
	assert.Equal(t, models.MemberActive, m.Status)
	assert.False(t, m.JoinedAt.IsZero(), "JoinedAt must be populated")
}

// TestBatchMemberBeforeCreate_PreservesValues verifies that explicit values are kept.
func TestBatchMemberBeforeCreate_PreservesValues(t *testing.T) {
	joined := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	m := &models.BatchMember{
		BatchID:  1,
		UserID:   "u1",
		Role:     models.RoleTeacher,
		Status:   models.MemberInactive,
		JoinedAt: joined,
	}

	assert.NoError(t, m.BeforeCreate(nil))
	assert.Equal(t, models.RoleTeacher, m.Role)
	assert.Equal(t, models.MemberInactive, m.Status)
	assert.Equal(t, joined, m.JoinedAt)
}

func TestRoomMemberBeforeCreate(t *testing.T) {
	m := &models.RoomMember{RoomID: 3, UserID: "u1"}
	assert.NoError(t, m.BeforeCreate(nil))
	assert.Equal(t, models.RoomRoleStudent, m.Role)
	assert.False(t, m.JoinedAt.IsZero())
}

func TestMessageBeforeCreate(t *testing.T) {
	m := &models.Message{RoomID: 1, Body: "hi"}
	assert.NoError(t, m.BeforeCreate(nil))
	assert.Equal(t, models.MessageStatusSent, m.Status)
}

func TestRoomRoleFor(t *testing.T) {
	tests := []struct {
		in   models.MemberRole
		want models.RoomRole
	}{
		{models.RoleStudent, models.RoomRoleStudent},
		{models.RoleTeacher, models.RoomRoleTeacher},
		{models.RoleCoordinator, models.RoomRoleAdmin},
		{models.RoleCounselor, models.RoomRoleAdmin},
		{models.RoleSupport, models.RoomRoleAdmin},
		{models.MemberRole("parent"), models.RoomRoleStudent},
		{models.MemberRole(""), models.RoomRoleStudent},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, models.RoomRoleFor(tt.in))
		})
	}
}

func TestMemberRoleValid(t *testing.T) {
	assert.True(t, models.RoleSupport.Valid())
	assert.False(t, models.MemberRole("admin").Valid())
}

func TestNewOutboundFrame(t *testing.T) {
	sender := "8b6f1f8e-3c1f-4c55-9a53-2b7c8f0e8f11"
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	msg := &models.Message{
		ID:        42,
		RoomID:    7,
		Seq:       3,
		SenderID:  &sender,
		Body:      "hello",
		Status:    models.MessageStatusSent,
		CreatedAt: created,
	}

	frame := models.NewOutboundFrame(msg)

	assert.Equal(t, uint(42), frame.ID)
	assert.Equal(t, uint64(3), frame.Seq)
	assert.Equal(t, uint(7), frame.ChatID)
	assert.Equal(t, "hello", frame.Message)
	assert.Equal(t, &sender, frame.SenderID)
	assert.Equal(t, "2026-01-02T02:04:05Z", frame.CreatedAt)
	assert.Equal(t, "sent", frame.Status)
}

// TestUniqueIndexTags guards the unique indexes that keep memberships single.
func TestUniqueIndexTags(t *testing.T) {
	tests := []struct {
		model any
		field string
		tag   string
	}{
		{models.BatchMember{}, "BatchID", "uniqueIndex:idx_batch_user"},
		{models.BatchMember{}, "UserID", "uniqueIndex:idx_batch_user"},
		{models.RoomMember{}, "RoomID", "uniqueIndex:idx_room_user"},
		{models.RoomMember{}, "UserID", "uniqueIndex:idx_room_user"},
		{models.Room{}, "OfficialBatchID", "uniqueIndex"},
		{models.Message{}, "Seq", "uniqueIndex:idx_room_seq"},
		{models.ReadMarker{}, "MessageID", "uniqueIndex:idx_message_user"},
		{models.Enrollment{}, "CourseID", "uniqueIndex:idx_student_course"},
	}

	for _, tt := range tests {
		typ := reflect.TypeOf(tt.model)
		t.Run(typ.Name()+"."+tt.field, func(t *testing.T) {
			f, found := typ.FieldByName(tt.field)
			assert.True(t, found)
			assert.Contains(t, f.Tag.Get("gorm"), tt.tag)
		})
	}
}

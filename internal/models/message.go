package models

import (
	"time"

	"gorm.io/gorm"
)

// MessageStatusSent is the only status a stored message carries today.
const MessageStatusSent = "sent"

// Message is an immutable entry of a room's message log.
// Seq is assigned by the message log and is strictly increasing per room,
// starting at 1, with no gaps.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"not null;uniqueIndex:idx_room_seq" json:"chat_id"`
	Seq       uint64    `gorm:"not null;uniqueIndex:idx_room_seq" json:"seq"`
	SenderID  *string   `gorm:"size:36;index" json:"sender_id"`
	Body      string    `gorm:"type:text;not null" json:"message"`
	BatchID   *uint     `gorm:"index" json:"batch_id,omitempty"`
	IsSystem  bool      `gorm:"not null;default:false" json:"is_system_message"`
	Status    string    `gorm:"size:16;not null;default:sent" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate sets the default status.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.Status == "" {
		m.Status = MessageStatusSent
	}
	return
}

// ReadMarker records that a user has read a message. It is written once, the
// ReadAt of the first acknowledgement is never refreshed.
type ReadMarker struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_message_user" json:"message_id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_message_user" json:"user_id"`
	RoomID    uint      `gorm:"not null;index" json:"chat_id"`
	ReadAt    time.Time `json:"read_at"`
}

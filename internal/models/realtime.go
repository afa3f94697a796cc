package models

import "time"

// InboundFrame is what a client sends over the real-time channel.
// Frames without a sender or a body are dropped without a reply.
type InboundFrame struct {
	SenderID string `json:"sender_id" validate:"required"`
	Message  string `json:"message" validate:"required"`
	BatchID  *uint  `json:"batch_id,omitempty"`
}

// OutboundFrame is what every connection of a room receives for a stored message.
type OutboundFrame struct {
	ID        uint    `json:"id"`
	Seq       uint64  `json:"seq"`
	Message   string  `json:"message"`
	SenderID  *string `json:"sender_id"`
	ChatID    uint    `json:"chat_id"`
	CreatedAt string  `json:"created_at"`
	Status    string  `json:"status"`
	IsSystem  bool    `json:"is_system"`
}

// NewOutboundFrame renders a stored message for delivery.
func NewOutboundFrame(m *Message) OutboundFrame {
	return OutboundFrame{
		ID:        m.ID,
		Seq:       m.Seq,
		Message:   m.Body,
		SenderID:  m.SenderID,
		ChatID:    m.RoomID,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
		Status:    m.Status,
		IsSystem:  m.IsSystem,
	}
}

// AppendRequest is the input of a message log append.
type AppendRequest struct {
	RoomID   uint
	SenderID *string
	Body     string
	IsSystem bool
	BatchID  *uint
}

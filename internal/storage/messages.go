package storage

import (
	"batchchat/backend/internal/config"
	"batchchat/backend/internal/models"
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Append stores a message and assigns it the next sequence number of its room.
//
// The room's last_seq counter is bumped with a single UPDATE inside the same
// transaction as the insert. The UPDATE holds the room row lock until commit, so
// concurrent appends to one room serialize and a rolled back append releases its
// number: sequences stay strictly increasing and gap-free.
func (s *Service) Append(ctx context.Context, req models.AppendRequest) (*models.Message, error) {
	if req.Body == "" {
		return nil, fmt.Errorf("%w: empty message body", models.ErrValidation)
	}

	msg := models.Message{
		RoomID:    req.RoomID,
		SenderID:  req.SenderID,
		Body:      req.Body,
		BatchID:   req.BatchID,
		IsSystem:  req.IsSystem,
		Status:    models.MessageStatusSent,
		CreatedAt: s.now(),
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Room{}).
			Where("id = ?", req.RoomID).
			UpdateColumn("last_seq", gorm.Expr("last_seq + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: room %d", models.ErrNotFound, req.RoomID)
		}

		var room models.Room
		if err := tx.Select("id", "last_seq").First(&room, req.RoomID).Error; err != nil {
			return err
		}
		msg.Seq = room.LastSeq
		return tx.Create(&msg).Error
	})
	if err != nil {
		return nil, classify(err, fmt.Sprintf("append to room %d", req.RoomID))
	}
	return &msg, nil
}

// List returns up to limit messages of a room, newest first. With beforeSeq > 0
// only messages older than that sequence are returned.
func (s *Service) List(ctx context.Context, roomID uint, beforeSeq uint64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = config.DefaultPageSize
	}
	if limit > config.MaxPageSize {
		limit = config.MaxPageSize
	}

	q := s.DB.WithContext(ctx).Where("room_id = ?", roomID)
	if beforeSeq > 0 {
		q = q.Where("seq < ?", beforeSeq)
	}

	var msgs []models.Message
	err := q.Order("seq desc").Limit(limit).Find(&msgs).Error
	return msgs, classify(err, fmt.Sprintf("list messages of room %d", roomID))
}

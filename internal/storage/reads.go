package storage

import (
	"batchchat/backend/internal/models"
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MarkRead records that userID read messageID. The message must belong to roomID.
// Marking twice is not an error: the first marker, with its original ReadAt, is
// returned.
func (s *Service) MarkRead(ctx context.Context, messageID uint, userID string, roomID uint) (*models.ReadMarker, error) {
	var marker models.ReadMarker
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.Message{}).
			Where("id = ? AND room_id = ?", messageID, roomID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: message %d in room %d", models.ErrNotFound, messageID, roomID)
		}

		marker = models.ReadMarker{MessageID: messageID, UserID: userID, RoomID: roomID, ReadAt: s.now()}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		marker = models.ReadMarker{}
		return latest(tx).Where("message_id = ? AND user_id = ?", messageID, userID).First(&marker).Error
	})
	if err != nil {
		return nil, classify(err, "mark read")
	}
	return &marker, nil
}

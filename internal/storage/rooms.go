package storage

import (
	"batchchat/backend/internal/config"
	"batchchat/backend/internal/models"
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoomSpec describes a room to create.
type RoomSpec struct {
	Name      string
	Type      models.RoomType
	BatchID   *uint
	Official  bool
	CreatorID string
	Members   []models.RoomMember
}

// CreateRoom creates a room. For an official batch room the lookup and the insert
// share one transaction and the insert is guarded by the unique official_batch_id
// index: a caller that loses the race gets the existing room back with
// created=false and its initial members are not written.
func (s *Service) CreateRoom(ctx context.Context, spec RoomSpec) (*models.Room, bool, error) {
	if spec.Official && spec.BatchID == nil {
		return nil, false, fmt.Errorf("%w: official room needs a batch", models.ErrValidation)
	}
	if spec.Type == "" {
		spec.Type = models.RoomGroup
	}

	var (
		room    models.Room
		created bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if spec.Official {
			err := tx.Where("official_batch_id = ?", *spec.BatchID).First(&room).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		room = models.Room{
			Name:       spec.Name,
			Type:       spec.Type,
			BatchID:    spec.BatchID,
			IsOfficial: spec.Official,
			CreatedBy:  spec.CreatorID,
			CreatedAt:  s.now(),
		}
		if spec.Official {
			batchID := *spec.BatchID
			room.OfficialBatchID = &batchID
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&room)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if !spec.Official {
				return fmt.Errorf("%w: room was not inserted", models.ErrConflict)
			}
			room = models.Room{}
			return latest(tx).Where("official_batch_id = ?", *spec.BatchID).First(&room).Error
		}
		created = true

		unique := lo.UniqBy(spec.Members, func(m models.RoomMember) string { return m.UserID })
		for _, m := range unique {
			member := models.RoomMember{RoomID: room.ID, UserID: m.UserID, Role: m.Role, RoleID: m.RoleID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if spec.Official && (isUniqueViolation(err) || errors.Is(err, gorm.ErrRecordNotFound)) {
			existing, getErr := s.GetRoomByBatch(ctx, *spec.BatchID)
			return existing, false, getErr
		}
		return nil, false, classify(err, "create room")
	}
	return &room, created, nil
}

// GetRoom returns a room by id.
func (s *Service) GetRoom(ctx context.Context, roomID uint) (*models.Room, error) {
	var room models.Room
	if err := s.DB.WithContext(ctx).First(&room, roomID).Error; err != nil {
		return nil, classify(err, fmt.Sprintf("room %d", roomID))
	}
	return &room, nil
}

// GetRoomByBatch returns the official room of a batch.
func (s *Service) GetRoomByBatch(ctx context.Context, batchID uint) (*models.Room, error) {
	var room models.Room
	err := s.DB.WithContext(ctx).Where("official_batch_id = ?", batchID).First(&room).Error
	if err != nil {
		return nil, classify(err, fmt.Sprintf("room of batch %d", batchID))
	}
	return &room, nil
}

// AddMember is an upsert keyed on (room, user). When the pair already exists the
// stored row is returned unchanged and created is false; a duplicate is never an
// error.
func (s *Service) AddMember(ctx context.Context, roomID uint, userID string, role models.RoomRole, roleID *uint) (*models.RoomMember, bool, error) {
	var (
		member  models.RoomMember
		created bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Room{}).Where("id = ?", roomID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: room %d", models.ErrNotFound, roomID)
		}

		member = models.RoomMember{RoomID: roomID, UserID: userID, Role: role, RoleID: roleID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			created = true
			return nil
		}
		member = models.RoomMember{}
		return latest(tx).Where("room_id = ? AND user_id = ?", roomID, userID).First(&member).Error
	})
	if err != nil {
		return nil, false, classify(err, fmt.Sprintf("add member %s to room %d", userID, roomID))
	}
	return &member, created, nil
}

// ListMembers returns the members of a room in join order.
func (s *Service) ListMembers(ctx context.Context, roomID uint) ([]models.RoomMember, error) {
	var members []models.RoomMember
	err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("joined_at asc, id asc").
		Find(&members).Error
	return members, classify(err, "list room members")
}

// ListRoomsForUser returns the rooms the user belongs to, newest first.
func (s *Service) ListRoomsForUser(ctx context.Context, userID string, offset, limit int) ([]models.Room, error) {
	if limit <= 0 {
		limit = config.DefaultPageSize
	}
	if limit > config.MaxPageSize {
		limit = config.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var rooms []models.Room
	err := s.DB.WithContext(ctx).
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userID).
		Order("rooms.id desc").
		Offset(offset).
		Limit(limit).
		Find(&rooms).Error
	return rooms, classify(err, "list rooms for user")
}

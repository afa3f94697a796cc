package storage

import (
	"batchchat/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RosterStore owns batches and their members.
type RosterStore interface {
	CreateBatch(ctx context.Context, batch *models.Batch) error
	GetBatch(ctx context.Context, batchID uint) (*models.Batch, error)
	UpdateBatch(ctx context.Context, batch *models.Batch) error
	FindActiveBatchByCourse(ctx context.Context, courseID uint) (*models.Batch, error)

	UpsertBatchMember(ctx context.Context, member *models.BatchMember) (*models.BatchMember, bool, error)
	SetMemberStatus(ctx context.Context, batchID uint, userID string, status models.MemberStatus) error
	ListActiveBatchMembers(ctx context.Context, batchID uint) ([]models.BatchMember, error)
	ListBatchMembers(ctx context.Context, batchID uint) ([]models.BatchMember, error)
	GetMemberByUserAndCourse(ctx context.Context, userID string, courseID uint) (*models.BatchMember, error)
}

// RoomDirectory owns rooms and room membership.
type RoomDirectory interface {
	CreateRoom(ctx context.Context, spec RoomSpec) (*models.Room, bool, error)
	GetRoom(ctx context.Context, roomID uint) (*models.Room, error)
	GetRoomByBatch(ctx context.Context, batchID uint) (*models.Room, error)
	AddMember(ctx context.Context, roomID uint, userID string, role models.RoomRole, roleID *uint) (*models.RoomMember, bool, error)
	ListMembers(ctx context.Context, roomID uint) ([]models.RoomMember, error)
	ListRoomsForUser(ctx context.Context, userID string, offset, limit int) ([]models.Room, error)
}

// MessageLog is the ordered, durable per-room message store.
type MessageLog interface {
	Append(ctx context.Context, req models.AppendRequest) (*models.Message, error)
	List(ctx context.Context, roomID uint, beforeSeq uint64, limit int) ([]models.Message, error)
}

// ReadTracker owns per-user read markers.
type ReadTracker interface {
	MarkRead(ctx context.Context, messageID uint, userID string, roomID uint) (*models.ReadMarker, error)
}

// EnrollmentStore owns enrollments.
type EnrollmentStore interface {
	CreateEnrollment(ctx context.Context, e *models.Enrollment) (*models.Enrollment, bool, error)
	SetEnrollmentStatus(ctx context.Context, enrollmentID uint, status models.EnrollmentStatus) error
	ListEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error)
}

// CourseCatalog is the read-only view of the external course catalog.
type CourseCatalog interface {
	GetCourse(ctx context.Context, courseID uint) (*models.Course, error)
}

// Presence tracks which users currently hold a live connection to a room.
type Presence interface {
	JoinRoom(ctx context.Context, roomID uint, userID string) error
	LeaveRoom(ctx context.Context, roomID uint, userID string) error
	OnlineUsers(ctx context.Context, roomID uint) ([]string, error)
}

// DropCounter observes real-time frames that were dropped without a reply.
type DropCounter interface {
	FrameDropped(ctx context.Context, roomID uint, reason string)
}

// Storage is everything the service layer needs from persistence.
type Storage interface {
	RosterStore
	RoomDirectory
	MessageLog
	ReadTracker
	EnrollmentStore
	CourseCatalog
	Presence
	DropCounter
}

var _ Storage = (*Service)(nil)

// Service implements Storage on top of gorm and, optionally, Redis.
// A nil Redis client turns presence and drop counting into no-ops.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Now   func() time.Time
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks that the database and, when configured, Redis are reachable.
func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: database: %v", models.ErrUnavailable, err)
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%w: redis: %v", models.ErrUnavailable, err)
		}
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}

// classify maps driver errors onto the shared error taxonomy.
func classify(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrUnauthorized),
		errors.Is(err, models.ErrUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", models.ErrNotFound, what)
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %s: %v", models.ErrConflict, what, err)
	default:
		return fmt.Errorf("%w: %s: %v", models.ErrUnavailable, what, err)
	}
}

// latest makes the read that follows a conflicting insert see the row the
// winning transaction committed. A plain read under REPEATABLE READ would reuse
// the snapshot taken by an earlier read of the same transaction.
func latest(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "SHARE"})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

package roster

import (
	"batchchat/backend/internal/localization"
	"batchchat/backend/internal/locks"
	"batchchat/backend/internal/models"
	"batchchat/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// EnrollmentStore is what the enrollment flow reads and writes.
type EnrollmentStore interface {
	storage.EnrollmentStore
	storage.CourseCatalog
	storage.RosterStore
	GetRoomByBatch(ctx context.Context, batchID uint) (*models.Room, error)
}

// EnrollInput is the payload of an enrollment.
type EnrollInput struct {
	CourseID      uint    `json:"course_id" binding:"required"`
	TeacherID     *string `json:"teacher_id"`
	PreferredTime string  `json:"preferred_time"`
}

// EnrollmentService places students into a batch of their course and makes sure
// the batch room follows.
type EnrollmentService struct {
	Store EnrollmentStore
	Sync  Syncer
	Texts *localization.Localizer
	// CoordinatorID, when set, is put on every batch the flow touches.
	CoordinatorID string
	Now           func() time.Time
	Log           *slog.Logger

	courseLocks locks.Keyed[uint]
}

// NewEnrollmentService Constructor
func NewEnrollmentService(store EnrollmentStore, sync Syncer, texts *localization.Localizer, coordinatorID string, log *slog.Logger) *EnrollmentService {
	if texts == nil {
		texts = localization.Default("")
	}
	if log == nil {
		log = slog.Default()
	}
	return &EnrollmentService{
		Store:         store,
		Sync:          sync,
		Texts:         texts,
		CoordinatorID: coordinatorID,
		Now:           func() time.Time { return time.Now().UTC() },
		Log:           log,
	}
}

// Enroll enrolls studentID in a course. The student joins the course's active
// batch, or a new batch when none is running, together with the teacher and the
// coordinator; the batch room is then synced.
//
// Enrolling twice is not an error: the result carries the existing enrollment
// with status "already_enrolled". An enrollment whose student never reached a
// batch is placed again and reported as "enrolled".
func (s *EnrollmentService) Enroll(ctx context.Context, studentID string, in EnrollInput) (*models.EnrollmentResult, error) {
	if studentID == "" || in.CourseID == 0 {
		return nil, fmt.Errorf("%w: student and course_id are required", models.ErrValidation)
	}
	if err := validateTeacher(in.TeacherID); err != nil {
		return nil, err
	}
	course, err := s.Store.GetCourse(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}

	enrollment, created, err := s.Store.CreateEnrollment(ctx, &models.Enrollment{
		StudentID:     studentID,
		CourseID:      course.ID,
		TeacherID:     in.TeacherID,
		PreferredTime: in.PreferredTime,
		Status:        models.EnrollmentActive,
		EnrolledAt:    s.Now(),
	})
	if err != nil {
		return nil, err
	}
	if !created {
		// An earlier attempt may have stored the enrollment and failed before the
		// student got a batch. Placement then runs again.
		_, err := s.Store.GetMemberByUserAndCourse(ctx, studentID, course.ID)
		if err == nil {
			return s.alreadyEnrolled(ctx, enrollment), nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		s.Log.Info("completing unplaced enrollment", "enrollment_id", enrollment.ID, "course_id", course.ID)
	}

	teacherID := in.TeacherID
	if teacherID == nil {
		teacherID = enrollment.TeacherID
	}
	batch, err := s.place(ctx, course, studentID, teacherID)
	if err != nil {
		return nil, err
	}

	res := s.Sync.Sync(ctx, batch.ID, studentID)
	name := batch.Name
	return &models.EnrollmentResult{
		EnrollmentID: enrollment.ID,
		StudentID:    studentID,
		CourseID:     course.ID,
		BatchID:      &batch.ID,
		BatchName:    &name,
		ChatID:       res.ChatID,
		EnrolledAt:   enrollment.EnrolledAt,
		Status:       models.OutcomeEnrolled,
	}, nil
}

// place puts the student on the course's active batch, opening one when none is
// running. Placements for one course run one at a time so concurrent first
// enrollments share a single new batch.
func (s *EnrollmentService) place(ctx context.Context, course *models.Course, studentID string, teacherID *string) (*models.Batch, error) {
	unlock := s.courseLocks.Lock(course.ID)
	defer unlock()

	batch, err := s.Store.FindActiveBatchByCourse(ctx, course.ID)
	if errors.Is(err, models.ErrNotFound) {
		batch = &models.Batch{
			CourseID:  course.ID,
			Name:      s.Texts.Format("", localization.KeyBatchDefaultName, course.Title, s.Now().Format("Jan 2006")),
			TeacherID: teacherID,
			Status:    models.BatchActive,
		}
		err = s.Store.CreateBatch(ctx, batch)
		if err == nil {
			s.Log.Info("batch opened for enrollment", "batch_id", batch.ID, "course_id", course.ID)
		}
	}
	if err != nil {
		return nil, err
	}

	if _, _, err := s.Store.UpsertBatchMember(ctx, &models.BatchMember{
		BatchID: batch.ID,
		UserID:  studentID,
		Role:    models.RoleStudent,
		Status:  models.MemberActive,
	}); err != nil {
		return nil, err
	}
	if teacherID != nil {
		s.ensureStaff(ctx, batch.ID, course.ID, *teacherID, models.RoleTeacher)
	}
	s.ensureStaff(ctx, batch.ID, course.ID, s.CoordinatorID, models.RoleCoordinator)
	return batch, nil
}

// ensureStaff puts a staff member on the batch unless they already sit in some
// batch of the course. Failures are logged and do not fail the enrollment.
func (s *EnrollmentService) ensureStaff(ctx context.Context, batchID, courseID uint, userID string, role models.MemberRole) {
	if userID == "" {
		return
	}
	_, err := s.Store.GetMemberByUserAndCourse(ctx, userID, courseID)
	if err == nil {
		return
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.Log.Warn("staff lookup failed", "batch_id", batchID, "user_id", userID, "error", err)
		return
	}
	_, _, err = s.Store.UpsertBatchMember(ctx, &models.BatchMember{BatchID: batchID, UserID: userID, Role: role, Status: models.MemberActive})
	if err != nil {
		s.Log.Warn("add staff to batch failed", "batch_id", batchID, "user_id", userID, "role", role, "error", err)
	}
}

func (s *EnrollmentService) alreadyEnrolled(ctx context.Context, e *models.Enrollment) *models.EnrollmentResult {
	res := &models.EnrollmentResult{
		EnrollmentID: e.ID,
		StudentID:    e.StudentID,
		CourseID:     e.CourseID,
		EnrolledAt:   e.EnrolledAt,
		Status:       models.OutcomeAlreadyEnrolled,
	}
	member, err := s.Store.GetMemberByUserAndCourse(ctx, e.StudentID, e.CourseID)
	if err != nil {
		return res
	}
	res.BatchID = &member.BatchID
	if batch, err := s.Store.GetBatch(ctx, member.BatchID); err == nil {
		res.BatchName = &batch.Name
	}
	if room, err := s.Store.GetRoomByBatch(ctx, member.BatchID); err == nil {
		res.ChatID = &room.ID
	}
	return res
}

// ListEnrollments returns the caller's enrollments.
func (s *EnrollmentService) ListEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	return s.Store.ListEnrollments(ctx, studentID)
}

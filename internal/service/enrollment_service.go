package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/openlearnhq/lms-api/internal/authz"
	"github.com/openlearnhq/lms-api/internal/models"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
	"github.com/openlearnhq/lms-api/pkg/export"
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByUserAndCourse(ctx context.Context, userID, courseID int64) (*models.Enrollment, error)
	ListByUser(ctx context.Context, userID int64) ([]models.EnrollmentRow, error)
	ListByCourse(ctx context.Context, courseID int64) ([]models.EnrollmentRow, error)
	UpdateProgress(ctx context.Context, id int64, progress int, status models.EnrollmentStatus) (*models.Enrollment, error)
	MarkLessonComplete(ctx context.Context, enrollmentID, lessonID int64) error
	CompletedLessonCount(ctx context.Context, enrollmentID int64) (int, error)
}

type lessonReader interface {
	FindByID(ctx context.Context, id int64) (*models.Lesson, error)
	CountByCourse(ctx context.Context, courseID int64) (int, error)
}

type certificateIssuer interface {
	Issue(ctx context.Context, userID, courseID int64) (*models.Certificate, error)
}

// EnrollmentService manages course enrollments and lesson progress.
type EnrollmentService struct {
	enrollments  enrollmentRepository
	courses      courseReader
	lessons      lessonReader
	certificates certificateIssuer
	cache        overviewCache
	outbox       outboxAppender
	exporter     *export.CSVExporter
	logger       *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(
	enrollments enrollmentRepository,
	courses courseReader,
	lessons lessonReader,
	certificates certificateIssuer,
	cache overviewCache,
	outbox outboxAppender,
	logger *zap.Logger,
) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments:  enrollments,
		courses:      courses,
		lessons:      lessons,
		certificates: certificates,
		cache:        cache,
		outbox:       outbox,
		exporter:     export.NewCSVExporter(),
		logger:       logger,
	}
}

// Enroll registers a student into a published course. Enrolling twice is
// a conflict; an unpublished course is indistinguishable from a missing
// one.
func (s *EnrollmentService) Enroll(ctx context.Context, actor authz.Actor, courseID int64) (*models.Enrollment, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can enroll")
	}
	course, err := s.visibleCourse(ctx, &actor, courseID)
	if err != nil {
		return nil, err
	}

	if _, err := s.enrollments.FindByUserAndCourse(ctx, actor.ID, courseID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	enrollment := &models.Enrollment{
		UserID:   actor.ID,
		CourseID: courseID,
		Status:   models.EnrollmentStatusActive,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.invalidate(ctx, courseID)
	s.emit(ctx, models.TopicEnrolled, map[string]interface{}{"enrollment_id": enrollment.ID, "user_id": actor.ID, "course_id": course.ID})
	return enrollment, nil
}

// ListMine returns the actor's enrollments with course context.
func (s *EnrollmentService) ListMine(ctx context.Context, actor authz.Actor) ([]models.EnrollmentRow, error) {
	rows, err := s.enrollments.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if rows == nil {
		rows = []models.EnrollmentRow{}
	}
	return rows, nil
}

// CompleteLesson records a finished lesson for the acting student and
// recomputes enrollment progress. Reaching 100% completes the enrollment
// and issues a certificate.
func (s *EnrollmentService) CompleteLesson(ctx context.Context, actor authz.Actor, courseID, lessonID int64) (*models.Enrollment, error) {
	if _, err := s.visibleCourse(ctx, &actor, courseID); err != nil {
		return nil, err
	}

	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch lesson")
	}
	if lesson.CourseID != courseID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}

	enrollment, err := s.enrollments.FindByUserAndCourse(ctx, actor.ID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch enrollment")
	}

	if err := s.enrollments.MarkLessonComplete(ctx, enrollment.ID, lessonID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record progress")
	}

	completed, err := s.enrollments.CompletedLessonCount(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count progress")
	}
	total, err := s.lessons.CountByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count lessons")
	}

	progress := 0
	if total > 0 {
		progress = int(math.Round(float64(completed) / float64(total) * 100))
	}
	status := enrollment.Status
	if progress >= 100 && status == models.EnrollmentStatusActive {
		status = models.EnrollmentStatusCompleted
	}

	updated, err := s.enrollments.UpdateProgress(ctx, enrollment.ID, progress, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update progress")
	}

	s.invalidate(ctx, courseID)

	if status == models.EnrollmentStatusCompleted && enrollment.Status != models.EnrollmentStatusCompleted {
		s.emit(ctx, models.TopicCourseCompleted, map[string]interface{}{"enrollment_id": enrollment.ID, "user_id": actor.ID, "course_id": courseID})
		if s.certificates != nil {
			if _, err := s.certificates.Issue(ctx, actor.ID, courseID); err != nil {
				s.logger.Warn("certificate issuance failed",
					zap.Int64("user_id", actor.ID),
					zap.Int64("course_id", courseID),
					zap.Error(err))
			}
		}
	}
	return updated, nil
}

// Roster returns a course's enrollments with student identity. Only
// actors who can modify the course may see it.
func (s *EnrollmentService) Roster(ctx context.Context, actor authz.Actor, courseID int64) ([]models.EnrollmentRow, error) {
	course, err := s.visibleCourse(ctx, &actor, courseID)
	if err != nil {
		return nil, err
	}
	if !authz.CanModifyCourse(course, actor.ID, actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view this roster")
	}

	rows, err := s.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if rows == nil {
		rows = []models.EnrollmentRow{}
	}
	return rows, nil
}

// ExportRoster renders the course roster as CSV.
func (s *EnrollmentService) ExportRoster(ctx context.Context, actor authz.Actor, courseID int64) ([]byte, error) {
	rows, err := s.Roster(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"student_name", "student_email", "status", "progress_percent", "enrolled_at", "completed_at"},
	}
	for _, row := range rows {
		completedAt := ""
		if row.CompletedAt != nil {
			completedAt = row.CompletedAt.UTC().Format("2006-01-02 15:04:05")
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"student_name":     row.StudentName,
			"student_email":    row.StudentEmail,
			"status":           string(row.Status),
			"progress_percent": strconv.Itoa(row.ProgressPercent),
			"enrolled_at":      row.EnrolledAt.UTC().Format("2006-01-02 15:04:05"),
			"completed_at":     completedAt,
		})
	}

	payload, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster export")
	}
	return payload, nil
}

func (s *EnrollmentService) visibleCourse(ctx context.Context, actor *authz.Actor, courseID int64) (*models.Course, error) {
	if courseID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	if !authz.CanViewCourse(actor, course) {
		return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
	}
	return course, nil
}

func (s *EnrollmentService) invalidate(ctx context.Context, courseID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, overviewCacheKey(courseID)); err != nil {
		s.logger.Warn("overview cache invalidation failed", zap.Int64("course_id", courseID), zap.Error(err))
	}
}

func (s *EnrollmentService) emit(ctx context.Context, topic string, payload map[string]interface{}) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.Append(ctx, topic, payload); err != nil {
		s.logger.Warn("failed to record outbox event", zap.String("topic", topic), zap.Error(err))
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openlearnhq/lms-api/internal/authz"
	"github.com/openlearnhq/lms-api/internal/models"
	"github.com/openlearnhq/lms-api/internal/validation"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) (*models.Course, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type courseUserReader interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

type lessonCounter interface {
	CountByCourse(ctx context.Context, courseID int64) (int, error)
}

type quizCounter interface {
	CountsByCourse(ctx context.Context, courseID int64) (int, int, error)
}

type enrollmentStatsReader interface {
	StatsByCourse(ctx context.Context, courseID int64) (*models.EnrollmentStats, error)
}

type certificateCounter interface {
	CountByCourse(ctx context.Context, courseID int64) (int, error)
}

type overviewCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CourseService implements course management and the aggregated overview.
type CourseService struct {
	courses      courseRepository
	users        courseUserReader
	lessons      lessonCounter
	quizzes      quizCounter
	enrollments  enrollmentStatsReader
	certificates certificateCounter
	cache        overviewCache
	outbox       outboxAppender
	logger       *zap.Logger
	cacheTTL     time.Duration
}

// NewCourseService constructs a CourseService.
func NewCourseService(
	courses courseRepository,
	users courseUserReader,
	lessons lessonCounter,
	quizzes quizCounter,
	enrollments enrollmentStatsReader,
	certificates certificateCounter,
	cache overviewCache,
	outbox outboxAppender,
	logger *zap.Logger,
	cacheTTL time.Duration,
) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CourseService{
		courses:      courses,
		users:        users,
		lessons:      lessons,
		quizzes:      quizzes,
		enrollments:  enrollments,
		certificates: certificates,
		cache:        cache,
		outbox:       outbox,
		logger:       logger,
		cacheTTL:     cacheTTL,
	}
}

func overviewCacheKey(courseID int64) string {
	return fmt.Sprintf("course:overview:%d", courseID)
}

// Create makes a new course from an untrusted payload. Students cannot
// create courses; the instructor_id field is honored only for admins.
// New courses always start unpublished; publishing goes through the
// toggle.
func (s *CourseService) Create(ctx context.Context, actor authz.Actor, data map[string]interface{}) (*models.Course, error) {
	if !authz.CanCreateCourse(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students cannot create courses")
	}

	result := validation.ValidateCreateCourse(data)
	if !result.Valid {
		return nil, appErrors.Validation(toFieldErrors(result.Errors))
	}

	instructorID := actor.ID
	if raw, present := data["instructor_id"]; present && actor.Role == models.RoleAdmin {
		id, err := s.resolveInstructor(ctx, raw)
		if err != nil {
			return nil, err
		}
		instructorID = id
	}

	course := &models.Course{
		Title:        strings.TrimSpace(data["title"].(string)),
		Description:  normalizeDescription(data["description"]),
		PriceCents:   *validation.NormalizePrice(data["price_cents"]),
		InstructorID: instructorID,
	}

	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.emit(ctx, models.TopicCourseCreated, map[string]interface{}{"course_id": course.ID, "instructor_id": course.InstructorID})
	return course, nil
}

// Get returns a course the actor is allowed to see. Visibility failures
// surface as not-found so unpublished courses do not leak.
func (s *CourseService) Get(ctx context.Context, actor *authz.Actor, id int64) (*models.Course, error) {
	course, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanViewCourse(actor, course) {
		return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
	}
	return course, nil
}

// List returns a page of courses scoped to what the actor may see. Page
// and limit clamp to defaults rather than erroring.
func (s *CourseService) List(ctx context.Context, actor *authz.Actor, page, limit, search interface{}) (*models.CourseList, error) {
	pagination := validation.ValidatePagination(page, limit)
	filter := models.CourseFilter{
		Search: validation.SanitizeSearch(search),
		Page:   pagination.Page,
		Limit:  pagination.Limit,
	}
	switch authz.ListScope(actor) {
	case authz.ScopePublished:
		filter.PublishedOnly = true
	case authz.ScopeOwn:
		filter.InstructorID = &actor.ID
	}

	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	if courses == nil {
		courses = []models.Course{}
	}

	pagination.Total = total
	pagination.TotalPages = int(math.Ceil(float64(total) / float64(pagination.Limit)))
	return &models.CourseList{Courses: courses, Pagination: pagination}, nil
}

// Update applies a partial update. Non-admins cannot reassign ownership;
// the instructor_id field is silently dropped for them. An empty update
// set succeeds and returns the current row.
func (s *CourseService) Update(ctx context.Context, actor authz.Actor, id int64, data map[string]interface{}) (*models.Course, error) {
	course, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanViewCourse(&actor, course) {
		return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
	}
	if !authz.CanModifyCourse(course, actor.ID, actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify this course")
	}

	data = authz.FilterCourseUpdate(data, actor.Role)
	result := validation.ValidateUpdateCourse(data)
	if !result.Valid {
		return nil, appErrors.Validation(toFieldErrors(result.Errors))
	}

	updates := map[string]interface{}{}
	if raw, present := data["title"]; present {
		updates["title"] = strings.TrimSpace(raw.(string))
	}
	if raw, present := data["description"]; present {
		updates["description"] = normalizeDescription(raw)
	}
	if raw, present := data["price_cents"]; present {
		updates["price_cents"] = *validation.NormalizePrice(raw)
	}
	if raw, present := data["instructor_id"]; present {
		instructorID, err := s.resolveInstructor(ctx, raw)
		if err != nil {
			return nil, err
		}
		updates["instructor_id"] = instructorID
	}

	updated, err := s.courses.Update(ctx, id, updates)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateOverview(ctx, id)
	s.emit(ctx, models.TopicCourseUpdated, map[string]interface{}{"course_id": id})
	return updated, nil
}

// SetPublished toggles course visibility.
func (s *CourseService) SetPublished(ctx context.Context, actor authz.Actor, id int64, published bool) (*models.Course, error) {
	course, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanViewCourse(&actor, course) {
		return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
	}
	if !authz.CanModifyCourse(course, actor.ID, actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify this course")
	}

	updated, err := s.courses.Update(ctx, id, map[string]interface{}{"published": published})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateOverview(ctx, id)
	if published {
		s.emit(ctx, models.TopicCoursePublished, map[string]interface{}{"course_id": id})
	}
	return updated, nil
}

// Delete removes a course. Admin only. Returns not-found when no row was
// deleted.
func (s *CourseService) Delete(ctx context.Context, actor authz.Actor, id int64) error {
	if id <= 0 {
		return appErrors.Clone(appErrors.ErrInvalidID, "")
	}
	if !authz.CanDeleteCourse(actor.Role) {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can delete courses")
	}

	deleted, err := s.courses.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrCourseNotFound, "")
	}

	s.invalidateOverview(ctx, id)
	s.emit(ctx, models.TopicCourseDeleted, map[string]interface{}{"course_id": id})
	return nil
}

// Overview aggregates the course with its activity counters. The reads
// fan out concurrently; a missing instructor yields "Unknown" rather than
// an error. Results are cached when a cache is configured.
func (s *CourseService) Overview(ctx context.Context, actor *authz.Actor, id int64) (*models.CourseOverview, error) {
	course, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanViewCourse(actor, course) {
		return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
	}

	if s.cache != nil {
		var cached models.CourseOverview
		if err := s.cache.Get(ctx, overviewCacheKey(id), &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("overview cache read failed", zap.Int64("course_id", id), zap.Error(err))
		}
	}

	overview := &models.CourseOverview{Course: *course, InstructorName: "Unknown"}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		instructor, err := s.users.FindByID(gctx, course.InstructorID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		overview.InstructorName = instructor.Name
		return nil
	})
	g.Go(func() error {
		count, err := s.lessons.CountByCourse(gctx, id)
		if err != nil {
			return err
		}
		overview.LessonCount = count
		return nil
	})
	g.Go(func() error {
		stats, err := s.enrollments.StatsByCourse(gctx, id)
		if err != nil {
			return err
		}
		overview.ActiveEnrollments = stats.Active
		overview.CompletedEnrollments = stats.Completed
		overview.AverageProgress = int(math.Round(stats.AverageProgress))
		return nil
	})
	g.Go(func() error {
		quizzes, questions, err := s.quizzes.CountsByCourse(gctx, id)
		if err != nil {
			return err
		}
		overview.QuizCount = quizzes
		overview.QuestionCount = questions
		return nil
	})
	g.Go(func() error {
		count, err := s.certificates.CountByCourse(gctx, id)
		if err != nil {
			return err
		}
		overview.CertificatesIssued = count
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build course overview")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, overviewCacheKey(id), overview, s.cacheTTL); err != nil {
			s.logger.Warn("overview cache write failed", zap.Int64("course_id", id), zap.Error(err))
		}
	}
	return overview, nil
}

func (s *CourseService) fetch(ctx context.Context, id int64) (*models.Course, error) {
	if id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "")
	}
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	return course, nil
}

func (s *CourseService) resolveInstructor(ctx context.Context, raw interface{}) (int64, error) {
	id, ok := toID(raw)
	if !ok || id <= 0 {
		return 0, appErrors.Validation([]appErrors.FieldError{{Field: "instructor_id", Message: "Instructor id must be a positive integer"}})
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrUserNotFound, "instructor not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch instructor")
	}
	if user.Role != models.RoleInstructor && user.Role != models.RoleAdmin {
		return 0, appErrors.Validation([]appErrors.FieldError{{Field: "instructor_id", Message: "User is not an instructor"}})
	}
	return user.ID, nil
}

func (s *CourseService) invalidateOverview(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, overviewCacheKey(id)); err != nil {
		s.logger.Warn("overview cache invalidation failed", zap.Int64("course_id", id), zap.Error(err))
	}
}

func (s *CourseService) emit(ctx context.Context, topic string, payload map[string]interface{}) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.Append(ctx, topic, payload); err != nil {
		s.logger.Warn("failed to record outbox event", zap.String("topic", topic), zap.Error(err))
	}
}

func normalizeDescription(raw interface{}) *string {
	text, ok := raw.(string)
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toID(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

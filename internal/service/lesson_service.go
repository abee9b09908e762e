package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openlearnhq/lms-api/internal/authz"
	"github.com/openlearnhq/lms-api/internal/models"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
)

type lessonRepository interface {
	Create(ctx context.Context, lesson *models.Lesson) error
	FindByID(ctx context.Context, id int64) (*models.Lesson, error)
	ListByCourse(ctx context.Context, courseID int64) ([]models.Lesson, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) (*models.Lesson, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
}

// LessonService manages course content.
type LessonService struct {
	lessons   lessonRepository
	courses   courseReader
	cache     overviewCache
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs a LessonService.
func NewLessonService(lessons lessonRepository, courses courseReader, cache overviewCache, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LessonService{lessons: lessons, courses: courses, cache: cache, validator: validate, logger: logger}
}

// Create adds a lesson to a course the actor may modify.
func (s *LessonService) Create(ctx context.Context, actor authz.Actor, courseID int64, req models.CreateLessonRequest) (*models.Lesson, error) {
	course, err := s.visibleCourse(ctx, &actor, courseID)
	if err != nil {
		return nil, err
	}
	if !authz.CanModifyCourse(course, actor.ID, actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify this course")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	lesson := &models.Lesson{
		CourseID: courseID,
		Title:    req.Title,
		Content:  req.Content,
		Position: req.Position,
	}
	if err := s.lessons.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}
	s.invalidate(ctx, courseID)
	return lesson, nil
}

// List returns the lessons of a visible course ordered by position.
func (s *LessonService) List(ctx context.Context, actor *authz.Actor, courseID int64) ([]models.Lesson, error) {
	if _, err := s.visibleCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	lessons, err := s.lessons.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	if lessons == nil {
		lessons = []models.Lesson{}
	}
	return lessons, nil
}

// Get returns a single lesson of a visible course.
func (s *LessonService) Get(ctx context.Context, actor *authz.Actor, courseID, lessonID int64) (*models.Lesson, error) {
	if _, err := s.visibleCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	lesson, err := s.lessonInCourse(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	return lesson, nil
}

// Update applies a partial lesson update.
func (s *LessonService) Update(ctx context.Context, actor authz.Actor, courseID, lessonID int64, req models.UpdateLessonRequest) (*models.Lesson, error) {
	course, err := s.visibleCourse(ctx, &actor, courseID)
	if err != nil {
		return nil, err
	}
	if !authz.CanModifyCourse(course, actor.ID, actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify this course")
	}
	if _, err := s.lessonInCourse(ctx, courseID, lessonID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.Position != nil {
		updates["position"] = *req.Position
	}

	lesson, err := s.lessons.Update(ctx, lessonID, updates)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	return lesson, nil
}

// Delete removes a lesson from a course the actor may modify.
func (s *LessonService) Delete(ctx context.Context, actor authz.Actor, courseID, lessonID int64) error {
	course, err := s.visibleCourse(ctx, &actor, courseID)
	if err != nil {
		return err
	}
	if !authz.CanModifyCourse(course, actor.ID, actor.Role) {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot modify this course")
	}
	if _, err := s.lessonInCourse(ctx, courseID, lessonID); err != nil {
		return err
	}

	deleted, err := s.lessons.Delete(ctx, lessonID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	s.invalidate(ctx, courseID)
	return nil
}

func (s *LessonService) visibleCourse(ctx context.Context, actor *authz.Actor, courseID int64) (*models.Course, error) {
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

func (s *LessonService) lessonInCourse(ctx context.Context, courseID, lessonID int64) (*models.Lesson, error) {
	if lessonID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "")
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
	return lesson, nil
}

func (s *LessonService) invalidate(ctx context.Context, courseID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, overviewCacheKey(courseID)); err != nil {
		s.logger.Warn("overview cache invalidation failed", zap.Int64("course_id", courseID), zap.Error(err))
	}
}

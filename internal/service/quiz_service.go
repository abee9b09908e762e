package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openlearnhq/lms-api/internal/authz"
	"github.com/openlearnhq/lms-api/internal/models"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
)

type quizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	FindByID(ctx context.Context, id int64) (*models.Quiz, error)
	ListByCourse(ctx context.Context, courseID int64) ([]models.Quiz, error)
	AddQuestion(ctx context.Context, question *models.QuizQuestion) error
	QuestionsByQuiz(ctx context.Context, quizID int64) ([]models.QuizQuestion, error)
	CreateSubmission(ctx context.Context, submission *models.QuizSubmission) error
	Delete(ctx context.Context, id int64) (bool, error)
}

type enrollmentReader interface {
	FindByUserAndCourse(ctx context.Context, userID, courseID int64) (*models.Enrollment, error)
}

// QuizService manages quizzes, their questions and graded submissions.
type QuizService struct {
	quizzes     quizRepository
	courses     courseReader
	enrollments enrollmentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewQuizService constructs a QuizService.
func NewQuizService(quizzes quizRepository, courses courseReader, enrollments enrollmentReader, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &QuizService{quizzes: quizzes, courses: courses, enrollments: enrollments, validator: validate, logger: logger}
}

// Create adds a quiz to a course the actor may modify.
func (s *QuizService) Create(ctx context.Context, actor authz.Actor, courseID int64, req models.CreateQuizRequest) (*models.Quiz, error) {
	course, err := s.visibleCourse(ctx, &actor, courseID)
	if err != nil {
		return nil, err
	}
	if !authz.CanModifyCourse(course, actor.ID, actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify this course")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}

	quiz := &models.Quiz{CourseID: courseID, Title: req.Title}
	if err := s.quizzes.Create(ctx, quiz); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create quiz")
	}
	return quiz, nil
}

// List returns the quizzes of a visible course.
func (s *QuizService) List(ctx context.Context, actor *authz.Actor, courseID int64) ([]models.Quiz, error) {
	if _, err := s.visibleCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	quizzes, err := s.quizzes.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quizzes")
	}
	if quizzes == nil {
		quizzes = []models.Quiz{}
	}
	return quizzes, nil
}

// AddQuestion appends a multiple-choice question to a quiz. The answer
// index must point inside the options list.
func (s *QuizService) AddQuestion(ctx context.Context, actor authz.Actor, courseID, quizID int64, req models.CreateQuestionRequest) (*models.QuizQuestion, error) {
	course, err := s.visibleCourse(ctx, &actor, courseID)
	if err != nil {
		return nil, err
	}
	if !authz.CanModifyCourse(course, actor.ID, actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify this course")
	}
	if _, err := s.quizInCourse(ctx, courseID, quizID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}
	if req.AnswerIndex >= len(req.Options) {
		return nil, appErrors.Validation([]appErrors.FieldError{{Field: "answer_index", Message: "Answer index out of range"}})
	}

	question := &models.QuizQuestion{
		QuizID:      quizID,
		Prompt:      req.Prompt,
		Options:     req.Options,
		AnswerIndex: req.AnswerIndex,
		Position:    req.Position,
	}
	if err := s.quizzes.AddQuestion(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}
	return question, nil
}

// Questions returns a quiz's questions. Answer indexes are never
// serialized to clients.
func (s *QuizService) Questions(ctx context.Context, actor *authz.Actor, courseID, quizID int64) ([]models.QuizQuestion, error) {
	if _, err := s.visibleCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	if _, err := s.quizInCourse(ctx, courseID, quizID); err != nil {
		return nil, err
	}
	questions, err := s.quizzes.QuestionsByQuiz(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list questions")
	}
	if questions == nil {
		questions = []models.QuizQuestion{}
	}
	return questions, nil
}

// Submit grades an attempt for an enrolled student. The score is the
// percentage of correct answers, rounded to the nearest integer.
func (s *QuizService) Submit(ctx context.Context, actor authz.Actor, courseID, quizID int64, req models.SubmitQuizRequest) (*models.QuizSubmission, error) {
	if _, err := s.visibleCourse(ctx, &actor, courseID); err != nil {
		return nil, err
	}
	if _, err := s.quizInCourse(ctx, courseID, quizID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	enrollment, err := s.enrollments.FindByUserAndCourse(ctx, actor.ID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch enrollment")
	}

	questions, err := s.quizzes.QuestionsByQuiz(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list questions")
	}
	if len(questions) == 0 {
		return nil, appErrors.Validation([]appErrors.FieldError{{Field: "answers", Message: "Quiz has no questions"}})
	}
	if len(req.Answers) != len(questions) {
		return nil, appErrors.Validation([]appErrors.FieldError{{Field: "answers", Message: "Answer count does not match question count"}})
	}

	correct := 0
	for i, question := range questions {
		if req.Answers[i] == question.AnswerIndex {
			correct++
		}
	}
	score := int(math.Round(float64(correct) / float64(len(questions)) * 100))

	submission := &models.QuizSubmission{
		QuizID:       quizID,
		EnrollmentID: enrollment.ID,
		Score:        score,
	}
	if err := s.quizzes.CreateSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record submission")
	}
	return submission, nil
}

// Delete removes a quiz from a course the actor may modify.
func (s *QuizService) Delete(ctx context.Context, actor authz.Actor, courseID, quizID int64) error {
	course, err := s.visibleCourse(ctx, &actor, courseID)
	if err != nil {
		return err
	}
	if !authz.CanModifyCourse(course, actor.ID, actor.Role) {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot modify this course")
	}
	if _, err := s.quizInCourse(ctx, courseID, quizID); err != nil {
		return err
	}

	deleted, err := s.quizzes.Delete(ctx, quizID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete quiz")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
	}
	return nil
}

func (s *QuizService) visibleCourse(ctx context.Context, actor *authz.Actor, courseID int64) (*models.Course, error) {
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

func (s *QuizService) quizInCourse(ctx context.Context, courseID, quizID int64) (*models.Quiz, error) {
	if quizID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "")
	}
	quiz, err := s.quizzes.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch quiz")
	}
	if quiz.CourseID != courseID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
	}
	return quiz, nil
}

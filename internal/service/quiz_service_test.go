package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openlearnhq/lms-api/internal/authz"
	"github.com/openlearnhq/lms-api/internal/models"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
)

type mockQuizRepo struct {
	quizzes     map[int64]*models.Quiz
	questions   map[int64][]models.QuizQuestion
	submissions []*models.QuizSubmission
	nextID      int64
}

func newMockQuizRepo() *mockQuizRepo {
	return &mockQuizRepo{quizzes: map[int64]*models.Quiz{}, questions: map[int64][]models.QuizQuestion{}, nextID: 1}
}

func (m *mockQuizRepo) Create(ctx context.Context, quiz *models.Quiz) error {
	quiz.ID = m.nextID
	m.nextID++
	quiz.CreatedAt = time.Now().UTC()
	m.quizzes[quiz.ID] = quiz
	return nil
}

func (m *mockQuizRepo) FindByID(ctx context.Context, id int64) (*models.Quiz, error) {
	quiz, ok := m.quizzes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return quiz, nil
}

func (m *mockQuizRepo) ListByCourse(ctx context.Context, courseID int64) ([]models.Quiz, error) {
	var out []models.Quiz
	for _, quiz := range m.quizzes {
		if quiz.CourseID == courseID {
			out = append(out, *quiz)
		}
	}
	return out, nil
}

func (m *mockQuizRepo) AddQuestion(ctx context.Context, question *models.QuizQuestion) error {
	question.ID = m.nextID
	m.nextID++
	m.questions[question.QuizID] = append(m.questions[question.QuizID], *question)
	return nil
}

func (m *mockQuizRepo) QuestionsByQuiz(ctx context.Context, quizID int64) ([]models.QuizQuestion, error) {
	return m.questions[quizID], nil
}

func (m *mockQuizRepo) CreateSubmission(ctx context.Context, submission *models.QuizSubmission) error {
	submission.ID = m.nextID
	m.nextID++
	submission.SubmittedAt = time.Now().UTC()
	m.submissions = append(m.submissions, submission)
	return nil
}

func (m *mockQuizRepo) Delete(ctx context.Context, id int64) (bool, error) {
	if _, ok := m.quizzes[id]; !ok {
		return false, nil
	}
	delete(m.quizzes, id)
	return true, nil
}

type quizFixture struct {
	svc         *QuizService
	quizzes     *mockQuizRepo
	courses     *mockCourseRepo
	enrollments *mockEnrollmentRepo
}

func newQuizFixture() *quizFixture {
	quizzes := newMockQuizRepo()
	courses := newMockCourseRepo()
	enrollments := newMockEnrollmentRepo()
	svc := NewQuizService(quizzes, courses, enrollments, validator.New(), zap.NewNop())
	return &quizFixture{svc: svc, quizzes: quizzes, courses: courses, enrollments: enrollments}
}

func TestAddQuestionValidatesAnswerIndex(t *testing.T) {
	f := newQuizFixture()
	course := f.courses.add(&models.Course{Title: "Go", Published: true, InstructorID: 7})
	owner := authz.Actor{ID: 7, Role: models.RoleInstructor}

	quiz, err := f.svc.Create(context.Background(), owner, course.ID, models.CreateQuizRequest{Title: "Basics"})
	require.NoError(t, err)

	_, err = f.svc.AddQuestion(context.Background(), owner, course.ID, quiz.ID, models.CreateQuestionRequest{
		Prompt:      "Pick one",
		Options:     []string{"a", "b"},
		AnswerIndex: 2,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	question, err := f.svc.AddQuestion(context.Background(), owner, course.ID, quiz.ID, models.CreateQuestionRequest{
		Prompt:      "Pick one",
		Options:     []string{"a", "b"},
		AnswerIndex: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, quiz.ID, question.QuizID)
}

func TestSubmitScoresRoundedPercentage(t *testing.T) {
	f := newQuizFixture()
	course := f.courses.add(&models.Course{Title: "Go", Published: true, InstructorID: 7})
	owner := authz.Actor{ID: 7, Role: models.RoleInstructor}
	student := authz.Actor{ID: 3, Role: models.RoleStudent}

	quiz, err := f.svc.Create(context.Background(), owner, course.ID, models.CreateQuizRequest{Title: "Basics"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.svc.AddQuestion(context.Background(), owner, course.ID, quiz.ID, models.CreateQuestionRequest{
			Prompt:      "Pick one",
			Options:     []string{"a", "b"},
			AnswerIndex: 0,
			Position:    i,
		})
		require.NoError(t, err)
	}

	require.NoError(t, f.enrollments.Create(context.Background(), &models.Enrollment{
		UserID: student.ID, CourseID: course.ID, Status: models.EnrollmentStatusActive,
	}))

	submission, err := f.svc.Submit(context.Background(), student, course.ID, quiz.ID, models.SubmitQuizRequest{
		Answers: []int{0, 0, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 67, submission.Score)

	_, err = f.svc.Submit(context.Background(), student, course.ID, quiz.ID, models.SubmitQuizRequest{
		Answers: []int{0},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmitRequiresEnrollment(t *testing.T) {
	f := newQuizFixture()
	course := f.courses.add(&models.Course{Title: "Go", Published: true, InstructorID: 7})
	owner := authz.Actor{ID: 7, Role: models.RoleInstructor}

	quiz, err := f.svc.Create(context.Background(), owner, course.ID, models.CreateQuizRequest{Title: "Basics"})
	require.NoError(t, err)
	_, err = f.svc.AddQuestion(context.Background(), owner, course.ID, quiz.ID, models.CreateQuestionRequest{
		Prompt: "Pick one", Options: []string{"a", "b"}, AnswerIndex: 0,
	})
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), authz.Actor{ID: 3, Role: models.RoleStudent}, course.ID, quiz.ID, models.SubmitQuizRequest{
		Answers: []int{0},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

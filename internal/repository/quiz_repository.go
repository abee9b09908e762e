package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/openlearnhq/lms-api/internal/models"
)

// QuizRepository manages persistence for quizzes, questions and submissions.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs a QuizRepository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// Create inserts a quiz and fills in the generated id and created_at.
func (r *QuizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	const query = `INSERT INTO quizzes (course_id, title) VALUES ($1, $2) RETURNING id, created_at`
	if err := r.db.QueryRowxContext(ctx, query, quiz.CourseID, quiz.Title).
		Scan(&quiz.ID, &quiz.CreatedAt); err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}
	return nil
}

// FindByID fetches a quiz by id. Returns sql.ErrNoRows when absent.
func (r *QuizRepository) FindByID(ctx context.Context, id int64) (*models.Quiz, error) {
	const query = `SELECT id, course_id, title, created_at FROM quizzes WHERE id = $1`
	var quiz models.Quiz
	if err := r.db.GetContext(ctx, &quiz, query, id); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// ListByCourse returns the quizzes of a course.
func (r *QuizRepository) ListByCourse(ctx context.Context, courseID int64) ([]models.Quiz, error) {
	const query = `SELECT id, course_id, title, created_at FROM quizzes WHERE course_id = $1 ORDER BY created_at ASC`
	var quizzes []models.Quiz
	if err := r.db.SelectContext(ctx, &quizzes, query, courseID); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes, nil
}

// AddQuestion inserts a question, serializing options to JSON.
func (r *QuizRepository) AddQuestion(ctx context.Context, question *models.QuizQuestion) error {
	options, err := json.Marshal(question.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	question.OptionsJSON = options

	const query = `INSERT INTO quiz_questions (quiz_id, prompt, options, answer_index, position)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		question.QuizID, question.Prompt, question.OptionsJSON, question.AnswerIndex, question.Position).
		Scan(&question.ID); err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

// QuestionsByQuiz returns a quiz's questions ordered by position, with
// options decoded from their JSON column.
func (r *QuizRepository) QuestionsByQuiz(ctx context.Context, quizID int64) ([]models.QuizQuestion, error) {
	const query = `SELECT id, quiz_id, prompt, options, answer_index, position
        FROM quiz_questions WHERE quiz_id = $1 ORDER BY position ASC, id ASC`
	var questions []models.QuizQuestion
	if err := r.db.SelectContext(ctx, &questions, query, quizID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	for i := range questions {
		if len(questions[i].OptionsJSON) == 0 {
			continue
		}
		if err := json.Unmarshal(questions[i].OptionsJSON, &questions[i].Options); err != nil {
			return nil, fmt.Errorf("unmarshal options for question %d: %w", questions[i].ID, err)
		}
	}
	return questions, nil
}

// CreateSubmission records a graded attempt.
func (r *QuizRepository) CreateSubmission(ctx context.Context, submission *models.QuizSubmission) error {
	const query = `INSERT INTO quiz_submissions (quiz_id, enrollment_id, score)
        VALUES ($1, $2, $3)
        RETURNING id, submitted_at`
	if err := r.db.QueryRowxContext(ctx, query,
		submission.QuizID, submission.EnrollmentID, submission.Score).
		Scan(&submission.ID, &submission.SubmittedAt); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// SubmissionsByEnrollment returns an enrollment's attempts, newest first.
func (r *QuizRepository) SubmissionsByEnrollment(ctx context.Context, enrollmentID int64) ([]models.QuizSubmission, error) {
	const query = `SELECT id, quiz_id, enrollment_id, score, submitted_at
        FROM quiz_submissions WHERE enrollment_id = $1 ORDER BY submitted_at DESC`
	var submissions []models.QuizSubmission
	if err := r.db.SelectContext(ctx, &submissions, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// CountsByCourse returns the quiz and question counts for a course.
func (r *QuizRepository) CountsByCourse(ctx context.Context, courseID int64) (quizzes int, questions int, err error) {
	const query = `SELECT
        COUNT(DISTINCT q.id) AS quizzes,
        COUNT(qq.id) AS questions
        FROM quizzes q
        LEFT JOIN quiz_questions qq ON qq.quiz_id = q.id
        WHERE q.course_id = $1`
	row := struct {
		Quizzes   int `db:"quizzes"`
		Questions int `db:"questions"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, courseID); err != nil {
		return 0, 0, fmt.Errorf("count quizzes: %w", err)
	}
	return row.Quizzes, row.Questions, nil
}

// Delete removes a quiz and reports whether a row was removed.
func (r *QuizRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete quiz: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete quiz: %w", err)
	}
	return affected > 0, nil
}

package models

import "time"

// Quiz represents a graded assessment attached to a course.
type Quiz struct {
	ID        int64     `db:"id" json:"id"`
	CourseID  int64     `db:"course_id" json:"course_id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// QuizQuestion is a single multiple-choice question.
type QuizQuestion struct {
	ID          int64    `db:"id" json:"id"`
	QuizID      int64    `db:"quiz_id" json:"quiz_id"`
	Prompt      string   `db:"prompt" json:"prompt"`
	Options     []string `db:"-" json:"options"`
	OptionsJSON []byte   `db:"options" json:"-"`
	AnswerIndex int      `db:"answer_index" json:"-"`
	Position    int      `db:"position" json:"position"`
}

// QuizSubmission records a graded attempt.
type QuizSubmission struct {
	ID           int64     `db:"id" json:"id"`
	QuizID       int64     `db:"quiz_id" json:"quiz_id"`
	EnrollmentID int64     `db:"enrollment_id" json:"enrollment_id"`
	Score        int       `db:"score" json:"score"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
}

// CreateQuizRequest is the payload for adding a quiz.
type CreateQuizRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

// CreateQuestionRequest is the payload for adding a question to a quiz.
type CreateQuestionRequest struct {
	Prompt      string   `json:"prompt" validate:"required"`
	Options     []string `json:"options" validate:"required,min=2"`
	AnswerIndex int      `json:"answer_index" validate:"gte=0"`
	Position    int      `json:"position" validate:"gte=0"`
}

// SubmitQuizRequest carries a student's answers, indexed by question order.
type SubmitQuizRequest struct {
	Answers []int `json:"answers" validate:"required"`
}

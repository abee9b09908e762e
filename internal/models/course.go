package models

import "time"

// Course represents a row in the courses table.
type Course struct {
	ID           int64     `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Description  *string   `db:"description" json:"description"`
	PriceCents   int64     `db:"price_cents" json:"price_cents"`
	Published    bool      `db:"published" json:"published"`
	InstructorID int64     `db:"instructor_id" json:"instructor_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CourseFilter captures list criteria; filters combine with AND semantics.
type CourseFilter struct {
	Search        string
	PublishedOnly bool
	InstructorID  *int64
	Page          int
	Limit         int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// CourseList bundles a page of courses with its pagination metadata.
type CourseList struct {
	Courses    []Course   `json:"courses"`
	Pagination Pagination `json:"pagination"`
}

// CourseOverview aggregates a course with its activity counters.
type CourseOverview struct {
	Course               Course `json:"course"`
	InstructorName       string `json:"instructor_name"`
	LessonCount          int    `json:"lesson_count"`
	ActiveEnrollments    int    `json:"active_enrollments"`
	CompletedEnrollments int    `json:"completed_enrollments"`
	AverageProgress      int    `json:"average_progress"`
	QuizCount            int    `json:"quiz_count"`
	QuestionCount        int    `json:"question_count"`
	CertificatesIssued   int    `json:"certificates_issued"`
}

// EnrollmentStats carries per-course enrollment aggregates.
type EnrollmentStats struct {
	Active          int     `db:"active"`
	Completed       int     `db:"completed"`
	AverageProgress float64 `db:"average_progress"`
}

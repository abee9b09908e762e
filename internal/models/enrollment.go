package models

import "time"

// EnrollmentStatus is the lifecycle state of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

// Enrollment links a student to a course, unique per (user, course).
type Enrollment struct {
	ID              int64            `db:"id" json:"id"`
	UserID          int64            `db:"user_id" json:"user_id"`
	CourseID        int64            `db:"course_id" json:"course_id"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	ProgressPercent int              `db:"progress_percent" json:"progress_percent"`
	EnrolledAt      time.Time        `db:"enrolled_at" json:"enrolled_at"`
	CompletedAt     *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

// LessonProgress marks a lesson completed within an enrollment,
// unique per (enrollment, lesson).
type LessonProgress struct {
	ID           int64     `db:"id" json:"id"`
	EnrollmentID int64     `db:"enrollment_id" json:"enrollment_id"`
	LessonID     int64     `db:"lesson_id" json:"lesson_id"`
	CompletedAt  time.Time `db:"completed_at" json:"completed_at"`
}

// EnrollmentRow is an enrollment joined with student and course context,
// used by listings and the roster export.
type EnrollmentRow struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
	CourseTitle  string `db:"course_title" json:"course_title"`
}

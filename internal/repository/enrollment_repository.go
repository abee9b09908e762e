package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openlearnhq/lms-api/internal/models"
)

// EnrollmentRepository manages persistence for enrollments and lesson
// progress records.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create inserts an enrollment and fills in the generated id and
// enrolled_at. The (user_id, course_id) unique constraint surfaces as a
// pq unique violation.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `INSERT INTO enrollments (user_id, course_id, status, progress_percent)
        VALUES ($1, $2, $3, $4)
        RETURNING id, enrolled_at`
	if err := r.db.QueryRowxContext(ctx, query,
		enrollment.UserID, enrollment.CourseID, enrollment.Status, enrollment.ProgressPercent).
		Scan(&enrollment.ID, &enrollment.EnrolledAt); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindByID fetches an enrollment by id. Returns sql.ErrNoRows when absent.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	const query = `SELECT id, user_id, course_id, status, progress_percent, enrolled_at, completed_at
        FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByUserAndCourse fetches the enrollment linking a user to a course.
func (r *EnrollmentRepository) FindByUserAndCourse(ctx context.Context, userID, courseID int64) (*models.Enrollment, error) {
	const query = `SELECT id, user_id, course_id, status, progress_percent, enrolled_at, completed_at
        FROM enrollments WHERE user_id = $1 AND course_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, userID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByUser returns a user's enrollments joined with course titles.
func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID int64) ([]models.EnrollmentRow, error) {
	const query = `SELECT e.id, e.user_id, e.course_id, e.status, e.progress_percent, e.enrolled_at, e.completed_at,
        u.name AS student_name, u.email AS student_email, c.title AS course_title
        FROM enrollments e
        JOIN users u ON u.id = e.user_id
        JOIN courses c ON c.id = e.course_id
        WHERE e.user_id = $1
        ORDER BY e.enrolled_at DESC`
	var rows []models.EnrollmentRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list enrollments by user: %w", err)
	}
	return rows, nil
}

// ListByCourse returns a course's roster joined with student identity.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID int64) ([]models.EnrollmentRow, error) {
	const query = `SELECT e.id, e.user_id, e.course_id, e.status, e.progress_percent, e.enrolled_at, e.completed_at,
        u.name AS student_name, u.email AS student_email, c.title AS course_title
        FROM enrollments e
        JOIN users u ON u.id = e.user_id
        JOIN courses c ON c.id = e.course_id
        WHERE e.course_id = $1
        ORDER BY e.enrolled_at ASC`
	var rows []models.EnrollmentRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("list enrollments by course: %w", err)
	}
	return rows, nil
}

// UpdateProgress stores a recomputed progress percentage and, when the
// status transitions to completed, stamps completed_at.
func (r *EnrollmentRepository) UpdateProgress(ctx context.Context, id int64, progress int, status models.EnrollmentStatus) (*models.Enrollment, error) {
	var completedAt *time.Time
	if status == models.EnrollmentStatusCompleted {
		now := time.Now().UTC()
		completedAt = &now
	}
	const query = `UPDATE enrollments
        SET progress_percent = $2, status = $3, completed_at = COALESCE(completed_at, $4)
        WHERE id = $1
        RETURNING id, user_id, course_id, status, progress_percent, enrolled_at, completed_at`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id, progress, status, completedAt); err != nil {
		return nil, fmt.Errorf("update progress: %w", err)
	}
	return &enrollment, nil
}

// UpdateStatus changes the lifecycle state only.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id int64, status models.EnrollmentStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE enrollments SET status = $2 WHERE id = $1`, id, status); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// MarkLessonComplete records a completed lesson, idempotently.
func (r *EnrollmentRepository) MarkLessonComplete(ctx context.Context, enrollmentID, lessonID int64) error {
	const query = `INSERT INTO lesson_progress (enrollment_id, lesson_id)
        VALUES ($1, $2)
        ON CONFLICT (enrollment_id, lesson_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, enrollmentID, lessonID); err != nil {
		return fmt.Errorf("mark lesson complete: %w", err)
	}
	return nil
}

// CompletedLessonCount counts distinct completed lessons for an enrollment.
func (r *EnrollmentRepository) CompletedLessonCount(ctx context.Context, enrollmentID int64) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM lesson_progress WHERE enrollment_id = $1`
	if err := r.db.GetContext(ctx, &count, query, enrollmentID); err != nil {
		return 0, fmt.Errorf("count lesson progress: %w", err)
	}
	return count, nil
}

// StatsByCourse aggregates active/completed counts and the average
// progress across all non-cancelled enrollments.
func (r *EnrollmentRepository) StatsByCourse(ctx context.Context, courseID int64) (*models.EnrollmentStats, error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE status = 'active') AS active,
        COUNT(*) FILTER (WHERE status = 'completed') AS completed,
        COALESCE(AVG(progress_percent) FILTER (WHERE status <> 'cancelled'), 0) AS average_progress
        FROM enrollments WHERE course_id = $1`
	var stats models.EnrollmentStats
	if err := r.db.GetContext(ctx, &stats, query, courseID); err != nil {
		return nil, fmt.Errorf("enrollment stats: %w", err)
	}
	return &stats, nil
}

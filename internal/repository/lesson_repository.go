package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/openlearnhq/lms-api/internal/models"
)

// LessonRepository manages persistence for course lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs a LessonRepository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// Create inserts a lesson and fills in the generated id and created_at.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	const query = `INSERT INTO lessons (course_id, title, content, position)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	if err := r.db.QueryRowxContext(ctx, query,
		lesson.CourseID, lesson.Title, lesson.Content, lesson.Position).
		Scan(&lesson.ID, &lesson.CreatedAt); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// FindByID fetches a lesson by id. Returns sql.ErrNoRows when absent.
func (r *LessonRepository) FindByID(ctx context.Context, id int64) (*models.Lesson, error) {
	const query = `SELECT id, course_id, title, content, position, created_at FROM lessons WHERE id = $1`
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ListByCourse returns the lessons of a course ordered by position.
func (r *LessonRepository) ListByCourse(ctx context.Context, courseID int64) ([]models.Lesson, error) {
	const query = `SELECT id, course_id, title, content, position, created_at
        FROM lessons WHERE course_id = $1 ORDER BY position ASC, id ASC`
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, courseID); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// CountByCourse returns the number of lessons in a course.
func (r *LessonRepository) CountByCourse(ctx context.Context, courseID int64) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM lessons WHERE course_id = $1`, courseID); err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return count, nil
}

// Update applies the given column set to a lesson and returns the updated
// row. An empty set short-circuits to a plain read.
func (r *LessonRepository) Update(ctx context.Context, id int64, updates map[string]interface{}) (*models.Lesson, error) {
	if len(updates) == 0 {
		return r.FindByID(ctx, id)
	}

	sets := make([]string, 0, len(updates))
	args := make([]interface{}, 0, len(updates)+1)
	for _, column := range []string{"title", "content", "position"} {
		if value, ok := updates[column]; ok {
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)+1))
			args = append(args, value)
		}
	}
	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE lessons SET %s WHERE id = $%d
        RETURNING id, course_id, title, content, position, created_at`, strings.Join(sets, ", "), len(args))

	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, args...); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// Delete removes a lesson and reports whether a row was removed.
func (r *LessonRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete lesson: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete lesson: %w", err)
	}
	return affected > 0, nil
}

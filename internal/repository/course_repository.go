package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/openlearnhq/lms-api/internal/models"
)

// CourseRepository manages persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts a course and fills in the generated id and created_at.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	const query = `INSERT INTO courses (title, description, price_cents, published, instructor_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`
	if err := r.db.QueryRowxContext(ctx, query,
		course.Title, course.Description, course.PriceCents, course.Published, course.InstructorID).
		Scan(&course.ID, &course.CreatedAt); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// FindByID fetches a course by id. Returns sql.ErrNoRows when absent.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	const query = `SELECT id, title, description, price_cents, published, instructor_id, created_at
        FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns courses matching the filter with a total count. Filters
// combine with AND semantics.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := "FROM courses"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.PublishedOnly {
		conditions = append(conditions, "published = TRUE")
	}
	if filter.InstructorID != nil {
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)+1))
		args = append(args, *filter.InstructorID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(title) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(`SELECT id, title, description, price_cents, published, instructor_id, created_at
        %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, base, len(args)+1, len(args)+2)
	listArgs := append(append([]interface{}{}, args...), limit, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// Update applies the given column set to a course and returns the updated
// row. An empty set short-circuits to a plain read.
func (r *CourseRepository) Update(ctx context.Context, id int64, updates map[string]interface{}) (*models.Course, error) {
	if len(updates) == 0 {
		return r.FindByID(ctx, id)
	}

	sets := make([]string, 0, len(updates))
	args := make([]interface{}, 0, len(updates)+1)
	for _, column := range []string{"title", "description", "price_cents", "published", "instructor_id"} {
		if value, ok := updates[column]; ok {
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)+1))
			args = append(args, value)
		}
	}
	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE courses SET %s WHERE id = $%d
        RETURNING id, title, description, price_cents, published, instructor_id, created_at`,
		strings.Join(sets, ", "), len(args))

	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, args...); err != nil {
		return nil, err
	}
	return &course, nil
}

// Delete removes a course and reports whether a row was removed.
func (r *CourseRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	return affected > 0, nil
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/lms-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCourseRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO courses (title, description, price_cents, published, instructor_id)")).
		WithArgs("Intro to Go", nil, int64(4999), false, int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

	course := &models.Course{Title: "Intro to Go", PriceCents: 4999, InstructorID: 7}
	require.NoError(t, repo.Create(context.Background(), course))
	require.Equal(t, int64(1), course.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListPublishedWithSearch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "description", "price_cents", "published", "instructor_id", "created_at"}).
		AddRow(int64(1), "Go Basics", nil, int64(0), true, int64(7), time.Now())
	mock.ExpectQuery("SELECT id, title, description, price_cents, published, instructor_id, created_at").
		WithArgs("%go%", 10, 0).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses")).
		WithArgs("%go%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{
		Search:        "Go",
		PublishedOnly: true,
		Page:          1,
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateBuildsOrderedSet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "description", "price_cents", "published", "instructor_id", "created_at"}).
		AddRow(int64(5), "New Title", nil, int64(2500), true, int64(7), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE courses SET title = $1, price_cents = $2 WHERE id = $3")).
		WithArgs("New Title", int64(2500), int64(5)).
		WillReturnRows(rows)

	course, err := repo.Update(context.Background(), 5, map[string]interface{}{
		"title":       "New Title",
		"price_cents": int64(2500),
	})
	require.NoError(t, err)
	require.Equal(t, "New Title", course.Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateEmptySetReadsCurrent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "description", "price_cents", "published", "instructor_id", "created_at"}).
		AddRow(int64(5), "Unchanged", nil, int64(0), false, int64(7), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description, price_cents, published, instructor_id, created_at")).
		WithArgs(int64(5)).
		WillReturnRows(rows)

	course, err := repo.Update(context.Background(), 5, map[string]interface{}{})
	require.NoError(t, err)
	require.Equal(t, "Unchanged", course.Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	deleted, err := repo.Delete(context.Background(), 9)
	require.NoError(t, err)
	require.True(t, deleted)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1")).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	deleted, err = repo.Delete(context.Background(), 10)
	require.NoError(t, err)
	require.False(t, deleted)

	require.NoError(t, mock.ExpectationsWereMet())
}

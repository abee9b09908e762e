package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/lms-api/internal/models"
)

func TestEnrollmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO enrollments (user_id, course_id, status, progress_percent)")).
		WithArgs(int64(3), int64(1), models.EnrollmentStatusActive, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "enrolled_at"}).AddRow(int64(11), time.Now()))

	enrollment := &models.Enrollment{UserID: 3, CourseID: 1, Status: models.EnrollmentStatusActive}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	require.Equal(t, int64(11), enrollment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMarkLessonCompleteIdempotent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lesson_progress (enrollment_id, lesson_id)")).
		WithArgs(int64(11), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkLessonComplete(context.Background(), 11, 4))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lesson_progress (enrollment_id, lesson_id)")).
		WithArgs(int64(11), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.MarkLessonComplete(context.Background(), 11, 4))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateProgressStampsCompletion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	completed := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "course_id", "status", "progress_percent", "enrolled_at", "completed_at"}).
		AddRow(int64(11), int64(3), int64(1), models.EnrollmentStatusCompleted, 100, time.Now(), completed)
	mock.ExpectQuery("UPDATE enrollments").
		WithArgs(int64(11), 100, models.EnrollmentStatusCompleted, sqlmock.AnyArg()).
		WillReturnRows(rows)

	enrollment, err := repo.UpdateProgress(context.Background(), 11, 100, models.EnrollmentStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusCompleted, enrollment.Status)
	require.NotNil(t, enrollment.CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryStatsByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"active", "completed", "average_progress"}).AddRow(4, 2, 62.5)
	mock.ExpectQuery("SELECT").WithArgs(int64(1)).WillReturnRows(rows)

	stats, err := repo.StatsByCourse(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 4, stats.Active)
	require.Equal(t, 2, stats.Completed)
	require.InDelta(t, 62.5, stats.AverageProgress, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/lms-api/internal/models"
)

func TestUserRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (email, password_hash, name, role)")).
		WithArgs("student@example.com", "hash", "Student", models.RoleStudent).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), time.Now()))

	user := &models.User{Email: "student@example.com", PasswordHash: "hash", Name: "Student", Role: models.RoleStudent}
	require.NoError(t, repo.Create(context.Background(), user))
	require.Equal(t, int64(3), user.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmailLowercases(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "role", "created_at"}).
		AddRow(int64(3), "student@example.com", "hash", "Student", models.RoleStudent, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, name, role, created_at FROM users WHERE email = $1")).
		WithArgs("student@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "Student@Example.COM")
	require.NoError(t, err)
	require.Equal(t, int64(3), user.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryExistsByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("taken@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	exists, err := repo.ExistsByEmail(context.Background(), "taken@example.com")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("free@example.com").
		WillReturnError(sql.ErrNoRows)
	exists, err = repo.ExistsByEmail(context.Background(), "free@example.com")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListFiltersByRole(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	role := models.RoleInstructor
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "role", "created_at"}).
		AddRow(int64(7), "teach@example.com", "hash", "Teacher", role, time.Now())
	mock.ExpectQuery("SELECT id, email, password_hash, name, role, created_at").
		WithArgs(role, 10, 0).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WithArgs(role).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

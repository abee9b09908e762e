package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/lms-api/internal/authz"
	"github.com/openlearnhq/lms-api/internal/models"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
	"github.com/openlearnhq/lms-api/pkg/storage"
)

type mockCertificateRepo struct {
	nextID       int64
	certificates map[int64]*models.Certificate
}

func newMockCertificateRepo() *mockCertificateRepo {
	return &mockCertificateRepo{certificates: map[int64]*models.Certificate{}}
}

func (m *mockCertificateRepo) Create(ctx context.Context, certificate *models.Certificate) error {
	m.nextID++
	certificate.ID = m.nextID
	certificate.IssuedAt = time.Now().UTC()
	stored := *certificate
	m.certificates[certificate.ID] = &stored
	return nil
}

func (m *mockCertificateRepo) FindByID(ctx context.Context, id int64) (*models.Certificate, error) {
	certificate, ok := m.certificates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return certificate, nil
}

func (m *mockCertificateRepo) FindByUserAndCourse(ctx context.Context, userID, courseID int64) (*models.Certificate, error) {
	for _, certificate := range m.certificates {
		if certificate.UserID == userID && certificate.CourseID == courseID {
			return certificate, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateRepo) ListByUser(ctx context.Context, userID int64) ([]models.Certificate, error) {
	var out []models.Certificate
	for _, certificate := range m.certificates {
		if certificate.UserID == userID {
			out = append(out, *certificate)
		}
	}
	return out, nil
}

func certificateFixture(t *testing.T) (*CertificateService, *mockCertificateRepo, *mockUserRepo, *mockCourseRepo) {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)

	certificates := newMockCertificateRepo()
	users := newMockUserRepo()
	courses := newMockCourseRepo()

	svc := NewCertificateService(certificates, users, courses, store, signer, &mockOutbox{}, nil, "/api/v1/certificates/download")
	return svc, certificates, users, courses
}

func TestIssueRendersAndStoresPDF(t *testing.T) {
	svc, _, users, courses := certificateFixture(t)
	student := users.add(&models.User{Email: "ada@example.com", Name: "Ada Lovelace", Role: models.RoleStudent})
	course := courses.add(&models.Course{Title: "Go", Published: true, InstructorID: 7})

	certificate, err := svc.Issue(context.Background(), student.ID, course.ID)
	require.NoError(t, err)
	require.NotEmpty(t, certificate.Serial)
	require.Contains(t, certificate.FilePath, certificate.Serial)

	file, err := svc.store.Open(certificate.FilePath)
	require.NoError(t, err)
	defer file.Close()
	head := make([]byte, 4)
	_, err = io.ReadFull(file, head)
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(head))
}

func TestIssueIsIdempotentPerUserAndCourse(t *testing.T) {
	svc, _, users, courses := certificateFixture(t)
	student := users.add(&models.User{Email: "ada@example.com", Name: "Ada", Role: models.RoleStudent})
	course := courses.add(&models.Course{Title: "Go", Published: true, InstructorID: 7})

	first, err := svc.Issue(context.Background(), student.ID, course.ID)
	require.NoError(t, err)
	second, err := svc.Issue(context.Background(), student.ID, course.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.Serial, second.Serial)
}

func TestDownloadLinkOwnerOrAdminOnly(t *testing.T) {
	svc, _, users, courses := certificateFixture(t)
	student := users.add(&models.User{Email: "ada@example.com", Name: "Ada", Role: models.RoleStudent})
	course := courses.add(&models.Course{Title: "Go", Published: true, InstructorID: 7})

	certificate, err := svc.Issue(context.Background(), student.ID, course.ID)
	require.NoError(t, err)

	_, err = svc.DownloadLink(context.Background(), authz.Actor{ID: 999, Role: models.RoleStudent}, certificate.ID)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	owned, err := svc.DownloadLink(context.Background(), authz.Actor{ID: student.ID, Role: models.RoleStudent}, certificate.ID)
	require.NoError(t, err)
	require.Contains(t, owned.DownloadURL, "/api/v1/certificates/download?token=")
	require.True(t, owned.ExpiresAt.After(time.Now()))

	_, err = svc.DownloadLink(context.Background(), authz.Actor{ID: 1000, Role: models.RoleAdmin}, certificate.ID)
	require.NoError(t, err)
}

func TestOpenSignedServesStoredPDF(t *testing.T) {
	svc, _, users, courses := certificateFixture(t)
	student := users.add(&models.User{Email: "ada@example.com", Name: "Ada", Role: models.RoleStudent})
	course := courses.add(&models.Course{Title: "Go", Published: true, InstructorID: 7})

	certificate, err := svc.Issue(context.Background(), student.ID, course.ID)
	require.NoError(t, err)

	link, err := svc.DownloadLink(context.Background(), authz.Actor{ID: student.ID, Role: models.RoleStudent}, certificate.ID)
	require.NoError(t, err)
	token := strings.TrimPrefix(link.DownloadURL, "/api/v1/certificates/download?token=")

	file, opened, err := svc.OpenSigned(context.Background(), token)
	require.NoError(t, err)
	defer file.Close()
	require.Equal(t, certificate.ID, opened.ID)

	_, _, err = svc.OpenSigned(context.Background(), token+"ff")
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

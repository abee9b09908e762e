package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openlearnhq/lms-api/internal/authz"
	"github.com/openlearnhq/lms-api/internal/models"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
	"github.com/openlearnhq/lms-api/pkg/export"
	"github.com/openlearnhq/lms-api/pkg/storage"
)

type certificateRepository interface {
	Create(ctx context.Context, certificate *models.Certificate) error
	FindByID(ctx context.Context, id int64) (*models.Certificate, error)
	FindByUserAndCourse(ctx context.Context, userID, courseID int64) (*models.Certificate, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Certificate, error)
}

type certificateUserReader interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// CertificateService issues completion certificates and mints signed
// download URLs for their PDFs.
type CertificateService struct {
	certificates certificateRepository
	users        certificateUserReader
	courses      courseReader
	store        *storage.LocalStorage
	signer       *storage.SignedURLSigner
	renderer     *export.CertificatePDF
	outbox       outboxAppender
	logger       *zap.Logger
	downloadPath string
}

// NewCertificateService constructs a CertificateService. downloadPath is
// the public route prefix the signed token is appended to.
func NewCertificateService(
	certificates certificateRepository,
	users certificateUserReader,
	courses courseReader,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	outbox outboxAppender,
	logger *zap.Logger,
	downloadPath string,
) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if downloadPath == "" {
		downloadPath = "/api/v1/certificates/download"
	}
	return &CertificateService{
		certificates: certificates,
		users:        users,
		courses:      courses,
		store:        store,
		signer:       signer,
		renderer:     export.NewCertificatePDF(),
		outbox:       outbox,
		logger:       logger,
		downloadPath: downloadPath,
	}
}

// Issue creates the certificate for a completed enrollment, rendering and
// storing its PDF. Issuing twice for the same (user, course) returns the
// existing record.
func (s *CertificateService) Issue(ctx context.Context, userID, courseID int64) (*models.Certificate, error) {
	if existing, err := s.certificates.FindByUserAndCourse(ctx, userID, courseID); err == nil {
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check certificate")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUserNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}

	serial := strings.ToUpper(uuid.NewString())
	issuedAt := time.Now().UTC()

	pdf, err := s.renderer.Render(export.CertificateData{
		Serial:      serial,
		StudentName: user.Name,
		CourseTitle: course.Title,
		IssuedAt:    issuedAt,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}

	relPath := fmt.Sprintf("%d/%s.pdf", courseID, serial)
	if _, err := s.store.Save(relPath, pdf); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
	}

	certificate := &models.Certificate{
		UserID:   userID,
		CourseID: courseID,
		Serial:   serial,
		FilePath: relPath,
	}
	if err := s.certificates.Create(ctx, certificate); err != nil {
		if isUniqueViolation(err) {
			return s.certificates.FindByUserAndCourse(ctx, userID, courseID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create certificate")
	}

	if s.outbox != nil {
		if err := s.outbox.Append(ctx, models.TopicCertificateIssue, map[string]interface{}{
			"certificate_id": certificate.ID,
			"user_id":        userID,
			"course_id":      courseID,
			"serial":         serial,
		}); err != nil {
			s.logger.Warn("failed to record certificate event", zap.Error(err))
		}
	}
	return certificate, nil
}

// ListMine returns the actor's certificates.
func (s *CertificateService) ListMine(ctx context.Context, actor authz.Actor) ([]models.Certificate, error) {
	certificates, err := s.certificates.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	if certificates == nil {
		certificates = []models.Certificate{}
	}
	return certificates, nil
}

// DownloadLink returns a certificate with a short-lived signed URL for its
// PDF. Owners and admins only.
func (s *CertificateService) DownloadLink(ctx context.Context, actor authz.Actor, certificateID int64) (*models.CertificateDownload, error) {
	if certificateID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "")
	}
	certificate, err := s.certificates.FindByID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch certificate")
	}
	if actor.Role != models.RoleAdmin && actor.ID != certificate.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
	}

	token, expiresAt, err := s.signer.Generate(strconv.FormatInt(certificate.ID, 10), certificate.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	return &models.CertificateDownload{
		Certificate: *certificate,
		DownloadURL: fmt.Sprintf("%s?token=%s", s.downloadPath, token),
		ExpiresAt:   expiresAt,
	}, nil
}

// OpenSigned validates a signed token and opens the referenced PDF. The
// returned file must be closed by the caller.
func (s *CertificateService) OpenSigned(ctx context.Context, token string) (*os.File, *models.Certificate, error) {
	resourceID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}

	id, err := strconv.ParseInt(resourceID, 10, 64)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	certificate, err := s.certificates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch certificate")
	}
	if certificate.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open certificate")
	}
	return file, certificate, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/openlearnhq/lms-api/internal/models"
)

// CertificateRepository manages persistence for issued certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs a CertificateRepository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Create inserts a certificate and fills in the generated id and issued_at.
func (r *CertificateRepository) Create(ctx context.Context, certificate *models.Certificate) error {
	const query = `INSERT INTO certificates (user_id, course_id, serial, file_path)
        VALUES ($1, $2, $3, $4)
        RETURNING id, issued_at`
	if err := r.db.QueryRowxContext(ctx, query,
		certificate.UserID, certificate.CourseID, certificate.Serial, certificate.FilePath).
		Scan(&certificate.ID, &certificate.IssuedAt); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// FindByID fetches a certificate by id. Returns sql.ErrNoRows when absent.
func (r *CertificateRepository) FindByID(ctx context.Context, id int64) (*models.Certificate, error) {
	const query = `SELECT id, user_id, course_id, serial, file_path, issued_at FROM certificates WHERE id = $1`
	var certificate models.Certificate
	if err := r.db.GetContext(ctx, &certificate, query, id); err != nil {
		return nil, err
	}
	return &certificate, nil
}

// FindByUserAndCourse fetches the certificate for a (user, course) pair.
func (r *CertificateRepository) FindByUserAndCourse(ctx context.Context, userID, courseID int64) (*models.Certificate, error) {
	const query = `SELECT id, user_id, course_id, serial, file_path, issued_at
        FROM certificates WHERE user_id = $1 AND course_id = $2`
	var certificate models.Certificate
	if err := r.db.GetContext(ctx, &certificate, query, userID, courseID); err != nil {
		return nil, err
	}
	return &certificate, nil
}

// ListByUser returns a user's certificates, newest first.
func (r *CertificateRepository) ListByUser(ctx context.Context, userID int64) ([]models.Certificate, error) {
	const query = `SELECT id, user_id, course_id, serial, file_path, issued_at
        FROM certificates WHERE user_id = $1 ORDER BY issued_at DESC`
	var certificates []models.Certificate
	if err := r.db.SelectContext(ctx, &certificates, query, userID); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certificates, nil
}

// CountByCourse returns the number of certificates issued for a course.
func (r *CertificateRepository) CountByCourse(ctx context.Context, courseID int64) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM certificates WHERE course_id = $1`, courseID); err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return count, nil
}

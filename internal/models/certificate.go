package models

import "time"

// Certificate records a completion certificate, unique per (user, course).
type Certificate struct {
	ID       int64     `db:"id" json:"id"`
	UserID   int64     `db:"user_id" json:"user_id"`
	CourseID int64     `db:"course_id" json:"course_id"`
	Serial   string    `db:"serial" json:"serial"`
	FilePath string    `db:"file_path" json:"-"`
	IssuedAt time.Time `db:"issued_at" json:"issued_at"`
}

// CertificateDownload pairs a certificate with a signed download token.
type CertificateDownload struct {
	Certificate Certificate `json:"certificate"`
	DownloadURL string      `json:"download_url"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData carries everything rendered onto a completion certificate.
type CertificateData struct {
	Serial      string
	StudentName string
	CourseTitle string
	IssuedAt    time.Time
}

// CertificatePDF renders completion certificates as landscape A4 PDFs.
type CertificatePDF struct{}

// NewCertificatePDF constructs a certificate renderer.
func NewCertificatePDF() *CertificatePDF {
	return &CertificatePDF{}
}

// Render produces the PDF bytes for a completion certificate.
func (e *CertificatePDF) Render(data CertificateData) ([]byte, error) {
	if data.StudentName == "" || data.CourseTitle == "" {
		return nil, fmt.Errorf("certificate requires student and course names")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 28)
	pdf.CellFormat(0, 18, "Certificate of Completion", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 10, "This certifies that", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "B", 22)
	pdf.CellFormat(0, 14, data.StudentName, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 10, "has successfully completed the course", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, data.CourseTitle, "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, fmt.Sprintf("Issued on %s", data.IssuedAt.Format("January 2, 2006")), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 8, fmt.Sprintf("Serial: %s", data.Serial), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}

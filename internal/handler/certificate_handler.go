package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openlearnhq/lms-api/internal/service"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
	"github.com/openlearnhq/lms-api/pkg/response"
)

// CertificateHandler exposes certificate endpoints.
type CertificateHandler struct {
	certificates *service.CertificateService
}

// NewCertificateHandler constructs CertificateHandler.
func NewCertificateHandler(certificates *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// ListMine godoc
// @Summary List my certificates
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /certificates [get]
func (h *CertificateHandler) ListMine(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	certificates, err := h.certificates.ListMine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, certificates)
}

// DownloadLink godoc
// @Summary Get signed certificate download URL
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Param id path int true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/{id}/download-link [get]
func (h *CertificateHandler) DownloadLink(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	download, err := h.certificates.DownloadLink(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, download)
}

// Download godoc
// @Summary Download certificate PDF
// @Description Serves the PDF referenced by a signed token; no auth header needed
// @Tags Certificates
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} file "PDF payload"
// @Failure 401 {object} response.Envelope
// @Router /certificates/download [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing download token"))
		return
	}

	file, certificate, err := h.certificates.OpenSigned(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", certificate.Serial+".pdf"))
	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}

package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openlearnhq/lms-api/internal/models"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
	"github.com/openlearnhq/lms-api/pkg/middleware/requestid"
)

// Envelope is the uniform response wrapper: {ok:true,...} on success and
// {ok:false, error:{...}} on failure.
type Envelope struct {
	OK         bool               `json:"ok"`
	Data       interface{}        `json:"data,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
	Error      *ErrorBody         `json:"error,omitempty"`
}

// ErrorBody is the failure payload carried inside the envelope.
type ErrorBody struct {
	Code      string                  `json:"code"`
	Message   string                  `json:"message"`
	Details   []appErrors.FieldError  `json:"details,omitempty"`
	RequestID string                  `json:"requestId"`
	Timestamp time.Time               `json:"timestamp"`
}

// JSON sends a success envelope with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, Envelope{OK: true, Data: data, Pagination: pagination})
}

// OK responds with HTTP 200.
func OK(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data, nil)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error converts any error into the failure envelope.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.JSON(appErr.Status, Envelope{OK: false, Error: &ErrorBody{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
		RequestID: requestid.Value(c),
		Timestamp: time.Now().UTC(),
	}})
}

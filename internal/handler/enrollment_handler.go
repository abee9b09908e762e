package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/openlearnhq/lms-api/internal/service"
	"github.com/openlearnhq/lms-api/pkg/response"
)

// EnrollmentHandler exposes enrollment and progress endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Enroll godoc
// @Summary Enroll in course
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	courseID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	enrollment, err := h.enrollments.Enroll(c.Request.Context(), actor, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// ListMine godoc
// @Summary List my enrollments
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	rows, err := h.enrollments.ListMine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}

// CompleteLesson godoc
// @Summary Mark lesson completed
// @Description Records progress; completing every lesson finishes the course
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param lessonId path int true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/lessons/{lessonId}/complete [post]
func (h *EnrollmentHandler) CompleteLesson(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	courseID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	lessonID, err := pathID(c, "lessonId")
	if err != nil {
		response.Error(c, err)
		return
	}

	enrollment, err := h.enrollments.CompleteLesson(c.Request.Context(), actor, courseID, lessonID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openlearnhq/lms-api/internal/service"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
	"github.com/openlearnhq/lms-api/pkg/response"
)

// CourseHandler exposes course endpoints.
type CourseHandler struct {
	courses     *service.CourseService
	enrollments *service.EnrollmentService
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses *service.CourseService, enrollments *service.EnrollmentService) *CourseHandler {
	return &CourseHandler{courses: courses, enrollments: enrollments}
}

// List godoc
// @Summary List courses
// @Description Anonymous and student callers see published courses only
// @Tags Courses
// @Produce json
// @Param search query string false "Search by title"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	list, err := h.courses.List(c.Request.Context(), actorFromContext(c),
		queryValue(c, "page"), queryValue(c, "limit"), queryValue(c, "search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list.Courses, &list.Pagination)
}

// Get godoc
// @Summary Get course
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.courses.Get(c.Request.Context(), actorFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body object true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}

	course, err := h.courses.Create(c.Request.Context(), actor, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param payload body object true "Partial course payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [patch]
func (h *CourseHandler) Update(c *gin.Context) {
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

	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}

	course, err := h.courses.Update(c.Request.Context(), actor, id, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// Delete godoc
// @Summary Delete course
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
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

	if err := h.courses.Delete(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Publish godoc
// @Summary Publish course
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/publish [post]
func (h *CourseHandler) Publish(c *gin.Context) {
	h.setPublished(c, true)
}

// Unpublish godoc
// @Summary Unpublish course
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/unpublish [post]
func (h *CourseHandler) Unpublish(c *gin.Context) {
	h.setPublished(c, false)
}

func (h *CourseHandler) setPublished(c *gin.Context, published bool) {
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

	course, err := h.courses.SetPublished(c.Request.Context(), actor, id, published)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// Overview godoc
// @Summary Course overview
// @Description Aggregated counters for a course
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/overview [get]
func (h *CourseHandler) Overview(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	overview, err := h.courses.Overview(c.Request.Context(), actorFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, overview)
}

// ExportRoster godoc
// @Summary Export course roster
// @Description Download the enrollment roster as CSV
// @Tags Courses
// @Produce text/csv
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {string} string "CSV payload"
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/roster/export [get]
func (h *CourseHandler) ExportRoster(c *gin.Context) {
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

	payload, err := h.enrollments.ExportRoster(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("roster-%d-%s.csv", id, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", payload)
}

// Roster godoc
// @Summary Course roster
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/roster [get]
func (h *CourseHandler) Roster(c *gin.Context) {
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

	rows, err := h.enrollments.Roster(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}

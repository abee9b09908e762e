package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openlearnhq/lms-api/internal/models"
	"github.com/openlearnhq/lms-api/internal/service"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
	"github.com/openlearnhq/lms-api/pkg/response"
)

// LessonHandler exposes lesson endpoints nested under courses.
type LessonHandler struct {
	lessons *service.LessonService
}

// NewLessonHandler constructs LessonHandler.
func NewLessonHandler(lessons *service.LessonService) *LessonHandler {
	return &LessonHandler{lessons: lessons}
}

// List godoc
// @Summary List course lessons
// @Tags Lessons
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	courseID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	lessons, err := h.lessons.List(c.Request.Context(), actorFromContext(c), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, lessons)
}

// Get godoc
// @Summary Get lesson
// @Tags Lessons
// @Produce json
// @Param id path int true "Course ID"
// @Param lessonId path int true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/lessons/{lessonId} [get]
func (h *LessonHandler) Get(c *gin.Context) {
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

	lesson, err := h.lessons.Get(c.Request.Context(), actorFromContext(c), courseID, lessonID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, lesson)
}

// Create godoc
// @Summary Create lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param payload body models.CreateLessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
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

	var req models.CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson payload"))
		return
	}

	lesson, err := h.lessons.Create(c.Request.Context(), actor, courseID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// Update godoc
// @Summary Update lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param lessonId path int true "Lesson ID"
// @Param payload body models.UpdateLessonRequest true "Partial lesson payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/lessons/{lessonId} [patch]
func (h *LessonHandler) Update(c *gin.Context) {
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

	var req models.UpdateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson payload"))
		return
	}

	lesson, err := h.lessons.Update(c.Request.Context(), actor, courseID, lessonID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, lesson)
}

// Delete godoc
// @Summary Delete lesson
// @Tags Lessons
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param lessonId path int true "Lesson ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/lessons/{lessonId} [delete]
func (h *LessonHandler) Delete(c *gin.Context) {
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

	if err := h.lessons.Delete(c.Request.Context(), actor, courseID, lessonID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

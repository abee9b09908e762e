package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openlearnhq/lms-api/internal/models"
	"github.com/openlearnhq/lms-api/internal/service"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
	"github.com/openlearnhq/lms-api/pkg/response"
)

// QuizHandler exposes quiz endpoints nested under courses.
type QuizHandler struct {
	quizzes *service.QuizService
}

// NewQuizHandler constructs QuizHandler.
func NewQuizHandler(quizzes *service.QuizService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

// List godoc
// @Summary List course quizzes
// @Tags Quizzes
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/quizzes [get]
func (h *QuizHandler) List(c *gin.Context) {
	courseID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	quizzes, err := h.quizzes.List(c.Request.Context(), actorFromContext(c), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, quizzes)
}

// Create godoc
// @Summary Create quiz
// @Tags Quizzes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param payload body models.CreateQuizRequest true "Quiz payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/quizzes [post]
func (h *QuizHandler) Create(c *gin.Context) {
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

	var req models.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid quiz payload"))
		return
	}

	quiz, err := h.quizzes.Create(c.Request.Context(), actor, courseID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quiz)
}

// Questions godoc
// @Summary List quiz questions
// @Description Correct answers are never included
// @Tags Quizzes
// @Produce json
// @Param id path int true "Course ID"
// @Param quizId path int true "Quiz ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/quizzes/{quizId}/questions [get]
func (h *QuizHandler) Questions(c *gin.Context) {
	courseID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	quizID, err := pathID(c, "quizId")
	if err != nil {
		response.Error(c, err)
		return
	}

	questions, err := h.quizzes.Questions(c.Request.Context(), actorFromContext(c), courseID, quizID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, questions)
}

// AddQuestion godoc
// @Summary Add quiz question
// @Tags Quizzes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param quizId path int true "Quiz ID"
// @Param payload body models.CreateQuestionRequest true "Question payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/quizzes/{quizId}/questions [post]
func (h *QuizHandler) AddQuestion(c *gin.Context) {
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
	quizID, err := pathID(c, "quizId")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid question payload"))
		return
	}

	question, err := h.quizzes.AddQuestion(c.Request.Context(), actor, courseID, quizID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, question)
}

// Submit godoc
// @Summary Submit quiz answers
// @Tags Quizzes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param quizId path int true "Quiz ID"
// @Param payload body models.SubmitQuizRequest true "Answers payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/quizzes/{quizId}/submissions [post]
func (h *QuizHandler) Submit(c *gin.Context) {
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
	quizID, err := pathID(c, "quizId")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.SubmitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}

	submission, err := h.quizzes.Submit(c.Request.Context(), actor, courseID, quizID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Delete godoc
// @Summary Delete quiz
// @Tags Quizzes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param quizId path int true "Quiz ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/quizzes/{quizId} [delete]
func (h *QuizHandler) Delete(c *gin.Context) {
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
	quizID, err := pathID(c, "quizId")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.quizzes.Delete(c.Request.Context(), actor, courseID, quizID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/openlearnhq/lms-api/internal/middleware"
	"github.com/openlearnhq/lms-api/internal/models"
	"github.com/openlearnhq/lms-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth         *AuthHandler
	Users        *UserHandler
	Courses      *CourseHandler
	Lessons      *LessonHandler
	Quizzes      *QuizHandler
	Enrollments  *EnrollmentHandler
	Certificates *CertificateHandler
}

// RegisterRoutes mounts the API under the given prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, authService *service.AuthService) {
	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.GET("/me", middleware.JWT(authService), h.Auth.Me)
	}

	users := api.Group("/users", middleware.JWT(authService))
	{
		users.GET("", h.Users.List)
		users.GET("/:id", h.Users.Get)
		users.PATCH("/:id", h.Users.Update)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), h.Users.Delete)
	}

	courses := api.Group("/courses")
	{
		courses.GET("", middleware.OptionalJWT(authService), h.Courses.List)
		courses.GET("/:id", middleware.OptionalJWT(authService), h.Courses.Get)
		courses.GET("/:id/overview", middleware.OptionalJWT(authService), h.Courses.Overview)
		courses.GET("/:id/lessons", middleware.OptionalJWT(authService), h.Lessons.List)
		courses.GET("/:id/lessons/:lessonId", middleware.OptionalJWT(authService), h.Lessons.Get)
		courses.GET("/:id/quizzes", middleware.OptionalJWT(authService), h.Quizzes.List)
		courses.GET("/:id/quizzes/:quizId/questions", middleware.OptionalJWT(authService), h.Quizzes.Questions)

		authed := courses.Group("", middleware.JWT(authService))
		{
			authed.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), h.Courses.Create)
			authed.PATCH("/:id", h.Courses.Update)
			authed.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), h.Courses.Delete)
			authed.POST("/:id/publish", h.Courses.Publish)
			authed.POST("/:id/unpublish", h.Courses.Unpublish)
			authed.GET("/:id/roster", h.Courses.Roster)
			authed.GET("/:id/roster/export", h.Courses.ExportRoster)

			authed.POST("/:id/lessons", h.Lessons.Create)
			authed.PATCH("/:id/lessons/:lessonId", h.Lessons.Update)
			authed.DELETE("/:id/lessons/:lessonId", h.Lessons.Delete)
			authed.POST("/:id/lessons/:lessonId/complete", h.Enrollments.CompleteLesson)

			authed.POST("/:id/quizzes", h.Quizzes.Create)
			authed.DELETE("/:id/quizzes/:quizId", h.Quizzes.Delete)
			authed.POST("/:id/quizzes/:quizId/questions", h.Quizzes.AddQuestion)
			authed.POST("/:id/quizzes/:quizId/submissions", h.Quizzes.Submit)

			authed.POST("/:id/enroll", h.Enrollments.Enroll)
		}
	}

	enrollments := api.Group("/enrollments", middleware.JWT(authService))
	{
		enrollments.GET("", h.Enrollments.ListMine)
	}

	certificates := api.Group("/certificates")
	{
		certificates.GET("/download", h.Certificates.Download)

		authed := certificates.Group("", middleware.JWT(authService))
		{
			authed.GET("", h.Certificates.ListMine)
			authed.GET("/:id/download-link", h.Certificates.DownloadLink)
		}
	}
}

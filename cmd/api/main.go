package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/openlearnhq/lms-api/api/swagger"
	"github.com/openlearnhq/lms-api/internal/handler"
	"github.com/openlearnhq/lms-api/internal/middleware"
	"github.com/openlearnhq/lms-api/internal/repository"
	"github.com/openlearnhq/lms-api/internal/service"
	"github.com/openlearnhq/lms-api/pkg/cache"
	"github.com/openlearnhq/lms-api/pkg/config"
	"github.com/openlearnhq/lms-api/pkg/database"
	"github.com/openlearnhq/lms-api/pkg/logger"
	corsmiddleware "github.com/openlearnhq/lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/openlearnhq/lms-api/pkg/middleware/requestid"
	"github.com/openlearnhq/lms-api/pkg/storage"
)

// @title OpenLearn LMS API
// @version 1.0.0
// @description Learning management backend: courses, lessons, quizzes, enrollments and certificates
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init certificate storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	cacheClient := redisClient
	if !cfg.Cache.Enabled {
		cacheClient = nil
	}
	cacheRepo := repository.NewCacheRepository(cacheClient, logr)

	authService := service.NewAuthService(userRepo, outboxRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
	})
	userService := service.NewUserService(userRepo, authService, logr)
	certificateService := service.NewCertificateService(
		certificateRepo, userRepo, courseRepo, store, signer, outboxRepo, logr,
		cfg.APIPrefix+"/certificates/download",
	)

	courseService := service.NewCourseService(
		courseRepo, userRepo, lessonRepo, quizRepo, enrollmentRepo, certificateRepo,
		cacheRepo, outboxRepo, logr, cfg.Cache.OverviewTTL,
	)
	lessonService := service.NewLessonService(lessonRepo, courseRepo, cacheRepo, validate, logr)
	quizService := service.NewQuizService(quizRepo, courseRepo, enrollmentRepo, validate, logr)
	enrollmentService := service.NewEnrollmentService(
		enrollmentRepo, courseRepo, lessonRepo, certificateService, cacheRepo, outboxRepo, logr,
	)

	metricsService := service.NewMetricsService()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		Users:        handler.NewUserHandler(userService),
		Courses:      handler.NewCourseHandler(courseService, enrollmentService),
		Lessons:      handler.NewLessonHandler(lessonService),
		Quizzes:      handler.NewQuizHandler(quizService),
		Enrollments:  handler.NewEnrollmentHandler(enrollmentService),
		Certificates: handler.NewCertificateHandler(certificateService),
	}, authService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dispatcher *service.OutboxDispatcher
	if cfg.Outbox.Enabled {
		dispatcher = service.NewOutboxDispatcher(outboxRepo, logr, service.DispatcherConfig{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			Workers:      cfg.Outbox.Workers,
		})
		dispatcher.Start(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
	if dispatcher != nil {
		dispatcher.Stop()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

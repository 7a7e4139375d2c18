// Package main runs the LectureMate HTTP server with WebSocket progress updates and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lecturemate/backend/config"
	"github.com/lecturemate/backend/internal/ai"
	"github.com/lecturemate/backend/internal/app"
	"github.com/lecturemate/backend/internal/auth"
	"github.com/lecturemate/backend/internal/export"
	"github.com/lecturemate/backend/internal/lectures"
	"github.com/lecturemate/backend/internal/middleware"
	"github.com/lecturemate/backend/internal/models"
	"github.com/lecturemate/backend/internal/realtime"
	"github.com/lecturemate/backend/internal/worker"
	"github.com/lecturemate/backend/internal/youtube"
	"github.com/lecturemate/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup", zap.Error(err))
	}
	defer a.Close()

	if a.Supervisor != nil {
		if err := a.Supervisor.Start(ctx); err != nil {
			logger.Warn("local model server did not start", zap.Error(err))
		}
		defer a.Supervisor.Stop()
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authHandler := auth.NewHandler(a.Users, jwtService, cfg.JWT.AdminEmails, logger)

	// Lectures
	lectureHandler := lectures.NewHandler(a.Store, a.Orchestrator, a.Media, a.Info, logger)
	lectureHandler.SetPDFOptions(export.PDFOptions{FontPath: cfg.Upload.PDFFontPath})
	lectureHandler.SetURLExpiry(cfg.AWS.PresignExpiry())

	// Stateless tools
	youtubeHandler := youtube.NewHandler(a.Info, a.Captions, a.Speech, logger)
	aiHandler := ai.NewHandler(a.Generator, a.Transcriber, cfg.Scripts.TempDir, logger)

	// Operators
	adminHandler := worker.NewAdminHandler(a.Queue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		health := gin.H{"status": "ok"}
		if a.Supervisor != nil {
			health["local_model_running"] = a.Supervisor.Running()
		}
		response.OK(c, health)
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	long := middleware.LongRequest(
		time.Duration(cfg.Server.UploadTimeout)*time.Second,
		time.Duration(cfg.Server.UploadTimeout+cfg.Server.WriteTimeout)*time.Second,
	)
	{
		// Lectures
		api.POST("/lectures", lectureHandler.Create)
		api.POST("/lectures/upload", long, lectureHandler.Upload)
		api.GET("/lectures", lectureHandler.List)
		api.GET("/lectures/:id", lectureHandler.Get)
		api.DELETE("/lectures/:id", lectureHandler.Delete)
		api.POST("/lectures/:id/stop", lectureHandler.Stop)
		api.POST("/lectures/:id/rerun", lectureHandler.ReRun)
		api.GET("/lectures/:id/media-url", lectureHandler.MediaURL)
		api.GET("/lectures/:id/export/pdf", lectureHandler.ExportPDF)
		api.GET("/lectures/:id/export/pptx", lectureHandler.ExportPPTX)
		api.GET("/lectures/:id/export/docx", lectureHandler.ExportDOCX)

		// YouTube helpers
		api.POST("/youtube/info", youtubeHandler.Info)
		api.POST("/youtube/transcript", youtubeHandler.Transcript)
		api.POST("/youtube/transcribe", long, youtubeHandler.Transcribe)

		// AI helpers
		api.POST("/ai/summary", aiHandler.Summary)
		api.POST("/ai/quiz", aiHandler.Quiz)
		api.POST("/ai/flashcards", aiHandler.Flashcards)
		api.POST("/ai/slides", aiHandler.Slides)
		api.POST("/ai/slides/pptx", aiHandler.SlidesPPTX)
		api.POST("/summarize", aiHandler.Summarize)
		api.POST("/audio/transcribe", long, aiHandler.TranscribeAudio)

		// Admin
		admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
		admin.GET("/users", authHandler.List)
		admin.GET("/jobs/dead", adminHandler.DeadLetters)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(a.Hub, a.Store, jwtService.ValidateToken, logger))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeout) * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (lecture pipeline), unless a separate worker process runs it
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	if cfg.Pipeline.InlineWorker {
		processor := worker.NewLectureProcessor(a.Orchestrator, a.Registry, a.Queue, cfg.Pipeline.WorkerConcurrency, logger)
		go func() {
			processor.Run(workerCtx)
			close(workerDone)
		}()
		logger.Info("lecture worker started", zap.Int("concurrency", cfg.Pipeline.WorkerConcurrency))
	} else {
		close(workerDone)
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	workerCancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("worker did not stop in time")
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

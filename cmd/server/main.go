// Package main runs the creators' notebook HTTP server with graceful shutdown.
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

	"github.com/creators-notebook/backend/config"
	"github.com/creators-notebook/backend/internal/auth"
	"github.com/creators-notebook/backend/internal/characters"
	"github.com/creators-notebook/backend/internal/middleware"
	"github.com/creators-notebook/backend/internal/projects"
	"github.com/creators-notebook/backend/internal/worker"
	"github.com/creators-notebook/backend/pkg/database"
	"github.com/creators-notebook/backend/pkg/queue"
	"github.com/creators-notebook/backend/pkg/redis"
	"github.com/creators-notebook/backend/pkg/response"
	"github.com/creators-notebook/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	var jobQueue *queue.Queue
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, image cleanup will run inline", zap.Error(err))
	} else {
		defer rdb.Close()
		jobQueue = queue.NewQueue(rdb.Client, logger)
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ImagesBucket:    cfg.AWS.ImagesBucket,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Projects (access-control core)
	projectRepo := projects.NewRepository(pool)
	membershipRepo := projects.NewMembershipRepository(pool)
	characterRepo := characters.NewRepository(pool)

	var blobs projects.BlobStore
	var cleanup projects.CleanupQueue
	if s3Client != nil {
		blobs = s3Client
	}
	if jobQueue != nil {
		cleanup = jobQueue
	}
	projectService := projects.NewService(projectRepo, membershipRepo, characterRepo, authRepo, blobs, cleanup, nil, logger)
	projectHandler := projects.NewHandler(projectService, logger)

	// Characters
	characterHandler := characters.NewHandler(characterRepo, projectService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}
	router.GET("/user/check-email", authHandler.CheckEmail)

	// Project detail is readable anonymously when the project is public.
	router.GET("/projects/:id", middleware.JWTOptional(jwtService), projectHandler.Get)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/projects", projectHandler.List)
		api.POST("/projects", projectHandler.Create)
		api.DELETE("/projects/:id", projectHandler.Delete)
		api.PATCH("/projects/:id/title", projectHandler.Rename)
		api.PATCH("/projects/:id/description", projectHandler.Redescribe)
		api.PATCH("/projects/:id/visibility", projectHandler.SetVisibility)

		api.GET("/projects/:id/members", projectHandler.ListMembers)
		api.POST("/projects/:id/members", projectHandler.InviteMember)
		api.DELETE("/projects/:id/members/:userNo", projectHandler.RemoveMember)

		api.POST("/projects/:id/characters", characterHandler.Create)
		api.PUT("/characters/:id", characterHandler.Update)
		api.DELETE("/characters/:id", characterHandler.Delete)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background image cleanup (also runs standalone as cmd/worker)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil && jobQueue != nil {
		cleaner := worker.NewImageCleaner(s3Client, jobQueue, logger)
		go cleaner.Run(workerCtx)
		logger.Info("image cleanup worker started")
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

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
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

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/benglish/academic-core/api/swagger"
	"github.com/benglish/academic-core/internal/app"
	"github.com/benglish/academic-core/internal/handler"
	"github.com/benglish/academic-core/internal/middleware"
	"github.com/benglish/academic-core/pkg/cache"
	"github.com/benglish/academic-core/pkg/config"
	"github.com/benglish/academic-core/pkg/database"
	"github.com/benglish/academic-core/pkg/i18n"
	"github.com/benglish/academic-core/pkg/logger"
	corsmiddleware "github.com/benglish/academic-core/pkg/middleware/cors"
	reqidmiddleware "github.com/benglish/academic-core/pkg/middleware/requestid"
	"github.com/benglish/academic-core/pkg/response"
)

// @title Benglish Academic Core API
// @version 1.0.0
// @description Session scheduling, reservations, academic history and progress.
// @BasePath /
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

	response.UseTranslator(i18n.New(cfg.Locale))

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Agenda.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis, 3*time.Second)
		if err != nil {
			logr.Warn("redis unavailable, agenda cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	application, err := app.New(cfg, db, redisClient, logr)
	if err != nil {
		logr.Fatal("failed to assemble application", zap.Error(err))
	}

	migrator, err := application.Migrator()
	if err != nil {
		logr.Fatal("failed to init migrations", zap.Error(err))
	}
	if err := migrator.Up(ctx); err != nil {
		logr.Fatal("failed to migrate database", zap.Error(err))
	}

	queue, worker := application.MaintenanceQueue()
	queue.Start(ctx)
	defer queue.Stop()

	scheduler, err := worker.Schedule(cfg.Maintenance.Schedule)
	if err != nil {
		logr.Fatal("invalid maintenance schedule", zap.String("schedule", cfg.Maintenance.Schedule), zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Start()
		defer scheduler.Stop()
	}

	metrics := application.Services.Metrics

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), application.Handlers(worker), middleware.JWT(application.Services.Auth))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
}

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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/finals-finder/api/swagger"
	"github.com/noah-isme/finals-finder/internal/handler"
	"github.com/noah-isme/finals-finder/internal/middleware"
	"github.com/noah-isme/finals-finder/internal/repository"
	"github.com/noah-isme/finals-finder/internal/service"
	"github.com/noah-isme/finals-finder/pkg/cache"
	"github.com/noah-isme/finals-finder/pkg/config"
	"github.com/noah-isme/finals-finder/pkg/database"
	"github.com/noah-isme/finals-finder/pkg/logger"
	corsmiddleware "github.com/noah-isme/finals-finder/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/finals-finder/pkg/middleware/requestid"
)

// @title Final Exams API
// @version 1.0.0
// @description Search and filter the final exam schedule
// @BasePath /api
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "exam-api")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("postgres unavailable", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	repo := repository.NewExamRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		logr.Fatal("ensure exam schema", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	checks := map[string]handler.Pinger{"postgres": db.PingContext}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled && cfg.Cache.Driver == config.CacheDriverRedis {
		rdb, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("redis unavailable", zap.Error(err))
		}
		redisRepo := repository.NewCacheRepository(rdb, logr)
		defer redisRepo.Close() //nolint:errcheck
		cacheRepo = redisRepo
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		cacheRepo = repository.NewMemoryCacheRepository()
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Query.ExamsStaleTime, logr, cfg.Cache.Enabled)

	examSvc := service.NewExamService(repo, cacheSvc, metrics, logr, service.ExamServiceConfig{
		ExamsTTL:   cfg.Query.ExamsStaleTime,
		FiltersTTL: cfg.Query.FiltersStaleTime,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.GET("/health", metricsHandler.Health)
	handler.NewExamHandler(examSvc).Register(api)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ExamAPI.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "prefix", cfg.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

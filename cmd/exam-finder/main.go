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
	"go.uber.org/zap"

	"github.com/noah-isme/finals-finder/internal/client"
	"github.com/noah-isme/finals-finder/internal/handler"
	"github.com/noah-isme/finals-finder/internal/middleware"
	"github.com/noah-isme/finals-finder/internal/query"
	"github.com/noah-isme/finals-finder/internal/repository"
	"github.com/noah-isme/finals-finder/internal/service"
	"github.com/noah-isme/finals-finder/internal/ui"
	"github.com/noah-isme/finals-finder/pkg/cache"
	"github.com/noah-isme/finals-finder/pkg/config"
	"github.com/noah-isme/finals-finder/pkg/logger"
	corsmiddleware "github.com/noah-isme/finals-finder/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/finals-finder/pkg/middleware/requestid"
)

const janitorInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "exam-finder")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	checks := map[string]handler.Pinger{}
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
		memory := repository.NewMemoryCacheRepository()
		go sweepMemoryCache(ctx, memory)
		cacheRepo = memory
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Query.ExamsStaleTime, logr, cfg.Cache.Enabled)

	queryClient := query.NewClient(cacheSvc, query.Options{Retries: cfg.Query.Retries, Logger: logr})
	examsClient := client.NewExamsClient(cfg.ExamAPI.BaseURL, client.DefaultHTTPClient(cfg.ExamAPI.Timeout), metrics, logr)

	formatter, err := ui.NewFormatter(cfg.UI.DisplayTimezone)
	if err != nil {
		logr.Fatal("invalid display timezone", zap.String("zone", cfg.UI.DisplayTimezone), zap.Error(err))
	}

	store := ui.NewStore(ctx, ui.StoreConfig{
		Query:   queryClient,
		Fetcher: examsClient,
		Accessor: query.ExamAccessorConfig{
			ExamsStaleTime:   cfg.Query.ExamsStaleTime,
			FiltersStaleTime: cfg.Query.FiltersStaleTime,
			PageSize:         cfg.Query.PageSize,
		},
		Formatter:       formatter,
		SearchDebounce:  cfg.UI.SearchDebounce,
		ScrollThreshold: int(cfg.UI.ScrollThreshold),
		TermLabel:       cfg.UI.TermLabel,
		IdleTTL:         cfg.UI.ViewIdleTTL,
		Metrics:         metrics,
		Logger:          logr,
	})
	go store.RunJanitor(ctx, janitorInterval)

	renderer, err := ui.NewRenderer(cfg.UI.SearchDebounce)
	if err != nil {
		logr.Fatal("parse templates", zap.Error(err))
	}

	exports := service.NewScheduleExportService(queryClient, examsClient, formatter, logr, service.ScheduleExportConfig{
		Title:     cfg.UI.TermLabel,
		StaleTime: cfg.Query.ExamsStaleTime,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/views/:id/events"))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	handler.NewFinderHandler(store, renderer, exports, logr).Register(r)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "exam_api", cfg.ExamAPI.BaseURL)
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

func sweepMemoryCache(ctx context.Context, memory *repository.MemoryCacheRepository) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			memory.Sweep()
		}
	}
}

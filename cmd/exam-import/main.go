package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/noah-isme/finals-finder/internal/models"
	"github.com/noah-isme/finals-finder/internal/repository"
	"github.com/noah-isme/finals-finder/internal/service"
	"github.com/noah-isme/finals-finder/pkg/cache"
	"github.com/noah-isme/finals-finder/pkg/config"
	"github.com/noah-isme/finals-finder/pkg/database"
	"github.com/noah-isme/finals-finder/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	file := pflag.StringP("file", "f", cfg.Import.File, "path to the scraped exams.json")
	term := pflag.StringP("term", "t", cfg.Import.TermCode, "term code to import under; empty uses each exam's term_code")
	invalidate := pflag.Bool("invalidate", cfg.Cache.Driver == config.CacheDriverRedis, "clear cached API payloads after the import")
	pflag.Parse()

	logr, err := logger.New(cfg, "exam-import")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exams, err := readExams(*file)
	if err != nil {
		logr.Fatal("read exams", zap.String("file", *file), zap.Error(err))
	}
	terms, err := groupByTerm(exams, *term)
	if err != nil {
		logr.Fatal("group exams", zap.Error(err))
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("postgres unavailable", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	repo := repository.NewExamRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		logr.Fatal("ensure exam schema", zap.Error(err))
	}

	codes := make([]string, 0, len(terms))
	for code := range terms {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if err := repo.ReplaceTerm(ctx, code, terms[code]); err != nil {
			logr.Fatal("import term", zap.String("term_code", code), zap.Error(err))
		}
		logr.Info("term imported", zap.String("term_code", code), zap.Int("exams", len(terms[code])))
	}

	if *invalidate {
		if err := invalidateCache(ctx, cfg, repo, logr); err != nil {
			logr.Warn("cache invalidation failed", zap.Error(err))
		}
	}
}

func readExams(path string) ([]models.Exam, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var exams []models.Exam
	if err := json.Unmarshal(raw, &exams); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return exams, nil
}

// groupByTerm splits exams by term. A non-empty override puts every exam under that term.
func groupByTerm(exams []models.Exam, override string) (map[string][]models.Exam, error) {
	terms := make(map[string][]models.Exam)
	override = strings.TrimSpace(override)
	for i, exam := range exams {
		code := override
		if code == "" {
			code = strings.TrimSpace(exam.TermCode)
		}
		if code == "" {
			return nil, fmt.Errorf("exam %d (crn %s) has no term_code; pass --term", i, exam.CRN)
		}
		terms[code] = append(terms[code], exam)
	}
	return terms, nil
}

func invalidateCache(ctx context.Context, cfg *config.Config, repo *repository.ExamRepository, logr *zap.Logger) error {
	if cfg.Cache.Driver != config.CacheDriverRedis {
		return nil
	}
	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	cacheRepo := repository.NewCacheRepository(rdb, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, nil, 0, logr, true)
	return service.NewExamService(repo, cacheSvc, nil, logr, service.ExamServiceConfig{}).Invalidate(ctx)
}

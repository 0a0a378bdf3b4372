package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/finals-finder/internal/models"
	appErrors "github.com/noah-isme/finals-finder/pkg/errors"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	examCachePrefix = "api:"
)

var searchQueryPattern = regexp.MustCompile(`^[\p{L}\p{N}_\s\-.'"]+$`)

type examRepository interface {
	List(ctx context.Context, filter models.ExamFilter, page, limit int) ([]models.Exam, int, error)
	Dates(ctx context.Context) ([]string, error)
	Locations(ctx context.Context) ([]string, error)
}

type dbObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// ExamServiceConfig sets how long payloads stay cached.
type ExamServiceConfig struct {
	ExamsTTL   time.Duration
	FiltersTTL time.Duration
}

// ExamService answers exam searches and filter option lookups.
type ExamService struct {
	repo      examRepository
	cache     *CacheService
	metrics   dbObserver
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExamServiceConfig
}

const searchQueryTag = "searchquery"

// NewValidator returns a validator with the exam search rules registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	mustRegisterValidation(v, searchQueryTag, func(fl validator.FieldLevel) bool {
		return searchQueryPattern.MatchString(fl.Field().String())
	})
	return v
}

// mustRegisterValidation panics if the rule cannot be registered. Without it the struct tags
// naming the rule would fail every request.
func mustRegisterValidation(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("service: register validation %q: %v", tag, err))
	}
}

// NewExamService constructs an exam service. cache and metrics may be nil.
func NewExamService(repo examRepository, cache *CacheService, metrics dbObserver, logger *zap.Logger, cfg ExamServiceConfig) *ExamService {
	if cfg.ExamsTTL <= 0 {
		cfg.ExamsTTL = 5 * time.Minute
	}
	if cfg.FiltersTTL <= 0 {
		cfg.FiltersTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{repo: repo, cache: cache, metrics: metrics, validator: NewValidator(), logger: logger, cfg: cfg}
}

// Normalize trims the filter, applies paging defaults, caps the page size and validates the
// result.
func (s *ExamService) Normalize(params models.ExamSearchParams) (models.ExamSearchParams, error) {
	params.Query = strings.TrimSpace(params.Query)
	params.Date = strings.TrimSpace(params.Date)
	params.Location = strings.TrimSpace(params.Location)
	if params.Page == 0 {
		params.Page = DefaultPage
	}
	if params.Limit == 0 {
		params.Limit = DefaultPageSize
	}
	if params.Page < 0 {
		return params, validationError("Page must be a positive integer.", nil)
	}
	if params.Limit < 0 {
		return params, validationError("Limit must be a positive integer.", nil)
	}
	if params.Limit > MaxPageSize {
		params.Limit = MaxPageSize
	}
	if err := s.validator.Struct(params); err != nil {
		return params, validationError(describeValidation(err), err)
	}
	return params, nil
}

func validationError(message string, cause error) error {
	if cause == nil {
		return appErrors.Clone(appErrors.ErrValidation, message)
	}
	return appErrors.Wrap(cause, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.ErrValidation.Message
	}
	fe := fieldErrs[0]
	switch fe.Field() {
	case "Query":
		if fe.Tag() == "max" {
			return "Search query cannot exceed 100 characters."
		}
		return "Search query contains invalid characters."
	case "Date":
		return "Invalid date format. Use YYYY-MM-DD."
	case "Location":
		return "Location cannot exceed 100 characters."
	default:
		return "Page and limit must be positive integers."
	}
}

func examsCacheKey(params models.ExamSearchParams) string {
	values := url.Values{}
	values.Set("q", strings.ToLower(params.Query))
	values.Set("date", params.Date)
	values.Set("location", strings.ToLower(params.Location))
	values.Set("page", strconv.Itoa(params.Page))
	values.Set("limit", strconv.Itoa(params.Limit))
	return examCachePrefix + "exams:" + values.Encode()
}

// Search returns one page of matching exams and whether it came from cache.
func (s *ExamService) Search(ctx context.Context, params models.ExamSearchParams) (*models.ExamsResponse, bool, error) {
	params, err := s.Normalize(params)
	if err != nil {
		return nil, false, err
	}

	key := examsCacheKey(params)
	var cached models.ExamsResponse
	if s.cacheGet(ctx, key, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	exams, total, err := s.repo.List(ctx, params.ExamFilter, params.Page, params.Limit)
	s.observe("exams_list", start)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search exams")
	}
	if exams == nil {
		exams = []models.Exam{}
	}

	resp := &models.ExamsResponse{Data: exams, Pagination: models.NewPagination(params.Page, params.Limit, total)}
	s.cacheSet(ctx, key, resp, s.cfg.ExamsTTL)
	return resp, false, nil
}

// Dates returns the distinct exam dates, ascending, and whether they came from cache.
func (s *ExamService) Dates(ctx context.Context) (*models.DatesResponse, bool, error) {
	const key = examCachePrefix + "filters:dates"
	var cached models.DatesResponse
	if s.cacheGet(ctx, key, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	dates, err := s.repo.Dates(ctx)
	s.observe("exams_dates", start)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam dates")
	}
	if dates == nil {
		dates = []string{}
	}

	resp := &models.DatesResponse{Data: dates}
	s.cacheSet(ctx, key, resp, s.cfg.FiltersTTL)
	return resp, false, nil
}

// Locations returns rooms grouped by building and whether they came from cache.
func (s *ExamService) Locations(ctx context.Context) (*models.LocationsResponse, bool, error) {
	const key = examCachePrefix + "filters:locations"
	var cached models.LocationsResponse
	if s.cacheGet(ctx, key, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	locations, err := s.repo.Locations(ctx)
	s.observe("exams_locations", start)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam locations")
	}

	resp := &models.LocationsResponse{Data: GroupByBuilding(locations)}
	s.cacheSet(ctx, key, resp, s.cfg.FiltersTTL)
	return resp, false, nil
}

// Invalidate drops every cached payload. Called after the schedule is reloaded.
func (s *ExamService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, examCachePrefix+"*")
}

// GroupByBuilding groups locations by their first word. Buildings and rooms are sorted and rooms
// are unique.
func GroupByBuilding(locations []string) []models.BuildingLocation {
	rooms := make(map[string]map[string]struct{})
	for _, location := range locations {
		location = strings.TrimSpace(location)
		if location == "" {
			continue
		}
		building := strings.Fields(location)[0]
		if rooms[building] == nil {
			rooms[building] = make(map[string]struct{})
		}
		rooms[building][location] = struct{}{}
	}

	buildings := make([]string, 0, len(rooms))
	for building := range rooms {
		buildings = append(buildings, building)
	}
	sort.Strings(buildings)

	grouped := make([]models.BuildingLocation, 0, len(buildings))
	for _, building := range buildings {
		list := make([]string, 0, len(rooms[building]))
		for room := range rooms[building] {
			list = append(list, room)
		}
		sort.Strings(list)
		grouped = append(grouped, models.BuildingLocation{Building: building, Rooms: list})
	}
	return grouped
}

func (s *ExamService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	return err == nil && hit
}

func (s *ExamService) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("exam cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *ExamService) observe(label string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

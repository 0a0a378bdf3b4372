package query

import (
	"context"
	"strconv"
	"time"

	"github.com/noah-isme/finals-finder/internal/models"
)

// ExamsFetcher is the data access the exam accessors are built on. client.ExamsClient satisfies it.
type ExamsFetcher interface {
	FetchExams(ctx context.Context, params models.ExamSearchParams) (*models.ExamsResponse, error)
	FetchDates(ctx context.Context) (*models.DatesResponse, error)
	FetchLocations(ctx context.Context) (*models.LocationsResponse, error)
}

// ExamsQuery is the paginated exam accessor keyed by filter combination.
type ExamsQuery = InfiniteQuery[models.ExamFilter, *models.ExamsResponse]

// ExamAccessorConfig carries the staleness windows and page size for the exam accessors.
type ExamAccessorConfig struct {
	ExamsStaleTime   time.Duration
	FiltersStaleTime time.Duration
	PageSize         int
	Spawn            func(func())
}

func (c ExamAccessorConfig) withDefaults() ExamAccessorConfig {
	if c.ExamsStaleTime <= 0 {
		c.ExamsStaleTime = 5 * time.Minute
	}
	if c.FiltersStaleTime <= 0 {
		c.FiltersStaleTime = 30 * time.Minute
	}
	if c.PageSize <= 0 {
		c.PageSize = 20
	}
	return c
}

// ExamsPageKey names the cache entry of one exams page.
func ExamsPageKey(filter models.ExamFilter, page, limit int) Key {
	return Key{"exams", filter.Query, filter.Date, filter.Location, strconv.Itoa(page), strconv.Itoa(limit)}
}

var (
	DatesKey     = Key{"filters", "dates"}
	LocationsKey = Key{"filters", "locations"}
)

// NextExamsPage continues after last while the server reports more rows.
func NextExamsPage(last *models.ExamsResponse) (int, bool) {
	if last == nil || !last.Pagination.HasMore {
		return 0, false
	}
	return last.Pagination.Page + 1, true
}

// NewExamsQuery builds the exam accessor. Pages are requested from 1 with the configured limit.
func NewExamsQuery(ctx context.Context, c *Client, f ExamsFetcher, cfg ExamAccessorConfig, onChange func()) *ExamsQuery {
	cfg = cfg.withDefaults()
	limit := cfg.PageSize
	return NewInfiniteQuery(ctx, c, InfiniteOptions[models.ExamFilter, *models.ExamsResponse]{
		StaleTime:        cfg.ExamsStaleTime,
		InitialPageParam: 1,
		CacheKey: func(filter models.ExamFilter, page int) Key {
			return ExamsPageKey(filter, page, limit)
		},
		Fetch: func(ctx context.Context, filter models.ExamFilter, page int) (*models.ExamsResponse, error) {
			return f.FetchExams(ctx, models.ExamSearchParams{ExamFilter: filter, Page: page, Limit: limit})
		},
		NextPageParam: NextExamsPage,
		Spawn:         cfg.Spawn,
	}, onChange)
}

// NewDatesQuery builds the exam dates accessor.
func NewDatesQuery(c *Client, f ExamsFetcher, cfg ExamAccessorConfig, onChange func()) *Query[*models.DatesResponse] {
	cfg = cfg.withDefaults()
	return NewQuery(c, QueryOptions[*models.DatesResponse]{
		Key:       DatesKey,
		StaleTime: cfg.FiltersStaleTime,
		Fetch:     f.FetchDates,
		Spawn:     cfg.Spawn,
	}, onChange)
}

// NewLocationsQuery builds the building/room accessor.
func NewLocationsQuery(c *Client, f ExamsFetcher, cfg ExamAccessorConfig, onChange func()) *Query[*models.LocationsResponse] {
	cfg = cfg.withDefaults()
	return NewQuery(c, QueryOptions[*models.LocationsResponse]{
		Key:       LocationsKey,
		StaleTime: cfg.FiltersStaleTime,
		Fetch:     f.FetchLocations,
		Spawn:     cfg.Spawn,
	}, onChange)
}

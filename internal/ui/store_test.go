package ui

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/finals-finder/internal/models"
	"github.com/noah-isme/finals-finder/internal/query"
)

type memoryFetcher struct {
	exams []models.Exam
}

func (f *memoryFetcher) FetchExams(_ context.Context, params models.ExamSearchParams) (*models.ExamsResponse, error) {
	var matched []models.Exam
	for _, exam := range f.exams {
		if params.Date != "" && !strings.HasPrefix(exam.StartTime, params.Date) {
			continue
		}
		if params.Location != "" && !strings.Contains(exam.Location, params.Location) {
			continue
		}
		matched = append(matched, exam)
	}
	start := (params.Page - 1) * params.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + params.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return &models.ExamsResponse{
		Data:       append([]models.Exam{}, matched[start:end]...),
		Pagination: models.NewPagination(params.Page, params.Limit, len(matched)),
	}, nil
}

func (f *memoryFetcher) FetchDates(context.Context) (*models.DatesResponse, error) {
	return &models.DatesResponse{Data: []string{"2025-12-08", "2025-12-09"}}, nil
}

func (f *memoryFetcher) FetchLocations(context.Context) (*models.LocationsResponse, error) {
	return &models.LocationsResponse{Data: []models.BuildingLocation{{Building: "SCI", Rooms: []string{"SCI 200"}}}}, nil
}

type gauge struct{ last int }

func (g *gauge) SetLiveViews(n int) { g.last = n }

func newTestStore(t *testing.T, clock *manualClock, g *gauge) *Store {
	t.Helper()
	var exams []models.Exam
	for i := 0; i < 25; i++ {
		exams = append(exams, models.Exam{
			Subject: "CS", CourseNumber: "101", Section: "01", CRN: fmt.Sprintf("1%04d", i),
			StartTime: "2025-12-08T08:00:00", EndTime: "2025-12-08T10:00:00", Location: "SCI 200",
		})
	}
	return NewStore(context.Background(), StoreConfig{
		Query:     query.NewClient(nil, query.Options{}),
		Fetcher:   &memoryFetcher{exams: exams},
		Accessor:  query.ExamAccessorConfig{Spawn: func(f func()) { f() }},
		Formatter: utcFormatter(t),
		Clock:     clock,
		TermLabel: "FALL 2025 FINAL EXAMS",
		IdleTTL:   time.Minute,
		Metrics:   g,
	})
}

func TestStoreCreateLoadsFirstPage(t *testing.T) {
	g := &gauge{}
	store := newTestStore(t, newManualClock(), g)

	v := store.Create()
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, 1, g.last)

	m := v.Page.Model()
	assert.Equal(t, StatusResults, m.Status)
	assert.Len(t, m.Rows, 20)
	assert.Equal(t, 25, m.Total)
	assert.Len(t, m.DateTabs, 3)

	got, ok := store.Get(v.ID)
	require.True(t, ok)
	assert.Same(t, v, got)
	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestStoreSweepsIdleViews(t *testing.T) {
	clock := newManualClock()
	g := &gauge{}
	store := newTestStore(t, clock, g)

	idle := store.Create()
	streaming := store.Create()
	_, unsubscribe := streaming.Subscribe()
	defer unsubscribe()

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, g.last)
	assert.Error(t, idle.Context().Err())

	_, ok := store.Get(streaming.ID)
	assert.True(t, ok)
}

func TestViewNotifiesSubscribers(t *testing.T) {
	store := newTestStore(t, newManualClock(), &gauge{})
	v := store.Create()

	ch, unsubscribe := v.Subscribe()
	assert.Equal(t, 1, v.Subscribers())

	date := "2025-12-08"
	v.Page.SelectDate(&date)
	select {
	case <-ch:
	default:
		t.Fatal("expected a change tick")
	}

	unsubscribe()
	unsubscribe()
	assert.Zero(t, v.Subscribers())
}

func TestRendererPageAndRegions(t *testing.T) {
	store := newTestStore(t, newManualClock(), &gauge{})
	v := store.Create()

	r, err := NewRenderer(0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Page(&buf, v))
	html := buf.String()
	assert.Contains(t, html, "FALL 2025 FINAL EXAMS")
	assert.Contains(t, html, "EXAM: CS 101 01 10000")
	assert.Contains(t, html, "Showing 20 of 25 exams")
	assert.Contains(t, html, v.ID)

	regions, err := r.Regions(v.Page.Model())
	require.NoError(t, err)
	require.Len(t, regions, len(Regions))
	byName := map[string]string{}
	for _, region := range regions {
		byName[region.Name] = region.HTML
	}
	assert.Contains(t, byName["filters"], "Dec 8")
	assert.Contains(t, byName["filters"], `data-value="SCI"`)
	assert.Contains(t, byName["results"], "8am")
	assert.Empty(t, strings.TrimSpace(byName["clear"]))
}

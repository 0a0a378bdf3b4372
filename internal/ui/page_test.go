package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/finals-finder/internal/models"
	"github.com/noah-isme/finals-finder/internal/query"
)

type stubExams struct {
	keys      []models.ExamFilter
	state     query.InfiniteState[*models.ExamsResponse]
	nextCalls int
}

func (s *stubExams) SetKey(filter models.ExamFilter) bool {
	if n := len(s.keys); n > 0 && s.keys[n-1] == filter {
		return false
	}
	s.keys = append(s.keys, filter)
	s.state = query.InfiniteState[*models.ExamsResponse]{IsLoading: true}
	return true
}

func (s *stubExams) FetchNextPage() bool {
	if s.state.IsFetchingNextPage {
		return false
	}
	s.nextCalls++
	s.state.IsFetchingNextPage = true
	return true
}

func (s *stubExams) State() query.InfiniteState[*models.ExamsResponse] { return s.state }

func (s *stubExams) receive(pages ...*models.ExamsResponse) {
	s.state = query.InfiniteState[*models.ExamsResponse]{Pages: pages}
	if last := pages[len(pages)-1]; last != nil {
		s.state.HasNextPage = last.Pagination.HasMore
	}
}

// gatedExams holds SetKey for gate until release is closed. It is safe for concurrent use.
type gatedExams struct {
	gate    models.ExamFilter
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	keys  []models.ExamFilter
	calls int
}

func newGatedExams(gate models.ExamFilter) *gatedExams {
	return &gatedExams{gate: gate, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedExams) SetKey(filter models.ExamFilter) bool {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if filter == g.gate {
		close(g.entered)
		<-g.release
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys = append(g.keys, filter)
	return true
}

func (g *gatedExams) FetchNextPage() bool { return false }

func (g *gatedExams) State() query.InfiniteState[*models.ExamsResponse] {
	return query.InfiniteState[*models.ExamsResponse]{IsLoading: true}
}

func (g *gatedExams) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *gatedExams) lastKey() models.ExamFilter {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.keys[len(g.keys)-1]
}

type stubDates struct{ state query.State[*models.DatesResponse] }

func (s *stubDates) Start(context.Context)                        {}
func (s *stubDates) State() query.State[*models.DatesResponse] { return s.state }

type stubLocations struct{ state query.State[*models.LocationsResponse] }

func (s *stubLocations) Start(context.Context)                            {}
func (s *stubLocations) State() query.State[*models.LocationsResponse] { return s.state }

func examPage(page, count, total int, limit int) *models.ExamsResponse {
	rows := make([]models.Exam, 0, count)
	for i := 0; i < count; i++ {
		rows = append(rows, models.Exam{
			Subject: "CS", CourseNumber: "101", Section: "01", CRN: fmt.Sprintf("%d%02d", page, i),
			StartTime: "2025-12-08T08:00:00", EndTime: "2025-12-08T10:00:00", Location: "SCI 200",
		})
	}
	return &models.ExamsResponse{Data: rows, Pagination: models.NewPagination(page, limit, total)}
}

type pageFixture struct {
	page      *Page
	exams     *stubExams
	dates     *stubDates
	locations *stubLocations
	clock     *manualClock
	changes   int
}

func newPageFixture(t *testing.T) *pageFixture {
	t.Helper()
	fx := &pageFixture{
		exams:     &stubExams{},
		dates:     &stubDates{},
		locations: &stubLocations{},
		clock:     newManualClock(),
	}
	fx.page = NewPage(PageConfig{
		Exams:     fx.exams,
		Dates:     fx.dates,
		Locations: fx.locations,
		Clock:     fx.clock,
		Formatter: utcFormatter(t),
		TermLabel: "FALL 2025 FINAL EXAMS",
		OnChange:  func() { fx.changes++ },
	})
	fx.page.Start(context.Background())
	return fx
}

func TestPageStartsUnfiltered(t *testing.T) {
	fx := newPageFixture(t)
	require.Len(t, fx.exams.keys, 1)
	assert.True(t, fx.exams.keys[0].IsZero())
	assert.Equal(t, StatusLoading, fx.page.Model().Status)
}

func TestPageRendersEmptyState(t *testing.T) {
	fx := newPageFixture(t)
	fx.exams.receive(&models.ExamsResponse{Data: []models.Exam{}, Pagination: models.NewPagination(1, 20, 0)})

	m := fx.page.Model()
	assert.Equal(t, StatusEmpty, m.Status)
	assert.Equal(t, EmptyMessage, m.Message)
	assert.Empty(t, m.Rows)
	assert.False(t, m.ShowSummary)
}

func TestPageErrorWinsOverData(t *testing.T) {
	fx := newPageFixture(t)
	fx.exams.receive(examPage(1, 20, 25, 20))
	fx.exams.state.IsError = true
	fx.exams.state.Err = errors.New("500 Internal Server Error")

	m := fx.page.Model()
	assert.Equal(t, StatusError, m.Status)
	assert.Equal(t, ErrorMessage, m.Message)
	assert.Empty(t, m.Rows)
	assert.False(t, m.ShowSummary)
}

func TestPageSummaryCountsAllPages(t *testing.T) {
	fx := newPageFixture(t)
	fx.exams.receive(examPage(1, 20, 25, 20), examPage(2, 5, 25, 20))

	m := fx.page.Model()
	assert.Equal(t, StatusResults, m.Status)
	assert.Len(t, m.Rows, 25)
	assert.True(t, m.ShowSummary)
	assert.Equal(t, 25, m.Shown)
	assert.Equal(t, 25, m.Total)
	assert.False(t, m.HasNextPage)
}

func TestPageScrollRequestsSingleNextPage(t *testing.T) {
	fx := newPageFixture(t)
	fx.exams.receive(examPage(1, 20, 60, 20))

	near := ScrollPosition{Top: 1450, Height: 2000, ClientHeight: 500}
	assert.True(t, fx.page.Scroll(near))
	for i := 0; i < 10; i++ {
		fx.page.Scroll(near)
	}
	assert.Equal(t, 1, fx.exams.nextCalls)

	m := fx.page.Model()
	assert.True(t, m.FetchingNextPage)
	assert.Len(t, m.Rows, 20, "rows stay visible while the next page loads")
}

func TestPageScrollContinuesPastEmptyPage(t *testing.T) {
	fx := newPageFixture(t)
	fx.exams.receive(examPage(1, 20, 60, 20))

	near := ScrollPosition{Top: 1450, Height: 2000, ClientHeight: 500}
	require.True(t, fx.page.Scroll(near))
	assert.False(t, fx.page.Scroll(near))

	fx.exams.receive(examPage(1, 20, 60, 20), examPage(2, 0, 60, 20))
	require.True(t, fx.exams.State().HasNextPage)
	assert.True(t, fx.page.Scroll(near))
	assert.Equal(t, 2, fx.exams.nextCalls)
}

func TestPageFilterChangeDiscardsRows(t *testing.T) {
	fx := newPageFixture(t)
	fx.exams.receive(examPage(1, 20, 60, 20), examPage(2, 20, 60, 20))

	date := "2025-12-09"
	fx.page.SelectDate(&date)
	require.Len(t, fx.exams.keys, 2)
	assert.Equal(t, "2025-12-09", fx.exams.keys[1].Date)
	assert.Equal(t, StatusLoading, fx.page.Model().Status)

	fx.exams.receive(examPage(1, 3, 3, 20))
	assert.Len(t, fx.page.Model().Rows, 3)

	building := Building("SCI")
	fx.page.SelectBuilding(&building)
	assert.Equal(t, models.ExamFilter{Date: "2025-12-09", Location: "SCI"}, fx.exams.keys[2])

	fx.page.SelectDate(nil)
	assert.Equal(t, models.ExamFilter{Location: "SCI"}, fx.exams.keys[3])
}

func TestPageConcurrentUpdatesApplyInOrder(t *testing.T) {
	date := "2025-12-09"
	exams := newGatedExams(models.ExamFilter{Date: date})
	page := NewPage(PageConfig{
		Exams:     exams,
		Dates:     &stubDates{},
		Locations: &stubLocations{},
		Clock:     newManualClock(),
		Formatter: utcFormatter(t),
	})
	page.Start(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		page.SelectDate(&date)
	}()
	<-exams.entered

	// debounced search commits while the date tab is still pushing its key
	go func() {
		defer wg.Done()
		page.setQuery("math")
	}()
	assert.Never(t, func() bool { return exams.callCount() > 2 }, 50*time.Millisecond, 5*time.Millisecond)

	close(exams.release)
	wg.Wait()

	want := models.ExamFilter{Query: "math", Date: date}
	assert.Equal(t, want, page.Filter())
	assert.Equal(t, want, exams.lastKey())
}

func TestPageSearchIsDebounced(t *testing.T) {
	fx := newPageFixture(t)

	fx.page.Type("c")
	fx.page.Type("cs")
	fx.page.Type("cs 1")
	assert.Len(t, fx.exams.keys, 1)
	assert.True(t, fx.page.Model().ShowClear)

	fx.clock.Advance(300 * time.Millisecond)
	require.Len(t, fx.exams.keys, 2)
	assert.Equal(t, "cs 1", fx.exams.keys[1].Query)

	fx.page.ClearSearch()
	require.Len(t, fx.exams.keys, 3)
	assert.Equal(t, "", fx.exams.keys[2].Query)
	assert.False(t, fx.page.Model().ShowClear)
}

func TestPageFilterOptions(t *testing.T) {
	fx := newPageFixture(t)
	fx.dates.state = query.State[*models.DatesResponse]{Data: &models.DatesResponse{Data: []string{"2025-12-08", "2025-12-09"}}}
	fx.locations.state = query.State[*models.LocationsResponse]{Data: &models.LocationsResponse{Data: []models.BuildingLocation{
		{Building: "ART", Rooms: []string{"ART 1"}},
		{Building: "SCI", Rooms: []string{"SCI 200", "SCI 201"}},
	}}}

	m := fx.page.Model()
	require.Len(t, m.DateTabs, 3)
	assert.Equal(t, "Dec 8", m.DateTabs[1].Label)
	require.Len(t, m.BuildingTabs, 3)
	assert.Equal(t, "SCI", m.BuildingTabs[2].Label)
	assert.True(t, m.BuildingTabs[0].Selected)
}

func TestPageAuxiliaryFailureLeavesAll(t *testing.T) {
	fx := newPageFixture(t)
	fx.dates.state = query.State[*models.DatesResponse]{IsError: true, Err: errors.New("503")}
	fx.locations.state = query.State[*models.LocationsResponse]{IsError: true, Err: errors.New("503")}

	m := fx.page.Model()
	assert.False(t, m.DatesLoading)
	assert.False(t, m.LocationsLoading)
	require.Len(t, m.DateTabs, 1)
	assert.Equal(t, AllLabel, m.DateTabs[0].Label)
	require.Len(t, m.BuildingTabs, 1)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "empty", StatusEmpty.String())
	assert.Equal(t, "results", StatusResults.String())
}

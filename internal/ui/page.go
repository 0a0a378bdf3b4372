package ui

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/finals-finder/internal/models"
	"github.com/noah-isme/finals-finder/internal/query"
)

const (
	ErrorMessage = "Something went wrong on our end. Please try again later."
	EmptyMessage = "No results found"
)

// Building is a building name as grouped by the locations endpoint.
type Building string

// ExamsAccessor is the paginated exam source of a page. *query.ExamsQuery satisfies it.
type ExamsAccessor interface {
	SetKey(filter models.ExamFilter) bool
	FetchNextPage() bool
	State() query.InfiniteState[*models.ExamsResponse]
}

// DatesAccessor supplies the date filter options.
type DatesAccessor interface {
	Start(ctx context.Context)
	State() query.State[*models.DatesResponse]
}

// LocationsAccessor supplies the building filter options.
type LocationsAccessor interface {
	Start(ctx context.Context)
	State() query.State[*models.LocationsResponse]
}

// Status selects what the results area shows.
type Status int

const (
	StatusResults Status = iota
	StatusEmpty
	StatusLoading
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusLoading:
		return "loading"
	case StatusEmpty:
		return "empty"
	default:
		return "results"
	}
}

// PageConfig wires a Page.
type PageConfig struct {
	Exams     ExamsAccessor
	Dates     DatesAccessor
	Locations LocationsAccessor

	Clock           Clock
	Formatter       *Formatter
	SearchDebounce  time.Duration
	ScrollThreshold int
	TermLabel       string
	Logger          *zap.Logger
	// OnChange is called after every state change of the page.
	OnChange func()
}

// Page owns the filter state of one view and derives everything the browser renders from it.
type Page struct {
	exams     ExamsAccessor
	dates     DatesAccessor
	locations LocationsAccessor
	search    *SearchInput
	table     *ResultTable
	termLabel string
	logger    *zap.Logger
	onChange  func()

	updateMu sync.Mutex

	mu       sync.Mutex
	query    string
	date     *string
	building *Building
}

// NewPage builds a page with every filter at its default.
func NewPage(cfg PageConfig) *Page {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.OnChange == nil {
		cfg.OnChange = func() {}
	}
	if cfg.Formatter == nil {
		cfg.Formatter = &Formatter{loc: time.UTC}
	}
	p := &Page{
		exams:     cfg.Exams,
		dates:     cfg.Dates,
		locations: cfg.Locations,
		table:     NewResultTable(cfg.Formatter, cfg.ScrollThreshold),
		termLabel: cfg.TermLabel,
		logger:    cfg.Logger,
		onChange:  cfg.OnChange,
	}
	p.search = NewSearchInput(cfg.Clock, cfg.SearchDebounce, p.setQuery)
	return p
}

// Start loads the filter options and the first page of the unfiltered listing.
func (p *Page) Start(ctx context.Context) {
	p.dates.Start(ctx)
	p.locations.Start(ctx)
	p.updateMu.Lock()
	defer p.updateMu.Unlock()
	p.exams.SetKey(p.Filter())
}

// Filter returns the exam filter of the current selection.
func (p *Page) Filter() models.ExamFilter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filterLocked()
}

func (p *Page) filterLocked() models.ExamFilter {
	f := models.ExamFilter{Query: p.query}
	if p.date != nil {
		f.Date = *p.date
	}
	if p.building != nil {
		f.Location = string(*p.building)
	}
	return f
}

// Type forwards a keystroke to the search input.
func (p *Page) Type(text string) {
	p.search.Type(text)
	p.onChange()
}

// ClearSearch empties the search box and commits immediately.
func (p *Page) ClearSearch() {
	p.search.Clear()
}

func (p *Page) setQuery(text string) {
	p.update(func() { p.query = text })
}

// SelectDate sets the date filter. nil selects All.
func (p *Page) SelectDate(date *string) {
	p.update(func() { p.date = date })
}

// SelectBuilding sets the building filter. nil selects All.
func (p *Page) SelectBuilding(building *Building) {
	p.update(func() { p.building = building })
}

// update holds updateMu through SetKey so concurrent commits reach the accessor in the order
// they changed the selection. p.mu only guards the fields since Model reads them too.
func (p *Page) update(mutate func()) {
	p.updateMu.Lock()
	defer p.updateMu.Unlock()

	p.mu.Lock()
	mutate()
	filter := p.filterLocked()
	p.mu.Unlock()

	if p.exams.SetKey(filter) {
		p.table.Reset()
		p.logger.Debug("exam filter changed",
			zap.String("q", filter.Query),
			zap.String("date", filter.Date),
			zap.String("location", filter.Location),
		)
		return
	}
	p.onChange()
}

// Scroll reports the result viewport position and may request the next page.
func (p *Page) Scroll(pos ScrollPosition) bool {
	state := p.exams.State()
	return p.table.OnScroll(pos, state.HasNextPage, state.IsFetchingNextPage, p.exams.FetchNextPage)
}

// DateTabs returns the date filter. A failed dates load leaves only All.
func (p *Page) DateTabs() FilterTabs[string] {
	var options []string
	if state := p.dates.State(); state.Data != nil && !state.IsError {
		options = state.Data.Data
	}
	p.mu.Lock()
	selected := p.date
	p.mu.Unlock()
	return FilterTabs[string]{Label: "Filter by Date", Options: options, Selected: selected, Format: DateOption}
}

// BuildingTabs returns the building filter. A failed locations load leaves only All.
func (p *Page) BuildingTabs() FilterTabs[Building] {
	var options []Building
	if state := p.locations.State(); !state.IsError {
		for _, name := range state.Data.Buildings() {
			options = append(options, Building(name))
		}
	}
	p.mu.Lock()
	selected := p.building
	p.mu.Unlock()
	return FilterTabs[Building]{Label: "Filter by Building", Options: options, Selected: selected}
}

// Model is the render state of a page.
type Model struct {
	TermLabel string

	SearchText string
	ShowClear  bool

	DatesLoading     bool
	DateTabs         []Tab[string]
	DateLabel        string
	LocationsLoading bool
	BuildingTabs     []Tab[Building]
	BuildingLabel    string

	Status           Status
	Rows             []Row
	FetchingNextPage bool
	HasNextPage      bool
	Message          string

	ShowSummary bool
	Shown       int
	Total       int
}

// Model derives the render state. Status is chosen in priority order error, loading, empty,
// results; the summary only accompanies results.
func (p *Page) Model() Model {
	exams := p.exams.State()
	dateTabs := p.DateTabs()
	buildingTabs := p.BuildingTabs()

	m := Model{
		TermLabel:        p.termLabel,
		SearchText:       p.search.Text(),
		ShowClear:        p.search.ShowClear(),
		DatesLoading:     p.dates.State().IsLoading,
		DateTabs:         dateTabs.Tabs(),
		DateLabel:        dateTabs.Label,
		LocationsLoading: p.locations.State().IsLoading,
		BuildingTabs:     buildingTabs.Tabs(),
		BuildingLabel:    buildingTabs.Label,
	}

	all := flatten(exams.Pages)

	switch {
	case exams.IsError:
		m.Status = StatusError
		m.Message = ErrorMessage
	case exams.IsLoading:
		m.Status = StatusLoading
	case len(all) == 0:
		m.Status = StatusEmpty
		m.Message = EmptyMessage
	default:
		m.Status = StatusResults
		m.Rows = p.table.Rows(all)
		m.FetchingNextPage = exams.IsFetchingNextPage
		m.HasNextPage = exams.HasNextPage
		m.ShowSummary = true
		m.Shown = len(all)
		if len(exams.Pages) > 0 && exams.Pages[0] != nil {
			m.Total = exams.Pages[0].Pagination.Total
		}
	}
	return m
}

func flatten(pages []*models.ExamsResponse) []models.Exam {
	var all []models.Exam
	for _, page := range pages {
		if page != nil {
			all = append(all, page.Data...)
		}
	}
	return all
}

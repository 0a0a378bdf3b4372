package ui

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/finals-finder/internal/query"
)

// DefaultViewIdleTTL is how long a view without streams survives.
const DefaultViewIdleTTL = 30 * time.Minute

type liveViewGauge interface {
	SetLiveViews(n int)
}

// StoreConfig wires a Store.
type StoreConfig struct {
	Query    *query.Client
	Fetcher  query.ExamsFetcher
	Accessor query.ExamAccessorConfig

	Formatter       *Formatter
	Clock           Clock
	SearchDebounce  time.Duration
	ScrollThreshold int
	TermLabel       string
	IdleTTL         time.Duration

	Metrics liveViewGauge
	Logger  *zap.Logger
}

// Store owns the live views of the process.
type Store struct {
	cfg    StoreConfig
	ctx    context.Context
	logger *zap.Logger

	mu    sync.RWMutex
	views map[string]*View
}

// NewStore builds an empty store. Views live under ctx; cancelling it stops every pending load.
func NewStore(ctx context.Context, cfg StoreConfig) *Store {
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultViewIdleTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Formatter == nil {
		cfg.Formatter = &Formatter{loc: time.UTC}
	}
	return &Store{cfg: cfg, ctx: ctx, logger: cfg.Logger, views: make(map[string]*View)}
}

// Create builds a view with default filters and starts its loads.
func (s *Store) Create() *View {
	v := newView(s.ctx, uuid.NewString(), s.cfg.Clock)

	v.Page = NewPage(PageConfig{
		Exams:           query.NewExamsQuery(v.ctx, s.cfg.Query, s.cfg.Fetcher, s.cfg.Accessor, v.changed),
		Dates:           query.NewDatesQuery(s.cfg.Query, s.cfg.Fetcher, s.cfg.Accessor, v.changed),
		Locations:       query.NewLocationsQuery(s.cfg.Query, s.cfg.Fetcher, s.cfg.Accessor, v.changed),
		Clock:           s.cfg.Clock,
		Formatter:       s.cfg.Formatter,
		SearchDebounce:  s.cfg.SearchDebounce,
		ScrollThreshold: s.cfg.ScrollThreshold,
		TermLabel:       s.cfg.TermLabel,
		Logger:          s.logger.With(zap.String("view_id", v.ID)),
		OnChange:        v.changed,
	})

	s.mu.Lock()
	s.views[v.ID] = v
	n := len(s.views)
	s.mu.Unlock()
	s.setGauge(n)

	v.Page.Start(v.ctx)
	return v
}

// Get returns the view with id and marks it as in use.
func (s *Store) Get(id string) (*View, bool) {
	s.mu.RLock()
	v, ok := s.views[id]
	s.mu.RUnlock()
	if ok {
		v.Touch()
	}
	return v, ok
}

// Len returns the number of live views.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.views)
}

// Sweep evicts views idle longer than the configured TTL and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.cfg.Clock.Now()

	s.mu.Lock()
	var evicted []*View
	for id, v := range s.views {
		if v.idleSince(now) > s.cfg.IdleTTL {
			delete(s.views, id)
			evicted = append(evicted, v)
		}
	}
	n := len(s.views)
	s.mu.Unlock()

	for _, v := range evicted {
		v.close()
	}
	if len(evicted) > 0 {
		s.setGauge(n)
		s.logger.Debug("evicted idle views", zap.Int("count", len(evicted)), zap.Int("live", n))
	}
	return len(evicted)
}

// RunJanitor sweeps every interval until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) setGauge(n int) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SetLiveViews(n)
	}
}

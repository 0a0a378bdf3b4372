package query

import (
	"context"
	"sync"
	"time"
)

// InfiniteState is a snapshot of a paginated query for its current key.
type InfiniteState[P any] struct {
	Pages []P
	// IsLoading is true while the key has neither a page nor an error.
	IsLoading          bool
	IsError            bool
	Err                error
	IsFetchingNextPage bool
	HasNextPage        bool
}

// InfiniteOptions configures an InfiniteQuery.
type InfiniteOptions[K comparable, P any] struct {
	StaleTime        time.Duration
	InitialPageParam int
	// CacheKey names the cache entry of one page.
	CacheKey func(key K, page int) Key
	Fetch    func(ctx context.Context, key K, page int) (P, error)
	// NextPageParam returns the page after last, or false when last is the final page.
	NextPageParam func(last P) (int, bool)
	// Spawn runs loads; defaults to a new goroutine.
	Spawn func(func())
}

// InfiniteQuery accumulates pages for one key at a time. Switching keys drops every page and
// ignores responses that were requested under an older key.
type InfiniteQuery[K comparable, P any] struct {
	ctx      context.Context
	client   *Client
	opts     InfiniteOptions[K, P]
	onChange func()

	mu           sync.Mutex
	key          K
	hasKey       bool
	generation   uint64
	pages        []P
	err          error
	inFlight     bool
	fetchingNext bool
}

// NewInfiniteQuery builds a query with no key. Loads run under ctx; onChange is called after every
// state transition.
func NewInfiniteQuery[K comparable, P any](ctx context.Context, c *Client, opts InfiniteOptions[K, P], onChange func()) *InfiniteQuery[K, P] {
	if opts.InitialPageParam <= 0 {
		opts.InitialPageParam = 1
	}
	if opts.Spawn == nil {
		opts.Spawn = goSpawn
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &InfiniteQuery[K, P]{ctx: ctx, client: c, opts: opts, onChange: onChange}
}

// SetKey switches to key and starts loading its first page. It reports false when key is already
// current.
func (q *InfiniteQuery[K, P]) SetKey(key K) bool {
	q.mu.Lock()
	if q.hasKey && q.key == key {
		q.mu.Unlock()
		return false
	}
	q.key = key
	q.hasKey = true
	q.generation++
	q.pages = nil
	q.err = nil
	q.inFlight = true
	q.fetchingNext = false
	generation := q.generation
	q.mu.Unlock()

	q.onChange()
	q.opts.Spawn(func() { q.load(generation, key, q.opts.InitialPageParam) })
	return true
}

// Key returns the current key.
func (q *InfiniteQuery[K, P]) Key() (K, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.key, q.hasKey
}

// FetchNextPage requests the page after the last one received. It refuses, returning false, when
// there is no next page or a load is already in flight.
func (q *InfiniteQuery[K, P]) FetchNextPage() bool {
	q.mu.Lock()
	if !q.hasKey || q.inFlight || q.err != nil || len(q.pages) == 0 {
		q.mu.Unlock()
		return false
	}
	next, ok := q.opts.NextPageParam(q.pages[len(q.pages)-1])
	if !ok {
		q.mu.Unlock()
		return false
	}
	q.inFlight = true
	q.fetchingNext = true
	generation := q.generation
	key := q.key
	q.mu.Unlock()

	q.onChange()
	q.opts.Spawn(func() { q.load(generation, key, next) })
	return true
}

func (q *InfiniteQuery[K, P]) load(generation uint64, key K, page int) {
	p, err := Fetch(q.ctx, q.client, q.opts.CacheKey(key, page), q.opts.StaleTime, func(ctx context.Context) (P, error) {
		return q.opts.Fetch(ctx, key, page)
	})

	q.mu.Lock()
	if generation != q.generation {
		q.mu.Unlock()
		return
	}
	q.inFlight = false
	q.fetchingNext = false
	if err != nil {
		q.err = err
	} else {
		q.pages = append(q.pages, p)
	}
	q.mu.Unlock()

	q.onChange()
}

// State returns the current snapshot. Pages is a copy.
func (q *InfiniteQuery[K, P]) State() InfiniteState[P] {
	q.mu.Lock()
	defer q.mu.Unlock()

	state := InfiniteState[P]{
		Pages:              append([]P(nil), q.pages...),
		IsLoading:          q.hasKey && len(q.pages) == 0 && q.err == nil,
		IsError:            q.err != nil,
		Err:                q.err,
		IsFetchingNextPage: q.fetchingNext,
	}
	if len(q.pages) > 0 {
		_, state.HasNextPage = q.opts.NextPageParam(q.pages[len(q.pages)-1])
	}
	return state
}

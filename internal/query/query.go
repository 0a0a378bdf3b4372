package query

import (
	"context"
	"sync"
	"time"
)

// State is a snapshot of a single-shot query.
type State[T any] struct {
	Data      T
	IsLoading bool
	IsError   bool
	Err       error
}

// QueryOptions configures a single-shot query.
type QueryOptions[T any] struct {
	Key       Key
	StaleTime time.Duration
	Fetch     func(ctx context.Context) (T, error)
	// Spawn runs loads; defaults to a new goroutine.
	Spawn func(func())
}

// Query loads one value once per Start and remembers the outcome.
type Query[T any] struct {
	client   *Client
	opts     QueryOptions[T]
	onChange func()

	mu      sync.Mutex
	state   State[T]
	started bool
}

// NewQuery builds an idle query. onChange is called after every state transition.
func NewQuery[T any](c *Client, opts QueryOptions[T], onChange func()) *Query[T] {
	if opts.Spawn == nil {
		opts.Spawn = goSpawn
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &Query[T]{client: c, opts: opts, onChange: onChange}
}

// Start begins the load unless it already started.
func (q *Query[T]) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.state.IsLoading = true
	q.mu.Unlock()

	q.onChange()
	q.opts.Spawn(func() {
		data, err := Fetch(ctx, q.client, q.opts.Key, q.opts.StaleTime, q.opts.Fetch)

		q.mu.Lock()
		q.state.IsLoading = false
		if err != nil {
			q.state.IsError = true
			q.state.Err = err
		} else {
			q.state.Data = data
		}
		q.mu.Unlock()

		q.onChange()
	})
}

// State returns the current snapshot.
func (q *Query[T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

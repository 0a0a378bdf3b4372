package ui

import (
	"context"
	"sync"
	"time"
)

// View is the server side of one page load. Browser events mutate its Page; subscribers are
// told after every change so they can push fresh regions.
type View struct {
	ID   string
	Page *Page

	ctx    context.Context
	cancel context.CancelFunc
	clock  Clock

	mu       sync.Mutex
	subs     map[chan struct{}]struct{}
	lastSeen time.Time
}

func newView(ctx context.Context, id string, clock Clock) *View {
	ctx, cancel := context.WithCancel(ctx)
	return &View{
		ID:       id,
		ctx:      ctx,
		cancel:   cancel,
		clock:    clock,
		subs:     make(map[chan struct{}]struct{}),
		lastSeen: clock.Now(),
	}
}

// Context is cancelled when the view is evicted.
func (v *View) Context() context.Context { return v.ctx }

// Subscribe returns a channel that receives a tick after changes. Ticks coalesce: a subscriber
// that falls behind sees one tick for many changes. The returned func unsubscribes.
func (v *View) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	v.mu.Lock()
	v.subs[ch] = struct{}{}
	v.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, ch)
			v.mu.Unlock()
		})
	}
}

// Subscribers returns the number of open streams.
func (v *View) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

func (v *View) changed() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for ch := range v.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Touch marks the view as in use.
func (v *View) Touch() {
	v.mu.Lock()
	v.lastSeen = v.clock.Now()
	v.mu.Unlock()
}

func (v *View) idleSince(now time.Time) time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.subs) > 0 {
		return 0
	}
	return now.Sub(v.lastSeen)
}

func (v *View) close() {
	v.cancel()
}

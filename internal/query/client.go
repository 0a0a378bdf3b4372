// Package query is a keyed async cache for remote reads. Results are stored under a Key for a
// staleness window, concurrent loads of the same key are collapsed into one, and accessors expose
// loading and error flags to the views.
package query

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "finder"

// Key identifies a cached value. Parts are ordered, so ["exams", "math", "", "", "1"] and
// ["exams", "", "math", "", "1"] are different keys.
type Key []string

// String renders the key as finder:<part>:<part>…, escaping each part.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(keyPrefix)
	for _, part := range k {
		b.WriteByte(':')
		b.WriteString(url.QueryEscape(part))
	}
	return b.String()
}

// Cache is the store behind a Client. service.CacheService satisfies it.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Options tunes a Client.
type Options struct {
	// Retries is the number of extra attempts after a failed load.
	Retries int
	// RetryDelay returns the wait before retry attempt n (0-based). Defaults to DefaultRetryDelay.
	RetryDelay func(attempt int) time.Duration
	Logger     *zap.Logger
}

// Client is shared by every view. It owns the cache and serialises access to it.
type Client struct {
	cache      Cache
	group      singleflight.Group
	retries    int
	retryDelay func(int) time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context of a shared load. It is cancelled once every caller waiting on the
// key has returned, so one caller giving up does not fail the others.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewClient builds a client over cache.
func NewClient(cache Cache, opts Options) *Client {
	if opts.RetryDelay == nil {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Client{
		cache:      cache,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
		flights:    make(map[string]*flight),
	}
}

func (c *Client) join(ctx context.Context, cacheKey string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flights[cacheKey]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[cacheKey] = f
	}
	f.waiters++
	return f
}

func (c *Client) leave(cacheKey string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[cacheKey] == f {
		delete(c.flights, cacheKey)
	}
}

// DefaultRetryDelay backs off exponentially from one second, capped at thirty.
func DefaultRetryDelay(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	d := time.Second << attempt
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

// Fetch returns the cached value for key, or loads it with fn and caches it for staleTime.
// Concurrent callers asking for the same key share a single load.
func Fetch[T any](ctx context.Context, c *Client, key Key, staleTime time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	cacheKey := key.String()

	if c.cache != nil {
		var cached T
		// Read errors are logged by the cache and treated as a miss.
		if hit, err := c.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	f := c.join(ctx, cacheKey)
	defer c.leave(cacheKey, f)

	for {
		ch := c.group.DoChan(cacheKey, func() (interface{}, error) {
			value, err := c.load(f.ctx, cacheKey, func(ctx context.Context) (interface{}, error) {
				return fn(ctx)
			})
			if err != nil {
				return nil, err
			}
			if c.cache != nil {
				_ = c.cache.Set(f.ctx, cacheKey, value, staleTime)
			}
			return value, nil
		})

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case res := <-ch:
			// A load abandoned by its last waiter can still hand its cancellation to a caller
			// that joined just after. Start over on our own flight.
			if res.Shared && errors.Is(res.Err, context.Canceled) && f.ctx.Err() == nil {
				continue
			}
			if res.Err != nil {
				return zero, res.Err
			}
			if res.Shared {
				c.logger.Debug("query load shared", zap.String("key", cacheKey))
			}
			return res.Val.(T), nil
		}
	}
}

func (c *Client) load(ctx context.Context, cacheKey string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt - 1)
			c.logger.Debug("query retry",
				zap.String("key", cacheKey),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
	}
	c.logger.Warn("query load failed", zap.String("key", cacheKey), zap.Error(lastErr))
	return nil, lastErr
}

func goSpawn(f func()) { go f() }

package query

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inline(f func()) { f() }

// jsonCache stores values the way the shared cache does, as JSON without expiry.
type jsonCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (c *jsonCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	payload, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(payload, dest)
}

func (c *jsonCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string][]byte)
	}
	c.entries[key] = payload
	return nil
}

func newTestClient(t *testing.T, retries int) *Client {
	t.Helper()
	return NewClient(&jsonCache{}, Options{
		Retries:    retries,
		RetryDelay: func(int) time.Duration { return 0 },
	})
}

func TestKeyStringEscapesParts(t *testing.T) {
	assert.Equal(t, "finder:exams:a+b:%3A:1", Key{"exams", "a b", ":", "1"}.String())
	assert.NotEqual(t, Key{"exams", "math", ""}.String(), Key{"exams", "", "math"}.String())
}

func TestDefaultRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, DefaultRetryDelay(0))
	assert.Equal(t, 4*time.Second, DefaultRetryDelay(2))
	assert.Equal(t, 30*time.Second, DefaultRetryDelay(5))
	assert.Equal(t, 30*time.Second, DefaultRetryDelay(40))
}

func TestFetchServesCacheWithinStaleTime(t *testing.T) {
	c := newTestClient(t, 0)
	var calls int32
	load := func(context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"2025-12-08"}, nil
	}

	first, err := Fetch(context.Background(), c, DatesKey, time.Minute, load)
	require.NoError(t, err)
	second, err := Fetch(context.Background(), c, DatesKey, time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	c := newTestClient(t, 3)
	var calls int
	value, err := Fetch(context.Background(), c, Key{"flaky"}, time.Minute, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("boom")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, 3, calls)
}

func TestFetchGivesUpAfterRetries(t *testing.T) {
	c := newTestClient(t, 2)
	var calls int
	_, err := Fetch(context.Background(), c, Key{"down"}, time.Minute, func(context.Context) (string, error) {
		calls++
		return "", errors.New("down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestFetchStopsRetryingWhenContextDone(t *testing.T) {
	c := NewClient(nil, Options{Retries: 5, RetryDelay: func(int) time.Duration { return time.Hour }})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fetch(ctx, c, Key{"cancelled"}, time.Minute, func(context.Context) (int, error) {
		return 0, errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func (c *Client) waiters(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.flights[key.String()]; ok {
		return f.waiters
	}
	return 0
}

func TestFetchSharedLoadOutlivesCancelledCaller(t *testing.T) {
	c := NewClient(nil, Options{})
	key := Key{"exams", "math"}
	release := make(chan struct{})
	var calls int32
	load := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-release:
			return 7, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := Fetch(ctxA, c, key, time.Minute, load)
		errA <- err
	}()
	require.Eventually(t, func() bool { return c.waiters(key) == 1 }, time.Second, time.Millisecond)

	type result struct {
		v   int
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := Fetch(context.Background(), c, key, time.Minute, load)
		resB <- result{v, err}
	}()
	require.Eventually(t, func() bool { return c.waiters(key) == 2 }, time.Second, time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, 7, b.v)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Zero(t, c.waiters(key))
}

func TestFetchCollapsesConcurrentLoads(t *testing.T) {
	c := NewClient(nil, Options{})
	release := make(chan struct{})
	var calls int32

	var wg sync.WaitGroup
	results := make([]int, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, Key{"shared"}, time.Minute, func(context.Context) (int, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return 42, nil
			})
			if err == nil {
				results[i] = v
			}
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(4))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestQueryStartLoadsOnce(t *testing.T) {
	c := newTestClient(t, 0)
	var calls, changes int
	q := NewQuery(c, QueryOptions[[]string]{
		Key:       Key{"once"},
		StaleTime: time.Minute,
		Fetch: func(context.Context) ([]string, error) {
			calls++
			return []string{"a"}, nil
		},
		Spawn: inline,
	}, func() { changes++ })

	q.Start(context.Background())
	q.Start(context.Background())

	state := q.State()
	assert.False(t, state.IsLoading)
	assert.False(t, state.IsError)
	assert.Equal(t, []string{"a"}, state.Data)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, changes)
}

func TestQueryRecordsError(t *testing.T) {
	c := newTestClient(t, 0)
	q := NewQuery(c, QueryOptions[[]string]{
		Key:   Key{"broken"},
		Fetch: func(context.Context) ([]string, error) { return nil, errors.New("503") },
		Spawn: inline,
	}, nil)

	assert.False(t, q.State().IsLoading)
	q.Start(context.Background())

	state := q.State()
	assert.True(t, state.IsError)
	assert.EqualError(t, state.Err, "503")
	assert.Nil(t, state.Data)
}

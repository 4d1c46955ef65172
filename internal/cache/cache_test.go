package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func counter(val string) (func(context.Context) (string, error), *int) {
	n := 0
	return func(context.Context) (string, error) {
		n++
		return val, nil
	}, &n
}

var ctx = context.Background()

func TestKey(t *testing.T) {
	assert.Equal(t, "GET:/api/logs/", Key("", "/api/logs/"))
	assert.Equal(t, "GET:/api/logs/", Key("get", "/api/logs/"))
	assert.Equal(t, "POST:/api/logs/", Key("Post", "/api/logs/"))
	assert.NotEqual(t, Key("GET", "/api/works/?q=a"), Key("GET", "/api/works/?q=b"))
}

func TestGetOrFetch_WithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := NewWithClock[string](clock)
	fetch, calls := counter("v")

	for i := 0; i < 3; i++ {
		got, err := c.GetOrFetch(ctx, "GET:/x", time.Minute, false, fetch)
		require.NoError(t, err)
		assert.Equal(t, "v", got)
		clock.Advance(10 * time.Second)
	}
	assert.Equal(t, 1, *calls)
}

func TestGetOrFetch_AfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := NewWithClock[string](clock)
	fetch, calls := counter("v")

	_, err := c.GetOrFetch(ctx, "GET:/x", time.Minute, false, fetch)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = c.GetOrFetch(ctx, "GET:/x", time.Minute, false, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls, "an entry exactly ttl old is stale")
}

func TestGetOrFetch_Force(t *testing.T) {
	c := NewWithClock[string](&fakeClock{now: time.Unix(0, 0)})
	fetch, calls := counter("v")

	_, _ = c.GetOrFetch(ctx, "GET:/x", time.Hour, false, fetch)
	_, _ = c.GetOrFetch(ctx, "GET:/x", time.Hour, true, fetch)
	_, _ = c.GetOrFetch(ctx, "GET:/x", time.Hour, false, fetch)
	assert.Equal(t, 2, *calls)
}

func TestGetOrFetch_DistinctKeys(t *testing.T) {
	c := NewWithClock[string](&fakeClock{now: time.Unix(0, 0)})
	fetch, calls := counter("v")

	_, _ = c.GetOrFetch(ctx, Key("GET", "/api/works/?q=a"), time.Hour, false, fetch)
	_, _ = c.GetOrFetch(ctx, Key("GET", "/api/works/?q=b"), time.Hour, false, fetch)
	assert.Equal(t, 2, *calls)
	assert.Equal(t, 2, c.Len())
}

func TestGetOrFetch_ErrorNotCached(t *testing.T) {
	c := NewWithClock[string](&fakeClock{now: time.Unix(0, 0)})
	boom := errors.New("boom")

	_, err := c.GetOrFetch(ctx, "GET:/x", time.Hour, false, func(context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())

	fetch, calls := counter("ok")
	got, err := c.GetOrFetch(ctx, "GET:/x", time.Hour, false, fetch)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, *calls)
}

func TestPurge(t *testing.T) {
	c := New[int]()
	_, _ = c.GetOrFetch(ctx, "GET:/x", time.Hour, false, func(context.Context) (int, error) { return 1, nil })
	require.Equal(t, 1, c.Len())
	c.Purge()
	assert.Zero(t, c.Len())
}

func TestGetOrFetch_ConcurrentCallers(t *testing.T) {
	c := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrFetch(ctx, "GET:/x", time.Hour, false, func(context.Context) (int, error) { return 7, nil })
			assert.NoError(t, err)
			assert.Equal(t, 7, v)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}

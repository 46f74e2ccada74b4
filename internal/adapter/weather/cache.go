package weather

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/couchcryptid/bloom-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// CachedProvider wraps a WeatherProvider with an in-memory LRU cache whose
// entries expire after a TTL. Errors are never cached.
type CachedProvider struct {
	inner    domain.WeatherProvider
	current  *lruCache[domain.WeatherReading]
	forecast *lruCache[[]domain.ForecastDay]
	metrics  *observability.Metrics
}

// NewCachedProvider creates a cache decorator around a weather provider.
func NewCachedProvider(inner domain.WeatherProvider, maxEntries int, ttl time.Duration, clk clockwork.Clock, metrics *observability.Metrics) *CachedProvider {
	return &CachedProvider{
		inner:    inner,
		current:  newLRUCache[domain.WeatherReading](maxEntries, ttl, clk),
		forecast: newLRUCache[[]domain.ForecastDay](maxEntries, ttl, clk),
		metrics:  metrics,
	}
}

func (c *CachedProvider) Name() string { return c.inner.Name() }

func (c *CachedProvider) Current(ctx context.Context, loc domain.Location) (domain.WeatherReading, error) {
	key := fmt.Sprintf("cur:%s:%.4f,%.4f", c.inner.Name(), loc.Lat, loc.Lon)
	if r, ok := c.current.get(key); ok {
		c.metrics.WeatherCache.WithLabelValues("current", "hit").Inc()
		return r, nil
	}
	c.metrics.WeatherCache.WithLabelValues("current", "miss").Inc()

	r, err := c.inner.Current(ctx, loc)
	if err != nil {
		return r, err
	}
	c.current.put(key, r)
	return r, nil
}

func (c *CachedProvider) Forecast(ctx context.Context, loc domain.Location, days int) ([]domain.ForecastDay, error) {
	key := fmt.Sprintf("fc:%s:%.4f,%.4f:%d", c.inner.Name(), loc.Lat, loc.Lon, days)
	if f, ok := c.forecast.get(key); ok {
		c.metrics.WeatherCache.WithLabelValues("forecast", "hit").Inc()
		return slices.Clone(f), nil
	}
	c.metrics.WeatherCache.WithLabelValues("forecast", "miss").Inc()

	f, err := c.inner.Forecast(ctx, loc, days)
	if err != nil {
		return f, err
	}
	// Empty forecasts are not cached so the next request retries.
	if len(f) > 0 {
		c.forecast.put(key, slices.Clone(f))
	}
	return f, nil
}

// PeriodTemperature forwards to the wrapped provider when it can summarize
// past temperatures. Summaries are not cached.
func (c *CachedProvider) PeriodTemperature(ctx context.Context, loc domain.Location, from, to time.Time) (domain.TemperatureSummary, error) {
	src, ok := c.inner.(domain.TemperatureSource)
	if !ok {
		return domain.TemperatureSummary{}, ErrNoTemperatureSource
	}
	return src.PeriodTemperature(ctx, loc, from, to)
}

// lruCache is a simple thread-safe LRU cache with per-entry expiry.
type lruCache[V any] struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key     string
	value   V
	expires time.Time
	prev    *entry[V]
	next    *entry[V]
}

func newLRUCache[V any](maxEntries int, ttl time.Duration, clk clockwork.Clock) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clk,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.clock.Now().Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.clock.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = expires
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}

package weather

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/couchcryptid/bloom-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedProvider_CurrentHitAndExpiry(t *testing.T) {
	clk := clockwork.NewFakeClockAt(testNow)
	inner := newFake("aemet", 20, domain.KindObserved)
	c := NewCachedProvider(inner, 10, 15*time.Minute, clk, observability.NewMetricsForTesting())
	ctx := context.Background()

	first, err := c.Current(ctx, valencia)
	require.NoError(t, err)
	second, err := c.Current(ctx, valencia)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	hits, _ := inner.calls()
	assert.Equal(t, 1, hits, "second call served from cache")

	clk.Advance(15 * time.Minute)
	_, err = c.Current(ctx, valencia)
	require.NoError(t, err)
	hits, _ = inner.calls()
	assert.Equal(t, 2, hits, "expired entry refetched")
}

func TestCachedProvider_ErrorsNotCached(t *testing.T) {
	clk := clockwork.NewFakeClockAt(testNow)
	inner := newFake("aemet", 20, domain.KindObserved)
	inner.err = errOutage
	c := NewCachedProvider(inner, 10, time.Hour, clk, observability.NewMetricsForTesting())

	_, err := c.Current(context.Background(), valencia)
	require.ErrorIs(t, err, errOutage)

	inner.err = nil
	r, err := c.Current(context.Background(), valencia)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, r.Temperature, 1e-9)

	hits, _ := inner.calls()
	assert.Equal(t, 2, hits)
}

func TestCachedProvider_ForecastKeyedByDays(t *testing.T) {
	clk := clockwork.NewFakeClockAt(testNow)
	inner := newFake("meteomatics", 22, domain.KindObserved)
	c := NewCachedProvider(inner, 10, time.Hour, clk, observability.NewMetricsForTesting())
	ctx := context.Background()

	three, err := c.Forecast(ctx, valencia, 3)
	require.NoError(t, err)
	require.Len(t, three, 3)

	// Mutating the returned slice must not leak into the cache.
	three[0].TempAvg = -100

	again, err := c.Forecast(ctx, valencia, 3)
	require.NoError(t, err)
	assert.InDelta(t, 22.0, again[0].TempAvg, 1e-9)

	five, err := c.Forecast(ctx, valencia, 5)
	require.NoError(t, err)
	assert.Len(t, five, 5)

	_, calls := inner.calls()
	assert.Equal(t, 2, calls)
}

func TestCachedProvider_EmptyForecastNotCached(t *testing.T) {
	clk := clockwork.NewFakeClockAt(testNow)
	inner := newFake("meteomatics", 22, domain.KindObserved)
	inner.forecast = nil
	c := NewCachedProvider(inner, 10, time.Hour, clk, observability.NewMetricsForTesting())

	for range 2 {
		days, err := c.Forecast(context.Background(), valencia, 3)
		require.NoError(t, err)
		assert.Empty(t, days)
	}
	_, calls := inner.calls()
	assert.Equal(t, 2, calls)
}

func TestCachedProvider_PeriodTemperature(t *testing.T) {
	clk := clockwork.NewFakeClockAt(testNow)
	metrics := observability.NewMetricsForTesting()
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	plain := NewCachedProvider(newFake("aemet", 20, domain.KindObserved), 10, time.Hour, clk, metrics)
	_, err := plain.PeriodTemperature(context.Background(), valencia, from, from.AddDate(0, 0, 5))
	require.ErrorIs(t, err, ErrNoTemperatureSource)

	src := fakeTemperatureProvider{newFake("meteomatics", 17, domain.KindObserved)}
	cached := NewCachedProvider(src, 10, time.Hour, clk, metrics)
	s, err := cached.PeriodTemperature(context.Background(), valencia, from, from.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.InDelta(t, 17.0, s.Mean, 1e-9)
	assert.Equal(t, from, s.PeriodStart)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	clk := clockwork.NewFakeClockAt(testNow)
	c := newLRUCache[int](2, time.Hour, clk)

	c.put("a", 1)
	c.put("b", 2)
	_, ok := c.get("a") // a becomes most recent
	require.True(t, ok)
	c.put("c", 3)

	_, ok = c.get("b")
	assert.False(t, ok, "b was least recently used")
	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, c.size())
}

func TestLRUCache_UpdateRefreshesExpiry(t *testing.T) {
	clk := clockwork.NewFakeClockAt(testNow)
	c := newLRUCache[string](4, 10*time.Minute, clk)

	c.put("k", "old")
	clk.Advance(8 * time.Minute)
	c.put("k", "new")
	clk.Advance(8 * time.Minute)

	v, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, c.size())

	clk.Advance(2 * time.Minute)
	_, ok = c.get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.size(), "expired entries are dropped on read")
}

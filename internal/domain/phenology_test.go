package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bloomStart = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func dailySeries(start time.Time, values []float64) []Point {
	pts := make([]Point, len(values))
	for i, v := range values {
		pts[i] = Point{Date: start.AddDate(0, 0, i), Value: v}
	}
	return pts
}

func TestDetect_TooFewPoints(t *testing.T) {
	d := DefaultDetector()
	for n := 0; n < 4; n++ {
		series := dailySeries(bloomStart, bump[:n])
		assert.Empty(t, d.Detect(series, nil), "n=%d", n)
	}
}

func TestDetect_SingleBump(t *testing.T) {
	series := dailySeries(bloomStart, bump)

	events := DefaultDetector().Detect(series, nil)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, series[4].Date, ev.PeakDate)
	assert.Equal(t, series[1].Date, ev.OnsetDate)
	require.NotNil(t, ev.EndDate)
	assert.Equal(t, series[6].Date, *ev.EndDate)
	require.NotNil(t, ev.DurationDays)
	assert.Equal(t, 5, *ev.DurationDays)

	assert.InDelta(t, 0.78, ev.PeakValue, 1e-9)
	assert.InDelta(t, 0.3, ev.Baseline, 1e-9)
	assert.InDelta(t, 0.48, ev.Amplitude, 1e-9)
	assert.InDelta(t, 0.96, ev.Reliability, 1e-9)
	assert.Equal(t, 0, ev.SupportingPeaks)
	assert.Nil(t, ev.AnomalyDays)
	assert.Nil(t, ev.Enrichment)
	assert.True(t, strings.HasPrefix(ev.ID, "bloom-"))
	assert.Len(t, ev.ID, len("bloom-")+16)
}

func TestDetect_AnomalyDaysNeedTwoReferences(t *testing.T) {
	series := dailySeries(bloomStart, bump)
	d := DefaultDetector()

	assert.Nil(t, d.Detect(series, []int{150})[0].AnomalyDays)

	// Peak on June 5 is day 156; references average 155.
	ev := d.Detect(series, []int{150, 160})[0]
	require.NotNil(t, ev.AnomalyDays)
	assert.InDelta(t, 1.0, *ev.AnomalyDays, 1e-9)

	ev = d.Detect(series, []int{170, 180})[0]
	require.NotNil(t, ev.AnomalyDays)
	assert.InDelta(t, -19.0, *ev.AnomalyDays, 1e-9)
}

func TestDetect_TwoBumps(t *testing.T) {
	values := []float64{0.3, 0.3, 0.5, 0.8, 0.5, 0.3, 0.3, 0.3, 0.5, 0.8, 0.5, 0.3, 0.3}
	series := dailySeries(bloomStart, values)

	events := DefaultDetector().Detect(series, nil)

	require.Len(t, events, 2)
	assert.Equal(t, series[3].Date, events[0].PeakDate)
	assert.Equal(t, series[9].Date, events[1].PeakDate)
	for _, ev := range events {
		assert.Equal(t, 1, ev.SupportingPeaks)
		assert.False(t, ev.OnsetDate.After(ev.PeakDate))
	}
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestDetect_NoEndWhenSeriesStopsHigh(t *testing.T) {
	values := []float64{0.3, 0.3, 0.3, 0.4, 0.6, 0.8, 0.85, 0.8, 0.78}
	series := dailySeries(bloomStart, values)

	events := DefaultDetector().Detect(series, nil)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Nil(t, last.EndDate)
	assert.Nil(t, last.DurationDays)
}

func TestDetect_FlatSeriesHasNoEvents(t *testing.T) {
	series := dailySeries(bloomStart, []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5})

	// A plateau spanning the whole series touches both ends, so it is not a
	// local maximum.
	assert.Empty(t, DefaultDetector().Detect(series, nil))
}

func TestDetect_Deterministic(t *testing.T) {
	series := dailySeries(bloomStart, bump)
	d := DefaultDetector()

	assert.Equal(t, d.Detect(series, []int{150, 160}), d.Detect(series, []int{150, 160}))
}

func TestDetect_OnsetAtSeriesStart(t *testing.T) {
	// A slope threshold no derivative can fall below leaves only the level
	// test, which first holds at the series start.
	values := []float64{0.1, 0.3, 0.5, 0.7, 0.9, 0.7, 0.5, 0.3, 0.1}
	series := dailySeries(bloomStart, values)

	events := NewDetector(DefaultSmoother(), -1).Detect(series, nil)

	require.Len(t, events, 1)
	assert.Equal(t, series[0].Date, events[0].OnsetDate)
}

func TestPeakDayOfYear(t *testing.T) {
	_, ok := PeakDayOfYear(nil)
	assert.False(t, ok)

	series := []Point{
		{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Value: 0.8},
		{Date: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), Value: 0.5},
		{Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Value: 0.8},
	}
	doy, ok := PeakDayOfYear(series)
	require.True(t, ok)
	assert.Equal(t, 61, doy, "earliest of tied maxima, March 1 in a leap year")
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatWithDip returns 15 samples 16 days apart, all base except index 7.
func flatWithDip(start time.Time, base, dip float64) []Point {
	points := make([]Point, 15)
	for i := range points {
		points[i] = Point{Date: start.AddDate(0, 0, 16*i), Value: base}
	}
	points[7].Value = dip
	return points
}

func TestDetectAnomalies_TooShort(t *testing.T) {
	series := flatWithDip(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 0.6, 0.1)[:9]
	assert.Nil(t, DetectAnomalies(series, AnomalyThresholdsFor("arroz")))
}

func TestDetectAnomalies_Drought(t *testing.T) {
	series := flatWithDip(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 0.6, 0.1)

	got := DetectAnomalies(series, AnomalyThresholdsFor("arroz"))
	require.Len(t, got, 1)

	alert := got[0]
	assert.Equal(t, AnomalyDrought, alert.Type)
	assert.Equal(t, series[7].Date, alert.Date)
	assert.InDelta(t, 0.1, alert.Value, 1e-9)
	assert.InDelta(t, 0.55, alert.Expected, 1e-9)
	assert.InDelta(t, 0.45/0.55, alert.Severity, 1e-9)
	assert.NotEmpty(t, alert.Description)
	assert.NotEmpty(t, alert.Recommendation)
}

func TestDetectAnomalies_SummerFireRisk(t *testing.T) {
	series := flatWithDip(time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), 0.6, 0.2)
	require.True(t, isSummer(series[7].Date))
	th := AnomalyThresholds{Drought: 0.1, FireRisk: 0.3, StressDrop: 0.1}

	got := DetectAnomalies(series, th)
	require.Len(t, got, 1)
	assert.Equal(t, AnomalyFireRisk, got[0].Type)
}

func TestDetectAnomalies_VegetationOutsideSummer(t *testing.T) {
	series := flatWithDip(time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), 0.6, 0.2)
	th := AnomalyThresholds{Drought: 0.1, FireRisk: 0.3, StressDrop: 0.1}

	got := DetectAnomalies(series, th)
	require.Len(t, got, 1)
	assert.Equal(t, AnomalyVegetation, got[0].Type)
}

func TestDetectAnomalies_Spike(t *testing.T) {
	series := flatWithDip(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 0.5, 0.9)

	got := DetectAnomalies(series, AnomalyThresholdsFor("trigo"))
	require.Len(t, got, 1)
	assert.Equal(t, AnomalyVegetation, got[0].Type)
	assert.InDelta(t, 0.54, got[0].Expected, 1e-9)
}

func TestDetectAnomalies_Flat(t *testing.T) {
	series := flatWithDip(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 0.5, 0.5)
	assert.Empty(t, DetectAnomalies(series, AnomalyThresholdsFor("arroz")))
}

func TestAnomalyThresholdsFor(t *testing.T) {
	assert.Equal(t, AnomalyThresholds{Drought: 0.35, FireRisk: 0.25, StressDrop: 0.18}, AnomalyThresholdsFor("maiz"))
	assert.Equal(t, AnomalyThresholdsFor("arroz"), AnomalyThresholdsFor("oliva"))
}

func TestNeighbours(t *testing.T) {
	values := []float64{0, 1, 2, 3, 4, 5, 6}
	assert.Equal(t, []float64{1, 2, 4, 5}, neighbours(values, 3, 2))
	assert.Equal(t, []float64{1}, neighbours(values, 0, 2))
}

package domain

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Anomaly alert types.
const (
	AnomalyDrought    = "drought_stress"
	AnomalyFireRisk   = "fire_risk"
	AnomalyVegetation = "vegetation_anomaly"
)

const (
	anomalyWindow     = 10
	anomalySigma      = 3.0
	fireDropMultiple  = 1.5
	minAnomalySamples = anomalyWindow
)

// AnomalyThresholds are the NDVI levels below which a crop is considered
// stressed, plus the deviation that counts as a sudden drop.
type AnomalyThresholds struct {
	Drought    float64 `json:"drought"`
	FireRisk   float64 `json:"fire_risk"`
	StressDrop float64 `json:"stress_drop"`
}

var anomalyThresholds = map[string]AnomalyThresholds{
	"arroz": {Drought: 0.30, FireRisk: 0.20, StressDrop: 0.15},
	"trigo": {Drought: 0.25, FireRisk: 0.18, StressDrop: 0.12},
	"maiz":  {Drought: 0.35, FireRisk: 0.25, StressDrop: 0.18},
}

// AnomalyThresholdsFor returns the thresholds of crop, or rice's.
func AnomalyThresholdsFor(crop string) AnomalyThresholds {
	if t, ok := anomalyThresholds[crop]; ok {
		return t
	}
	return anomalyThresholds[DefaultCropKey]
}

// AnomalyAlert flags one unusual NDVI observation.
type AnomalyAlert struct {
	Date           time.Time `json:"date"`
	Type           string    `json:"type"`
	Severity       float64   `json:"severity"`
	Value          float64   `json:"value"`
	Expected       float64   `json:"expected"`
	Description    string    `json:"description"`
	Recommendation string    `json:"recommendation"`
}

// DetectAnomalies compares each NDVI value against a 10-sample rolling mean
// and flags drought stress, summer fire risk and 3-sigma vegetation changes.
// The sigma is taken over the neighbouring samples, excluding the value under
// test. Series with fewer than ten points produce no alerts.
func DetectAnomalies(series []Point, th AnomalyThresholds) []AnomalyAlert {
	n := len(series)
	if n < minAnomalySamples {
		return nil
	}
	values := SeriesValues(series)
	half := anomalyWindow / 2

	var alerts []AnomalyAlert
	for i := half; i-half+anomalyWindow <= n; i++ {
		expected := stat.Mean(values[i-half:i-half+anomalyWindow], nil)
		_, localStd := stat.PopMeanStdDev(neighbours(values, i, half), nil)

		v := values[i]
		deviation := math.Abs(v - expected)
		severity := 0.0
		if expected != 0 {
			severity = deviation / expected
		}

		alert := AnomalyAlert{
			Date:     series[i].Date,
			Severity: severity,
			Value:    v,
			Expected: expected,
		}
		switch {
		case v < th.Drought && deviation > th.StressDrop:
			alert.Type = AnomalyDrought
			alert.Description = fmt.Sprintf("NDVI %.2f below drought threshold %.2f", v, th.Drought)
			alert.Recommendation = "Increase irrigation and monitor soil moisture"
		case isSummer(series[i].Date) && v < th.FireRisk && deviation > th.StressDrop*fireDropMultiple:
			alert.Type = AnomalyFireRisk
			alert.Description = fmt.Sprintf("Sudden summer NDVI drop to %.2f, potential fire", v)
			alert.Recommendation = "Monitor fire weather indices and prepare emergency response"
		case deviation > localStd*anomalySigma:
			alert.Type = AnomalyVegetation
			alert.Description = fmt.Sprintf("Unusual vegetation change: NDVI %.2f vs expected %.2f", v, expected)
			alert.Recommendation = "Investigate land use changes and pest or disease outbreaks"
		default:
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts
}

// neighbours returns the samples within half positions of i, without i.
func neighbours(values []float64, i, half int) []float64 {
	lo, hi := max(0, i-half), min(len(values), i+half)
	out := make([]float64, 0, hi-lo)
	out = append(out, values[lo:i]...)
	return append(out, values[i+1:hi]...)
}

func isSummer(t time.Time) bool {
	m := t.Month()
	return m == time.June || m == time.July || m == time.August
}

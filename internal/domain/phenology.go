package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultDerivativeThreshold is the slope below which the rise toward a
	// peak is considered to have started.
	DefaultDerivativeThreshold = 0.01

	minDetectionPoints = 4
	baselinePercentile = 10
	minPeakDistance    = 2
	onsetLevelFraction = 0.1
	endLevelFraction   = 0.5
	fullReliabilityAmp = 0.5
	minHistoricPeaks   = 2
)

// BloomEvent is one rise-peak-fall cycle found in an NDVI series.
type BloomEvent struct {
	ID              string     `json:"id"`
	PeakDate        time.Time  `json:"peak_date"`
	OnsetDate       time.Time  `json:"onset_date"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	DurationDays    *int       `json:"duration_days,omitempty"`
	Amplitude       float64    `json:"amplitude"`
	Reliability     float64    `json:"reliability"`
	AnomalyDays     *float64   `json:"anomaly_days,omitempty"`
	PeakValue       float64    `json:"peak_value"`
	Baseline        float64    `json:"baseline"`
	SupportingPeaks int        `json:"supporting_peaks"`

	// Enrichment is set only when weather context was requested.
	Enrichment *EventEnrichment `json:"enrichment,omitempty"`
}

// Detector extracts bloom events from a noisy NDVI series.
type Detector struct {
	smoother       Smoother
	derivThreshold float64
}

// NewDetector creates a detector with the given smoother and onset slope threshold.
func NewDetector(smoother Smoother, derivThreshold float64) Detector {
	return Detector{smoother: smoother, derivThreshold: derivThreshold}
}

// DefaultDetector returns a detector with the default smoother and threshold.
func DefaultDetector() Detector {
	return NewDetector(DefaultSmoother(), DefaultDerivativeThreshold)
}

// Smoother returns the smoother the detector runs before peak finding.
func (d Detector) Smoother() Smoother { return d.smoother }

// Detect finds bloom events in series, ordered by peak date. historicPeakDOY
// holds reference peak days-of-year from previous seasons; with fewer than
// two of them AnomalyDays stays nil. Series shorter than four points yield
// no events.
func (d Detector) Detect(series []Point, historicPeakDOY []int) []BloomEvent {
	if len(series) < minDetectionPoints {
		return nil
	}

	smoothed := d.smoother.Smooth(SeriesValues(series))
	deriv := gradient(smoothed)
	baseline := percentile(smoothed, baselinePercentile)

	relative := make([]float64, len(smoothed))
	for i, v := range smoothed {
		relative[i] = math.Max(0, v-baseline)
	}
	heightMin := percentile(relative, baselinePercentile)
	peaks := findPeaks(relative, heightMin, minPeakDistance)

	historicMean, hasHistory := meanPeakDay(historicPeakDOY)

	events := make([]BloomEvent, 0, len(peaks))
	for _, i := range peaks {
		peakValue := smoothed[i]
		amplitude := peakValue - baseline
		onset := d.onsetIndex(smoothed, deriv, i, baseline)

		ev := BloomEvent{
			PeakDate:        series[i].Date,
			OnsetDate:       series[onset].Date,
			Amplitude:       amplitude,
			Reliability:     clamp(amplitude/fullReliabilityAmp, 0, 1),
			PeakValue:       peakValue,
			Baseline:        baseline,
			SupportingPeaks: len(peaks) - 1,
		}

		if end, ok := endIndex(smoothed, i, baseline); ok {
			endDate := series[end].Date
			ev.EndDate = &endDate
			if end > onset {
				days := DaysBetween(ev.OnsetDate, endDate)
				ev.DurationDays = &days
			}
		}

		if hasHistory {
			anomaly := float64(ev.PeakDate.YearDay()) - historicMean
			ev.AnomalyDays = &anomaly
		}

		ev.ID = generateEventID(ev.PeakDate, ev.OnsetDate, peakValue)
		events = append(events, ev)
	}
	return events
}

// onsetIndex walks back from the peak until the slope flattens below the
// threshold or the value drops under 10% of the rise. Reaching the start of
// the series without a hit makes index 0 the onset.
func (d Detector) onsetIndex(smoothed, deriv []float64, peak int, baseline float64) int {
	level := baseline + onsetLevelFraction*(smoothed[peak]-baseline)
	for j := peak - 1; j >= 0; j-- {
		if deriv[j] < d.derivThreshold || smoothed[j] < level {
			return j
		}
	}
	return 0
}

// endIndex returns the first index after the peak whose value falls below
// half the rise height.
func endIndex(smoothed []float64, peak int, baseline float64) (int, bool) {
	level := baseline + endLevelFraction*(smoothed[peak]-baseline)
	for k := peak + 1; k < len(smoothed); k++ {
		if smoothed[k] < level {
			return k, true
		}
	}
	return 0, false
}

func meanPeakDay(days []int) (float64, bool) {
	if len(days) < minHistoricPeaks {
		return 0, false
	}
	xs := make([]float64, len(days))
	for i, d := range days {
		xs[i] = float64(d)
	}
	return stat.Mean(xs, nil), true
}

// PeakDayOfYear returns the day-of-year of the highest raw value in series.
// The earliest date wins ties.
func PeakDayOfYear(series []Point) (int, bool) {
	if len(series) == 0 {
		return 0, false
	}
	best := 0
	for i, p := range series {
		if p.Value > series[best].Value {
			best = i
		}
	}
	return series[best].Date.YearDay(), true
}

// generateEventID creates a deterministic ID from the fields that identify a
// bloom event within a series.
func generateEventID(peak, onset time.Time, peakValue float64) string {
	input := fmt.Sprintf("%s|%s|%.4f", peak.Format(DateLayout), onset.Format(DateLayout), peakValue)
	hash := sha256.Sum256([]byte(input))
	return "bloom-" + hex.EncodeToString(hash[:8])
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

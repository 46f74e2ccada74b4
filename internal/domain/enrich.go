package domain

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// Yield categories, lowest to highest.
const (
	YieldVeryLow   = "very_low"
	YieldLow       = "low"
	YieldMedium    = "medium"
	YieldGood      = "good"
	YieldExcellent = "excellent"
)

const (
	optimalYieldTempMin   = 18.0
	optimalYieldTempMax   = 25.0
	fullDurationDays      = 120.0
	unknownDurationFactor = 0.5
	highConfidenceAbove   = 0.6
)

// TemperatureSummary describes temperatures over an event's rise period.
type TemperatureSummary struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Mean        float64   `json:"avg_temp"`
	Max         float64   `json:"max_temp"`
	Min         float64   `json:"min_temp"`
	Source      string    `json:"source"`
	Kind        DataKind  `json:"kind"`
}

// TemperatureSource returns a temperature summary over a date range.
type TemperatureSource interface {
	PeriodTemperature(ctx context.Context, loc Location, from, to time.Time) (TemperatureSummary, error)
}

// YieldPrediction is a rough yield estimate for a bloom event.
type YieldPrediction struct {
	Percent           float64 `json:"estimated_yield_percent"`
	Category          string  `json:"yield_category"`
	Confidence        string  `json:"confidence"`
	TemperatureFactor float64 `json:"temperature_factor"`
	DurationFactor    float64 `json:"duration_factor"`
}

// EventEnrichment is the optional weather context attached to a bloom event.
// When the temperature lookup failed Available is false, Note explains why,
// and the other fields are empty.
type EventEnrichment struct {
	Available     bool                `json:"available"`
	Temperature   *TemperatureSummary `json:"temperature,omitempty"`
	Yield         *YieldPrediction    `json:"yield_prediction,omitempty"`
	WeatherImpact string              `json:"weather_impact"`
	Note          string              `json:"note,omitempty"`
}

// EnrichEvents attaches weather context to each event in turn. A failed
// lookup marks that event's enrichment unavailable and moves on; the
// returned slice always has the same length as events.
func EnrichEvents(ctx context.Context, events []BloomEvent, loc Location, temps TemperatureSource, logger *slog.Logger) []BloomEvent {
	out := make([]BloomEvent, len(events))
	for i, ev := range events {
		out[i] = ev
		if temps == nil {
			out[i].Enrichment = unavailable("no temperature source configured")
			continue
		}

		summary, err := temps.PeriodTemperature(ctx, loc, ev.OnsetDate, ev.PeakDate)
		if err != nil {
			logger.Warn("event temperature lookup failed",
				"event_id", ev.ID,
				"onset", ev.OnsetDate.Format(DateLayout),
				"peak", ev.PeakDate.Format(DateLayout),
				"error", err,
			)
			out[i].Enrichment = unavailable("temperature data unavailable: " + err.Error())
			continue
		}

		yield := PredictYield(ev, summary.Mean)
		out[i].Enrichment = &EventEnrichment{
			Available:     true,
			Temperature:   &summary,
			Yield:         &yield,
			WeatherImpact: AssessWeatherImpact(summary.Mean),
		}
	}
	return out
}

func unavailable(note string) *EventEnrichment {
	return &EventEnrichment{
		Available:     false,
		WeatherImpact: "Data unavailable",
		Note:          note,
	}
}

// PredictYield estimates relative yield from event amplitude, duration,
// reliability and the mean temperature of the rise period.
func PredictYield(ev BloomEvent, meanTemp float64) YieldPrediction {
	tempFactor := 1.0
	switch {
	case meanTemp < optimalYieldTempMin:
		tempFactor = 0.7 + 0.3*(meanTemp/optimalYieldTempMin)
	case meanTemp > optimalYieldTempMax:
		tempFactor = math.Max(0.3, 1-(meanTemp-optimalYieldTempMax)/20)
	}

	durationFactor := unknownDurationFactor
	if ev.DurationDays != nil && *ev.DurationDays > 0 {
		durationFactor = math.Min(1, float64(*ev.DurationDays)/fullDurationDays)
	}

	percent := ev.Amplitude * 100 * tempFactor * durationFactor * ev.Reliability

	confidence := "Medium"
	if ev.Reliability > highConfidenceAbove {
		confidence = "High"
	}

	return YieldPrediction{
		Percent:           percent,
		Category:          yieldCategory(percent),
		Confidence:        confidence,
		TemperatureFactor: tempFactor,
		DurationFactor:    durationFactor,
	}
}

func yieldCategory(percent float64) string {
	switch {
	case percent < 15:
		return YieldVeryLow
	case percent < 30:
		return YieldLow
	case percent < 50:
		return YieldMedium
	case percent < 70:
		return YieldGood
	default:
		return YieldExcellent
	}
}

// AssessWeatherImpact describes how the mean temperature affects growth.
func AssessWeatherImpact(meanTemp float64) string {
	switch {
	case meanTemp < 10:
		return "Extreme cold: development may be delayed"
	case meanTemp < 15:
		return "Low temperatures: slow growth"
	case meanTemp <= 25:
		return "Optimal growing conditions"
	case meanTemp <= 30:
		return "Moderate heat: monitor water stress"
	case meanTemp <= 35:
		return "Heat stress: irrigation is critical"
	default:
		return "Extreme heat: high crop risk"
	}
}

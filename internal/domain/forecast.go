package domain

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Defaults for daily records with missing readings.
const (
	defaultNDVI        = 0.5
	defaultTemperature = 20.0
	defaultHumidity    = 70.0

	minTrendRecords   = 3
	maxTrendRecords   = 10
	minProjectedNDVI  = 0.1
	maxProjectedNDVI  = 0.9
	highRiskThreshold = 0.7
)

// DailyRecord is one day of inputs for a risk timeline. Nil readings take
// defaults; forecast records have their NDVI projected from history.
type DailyRecord struct {
	Date         time.Time `json:"date"`
	NDVI         *float64  `json:"ndvi,omitempty"`
	Temperature  *float64  `json:"temperature,omitempty"`
	Humidity     *float64  `json:"humidity,omitempty"`
	ThermalUnits *float64  `json:"accumulated_gdd,omitempty"`
}

func (r DailyRecord) ndvi() float64 { return valueOr(r.NDVI, defaultNDVI) }

// ForecastSeries scores every historical record as observed and every
// forecast record as a forecast, in input order.
func (s *Scorer) ForecastSeries(historical, forecast []DailyRecord, crop string) []RiskResult {
	return s.ForecastSeriesWithTrend(historical, historical, forecast, crop)
}

// ForecastSeriesWithTrend is ForecastSeries with forecast NDVI projected from
// trend rather than from historical. Pass the raw observations as trend when
// historical holds daily values interpolated between sparse composites.
func (s *Scorer) ForecastSeriesWithTrend(historical, trend, forecast []DailyRecord, crop string) []RiskResult {
	results := make([]RiskResult, 0, len(historical)+len(forecast))
	for _, r := range historical {
		results = append(results, s.Score(RiskInput{
			Date:         r.Date,
			Crop:         crop,
			NDVI:         r.ndvi(),
			Temperature:  valueOr(r.Temperature, defaultTemperature),
			Humidity:     valueOr(r.Humidity, defaultHumidity),
			ThermalUnits: r.ThermalUnits,
		}))
	}
	for _, r := range forecast {
		results = append(results, s.Score(RiskInput{
			Date:         r.Date,
			Crop:         crop,
			NDVI:         EstimateFutureNDVI(trend, r.Date),
			Temperature:  valueOr(r.Temperature, defaultTemperature),
			Humidity:     valueOr(r.Humidity, defaultHumidity),
			ThermalUnits: r.ThermalUnits,
			IsForecast:   true,
		}))
	}
	return results
}

// EstimateFutureNDVI projects NDVI at target from the linear trend of the
// last ten historical records, clamped to [0.1, 0.9]. With fewer than three
// records it returns 0.5.
func EstimateFutureNDVI(historical []DailyRecord, target time.Time) float64 {
	projected, ok := projectNDVI(historical, target)
	if !ok {
		return defaultNDVI
	}
	return clamp(projected, minProjectedNDVI, maxProjectedNDVI)
}

// projectNDVI fits a least-squares slope per day over the recent records and
// extends it from the last value to target. The result is not clamped.
func projectNDVI(historical []DailyRecord, target time.Time) (float64, bool) {
	if len(historical) < minTrendRecords {
		return 0, false
	}
	recent := historical[max(0, len(historical)-maxTrendRecords):]
	first := recent[0].Date
	last := recent[len(recent)-1]

	xs := make([]float64, len(recent))
	ys := make([]float64, len(recent))
	for i, r := range recent {
		xs[i] = float64(DaysBetween(first, r.Date))
		ys[i] = r.ndvi()
	}

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		slope = 0
	}
	return last.ndvi() + slope*float64(DaysBetween(last.Date, target)), true
}

// TimelineSummary counts the days of a risk timeline by kind.
type TimelineSummary struct {
	TotalDays      int `json:"total_days"`
	HistoricalDays int `json:"historical_days"`
	ForecastDays   int `json:"forecast_days"`
	HighRiskDays   int `json:"high_risk_days"`
}

// SummarizeTimeline counts historical, forecast and high-risk (score ≥ 0.7) days.
func SummarizeTimeline(results []RiskResult) TimelineSummary {
	sum := TimelineSummary{TotalDays: len(results)}
	for _, r := range results {
		if r.IsForecast {
			sum.ForecastDays++
		} else {
			sum.HistoricalDays++
		}
		if r.Score >= highRiskThreshold {
			sum.HighRiskDays++
		}
	}
	return sum
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

package meteomatics

import (
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// missingValue marks a parameter Meteomatics could not compute.
const missingValue = -999

// Meteomatics API response types.

type response struct {
	Status string          `json:"status"`
	Data   []parameterData `json:"data"`
}

type parameterData struct {
	Parameter   string       `json:"parameter"`
	Coordinates []coordinate `json:"coordinates"`
}

type coordinate struct {
	Lat   float64     `json:"lat"`
	Lon   float64     `json:"lon"`
	Dates []dateValue `json:"dates"`
}

type dateValue struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// series returns the valid samples of each parameter at the first coordinate.
func (r response) series() map[string][]dateValue {
	out := make(map[string][]dateValue, len(r.Data))
	for _, d := range r.Data {
		if len(d.Coordinates) == 0 {
			continue
		}
		for _, dv := range d.Coordinates[0].Dates {
			if dv.Value == missingValue {
				continue
			}
			out[d.Parameter] = append(out[d.Parameter], dv)
		}
	}
	return out
}

// firstValues returns the first valid sample of each parameter.
func (r response) firstValues() map[string]float64 {
	out := make(map[string]float64)
	for param, samples := range r.series() {
		out[param] = samples[0].Value
	}
	return out
}

// byDate groups samples by calendar date.
func (r response) byDate() map[time.Time]map[string]float64 {
	out := make(map[time.Time]map[string]float64)
	for param, samples := range r.series() {
		for _, s := range samples {
			day := domain.CalendarDate(s.Date)
			if out[day] == nil {
				out[day] = make(map[string]float64)
			}
			out[day][param] = s.Value
		}
	}
	return out
}

func summarize(from, to time.Time, means, maxes, mins []dateValue) domain.TemperatureSummary {
	meanValues := values(means)
	s := domain.TemperatureSummary{
		PeriodStart: from,
		PeriodEnd:   to,
		Mean:        stat.Mean(meanValues, nil),
		Max:         floats.Max(meanValues),
		Min:         floats.Min(meanValues),
		Source:      providerName,
		Kind:        domain.KindObserved,
	}
	if len(maxes) > 0 {
		s.Max = floats.Max(values(maxes))
	}
	if len(mins) > 0 {
		s.Min = floats.Min(values(mins))
	}
	return s
}

func values(samples []dateValue) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Value
	}
	return out
}

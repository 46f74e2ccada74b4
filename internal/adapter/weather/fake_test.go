package weather

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
)

var (
	valencia  = domain.Location{Name: "valencia", Lat: 39.4699, Lon: -0.3763}
	testNow   = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	errOutage = errors.New("provider outage")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider returns canned responses and counts calls.
type fakeProvider struct {
	name        string
	reading     domain.WeatherReading
	forecast    []domain.ForecastDay
	summary     domain.TemperatureSummary
	err         error
	summaryErr  error
	mu          sync.Mutex
	currentHits int
	forecastHit int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Current(ctx context.Context, _ domain.Location) (domain.WeatherReading, error) {
	f.mu.Lock()
	f.currentHits++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.WeatherReading{}, err
	}
	if f.err != nil {
		return domain.WeatherReading{}, f.err
	}
	return f.reading, nil
}

func (f *fakeProvider) Forecast(ctx context.Context, _ domain.Location, days int) ([]domain.ForecastDay, error) {
	f.mu.Lock()
	f.forecastHit++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.forecast[:min(days, len(f.forecast))], nil
}

func (f *fakeProvider) calls() (current, forecast int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentHits, f.forecastHit
}

// fakeTemperatureProvider also summarizes past temperatures.
type fakeTemperatureProvider struct {
	*fakeProvider
}

func (f fakeTemperatureProvider) PeriodTemperature(ctx context.Context, _ domain.Location, from, to time.Time) (domain.TemperatureSummary, error) {
	if err := ctx.Err(); err != nil {
		return domain.TemperatureSummary{}, err
	}
	if f.summaryErr != nil {
		return domain.TemperatureSummary{}, f.summaryErr
	}
	s := f.summary
	s.PeriodStart, s.PeriodEnd = from, to
	return s, nil
}

func newFake(name string, temp float64, kind domain.DataKind) *fakeProvider {
	day := domain.CalendarDate(testNow)
	forecast := make([]domain.ForecastDay, 5)
	for i := range forecast {
		forecast[i] = domain.ForecastDay{
			Date:       day.AddDate(0, 0, i),
			TempMax:    temp + 5,
			TempMin:    temp - 5,
			TempAvg:    temp,
			Humidity:   60,
			Irrigation: domain.IrrigationLow,
			Provider:   name,
			Kind:       kind,
		}
	}
	return &fakeProvider{
		name: name,
		reading: domain.WeatherReading{
			Provider:    name,
			ObservedAt:  testNow,
			Temperature: temp,
			Humidity:    60,
			Pressure:    1015,
			Kind:        kind,
		},
		forecast: forecast,
		summary:  domain.TemperatureSummary{Mean: temp, Max: temp + 5, Min: temp - 5, Source: name, Kind: kind},
	}
}

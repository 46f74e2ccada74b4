// Package pipeline orchestrates the analyses served by the service: it pulls
// NDVI and weather from their sources, runs the domain detector and scorer,
// and hands finished results to an optional publisher.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/couchcryptid/bloom-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// MaxForecastDays is the furthest horizon any analysis looks ahead.
const MaxForecastDays = 14

const (
	defaultYears     = 3
	maxYears         = 10
	minSeasonPoints  = 4
	defaultQueueSize = 256
)

var (
	// ErrInvalidRequest is returned for out-of-range request parameters.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidRange is returned when a date range is reversed or reaches
	// beyond the forecast horizon.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrNoSeries is returned when the NDVI source has no data for a period.
	ErrNoSeries = errors.New("no NDVI data for the requested period")
)

// NDVISource supplies vegetation index series for a location.
type NDVISource interface {
	NDVISeries(ctx context.Context, loc domain.Location, crop string, from, to time.Time) ([]domain.Point, error)
}

// HistorySource supplies past daily weather for risk timelines.
type HistorySource interface {
	DailyWeather(ctx context.Context, loc domain.Location, from, to time.Time) ([]domain.WeatherReading, error)
}

// WeatherService resolves weather for a provider mode with fallbacks.
type WeatherService interface {
	Current(ctx context.Context, mode string, loc domain.Location) (domain.WeatherReading, error)
	Forecast(ctx context.Context, mode string, loc domain.Location, days int) ([]domain.ForecastDay, error)
	Compare(ctx context.Context, loc domain.Location) (domain.SourceComparison, error)
	domain.TemperatureSource
}

// ResultPublisher delivers finished analyses downstream.
type ResultPublisher interface {
	Publish(ctx context.Context, results []domain.AnalysisResult) error
}

// Options wire the analyzer's sources. History and Publisher are optional.
type Options struct {
	NDVI        NDVISource
	Weather     WeatherService
	History     HistorySource
	Publisher   ResultPublisher
	Detector    domain.Detector
	Scorer      *domain.Scorer
	Home        domain.Location
	Regions     []domain.Location
	DefaultCrop string
	QueueSize   int
}

// Analyzer runs phenology, risk and irrigation analyses.
type Analyzer struct {
	ndvi        NDVISource
	weather     WeatherService
	history     HistorySource
	publisher   ResultPublisher
	detector    domain.Detector
	scorer      *domain.Scorer
	home        domain.Location
	regions     []domain.Location
	defaultCrop string
	queue       chan domain.AnalysisResult
	clock       clockwork.Clock
	metrics     *observability.Metrics
	logger      *slog.Logger
	ready       atomic.Bool
}

// New creates an Analyzer. Results are queued for publishing only when a
// publisher is set.
func New(opts Options, clk clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Analyzer {
	a := &Analyzer{
		ndvi:        opts.NDVI,
		weather:     opts.Weather,
		history:     opts.History,
		publisher:   opts.Publisher,
		detector:    opts.Detector,
		scorer:      opts.Scorer,
		home:        opts.Home,
		regions:     opts.Regions,
		defaultCrop: opts.DefaultCrop,
		clock:       clk,
		metrics:     metrics,
		logger:      logger,
	}
	if a.defaultCrop == "" {
		a.defaultCrop = domain.DefaultCropKey
	}
	if a.publisher != nil {
		size := opts.QueueSize
		if size <= 0 {
			size = defaultQueueSize
		}
		a.queue = make(chan domain.AnalysisResult, size)
	}
	return a
}

// CheckReadiness returns nil once an analysis has completed, or an error
// describing why the service is not yet ready.
func (a *Analyzer) CheckReadiness(_ context.Context) error {
	if !a.ready.Load() {
		return errors.New("analyzer has not completed an analysis yet")
	}
	return nil
}

// Warmup scores today's risk at the home location so the first request does
// not pay for cold provider caches.
func (a *Analyzer) Warmup(ctx context.Context) error {
	if _, err := a.CurrentRisk(ctx, RiskRequest{}); err != nil {
		return fmt.Errorf("warm-up analysis: %w", err)
	}
	a.logger.Info("analyzer warmed up", "region", a.home.Name, "crop", a.defaultCrop)
	return nil
}

// PhenologyRequest selects the crop, location and number of seasons to analyze.
type PhenologyRequest struct {
	Crop      string
	Location  domain.Location
	Years     int
	Enrich    bool
	Anomalies bool
}

// PhenologyAnalysis is the outcome of bloom detection over the latest season.
type PhenologyAnalysis struct {
	Crop             string                `json:"crop"`
	Location         domain.Location       `json:"location"`
	Year             int                   `json:"year"`
	YearsAnalyzed    int                   `json:"years_analyzed"`
	Series           []domain.Point        `json:"ndvi_series"`
	Smoothed         []float64             `json:"ndvi_smoothed"`
	HistoricPeakDays []int                 `json:"historic_peak_days,omitempty"`
	Events           []domain.BloomEvent   `json:"events"`
	Anomalies        []domain.AnomalyAlert `json:"anomalies,omitempty"`
}

// AnalyzePhenology fetches NDVI for the requested number of years up to
// today, takes reference peaks from earlier years and detects bloom events in
// the latest season with enough samples.
func (a *Analyzer) AnalyzePhenology(ctx context.Context, req PhenologyRequest) (_ PhenologyAnalysis, err error) {
	start := time.Now()
	defer func() { a.observe(domain.ResultPhenology, start, err) }()

	years, err := yearsOrDefault(req.Years)
	if err != nil {
		return PhenologyAnalysis{}, err
	}
	crop, loc := a.crop(req.Crop), a.location(req.Location)
	today := domain.Today(a.clock)
	first := today.Year() - years + 1

	series, err := a.ndvi.NDVISeries(ctx, loc, crop, yearStart(first), today)
	if err != nil {
		return PhenologyAnalysis{}, fmt.Errorf("fetch ndvi series: %w", err)
	}
	year, season := latestSeason(series, first, today.Year())
	if season == nil {
		return PhenologyAnalysis{}, fmt.Errorf("%w: %d-%d", ErrNoSeries, first, today.Year())
	}

	var historic []int
	for y := first; y < year; y++ {
		if doy, ok := domain.PeakDayOfYear(domain.PointsForYear(series, y)); ok {
			historic = append(historic, doy)
		}
	}

	events := a.detector.Detect(season, historic)
	if req.Enrich {
		events = domain.EnrichEvents(ctx, events, loc, a.weather, a.logger)
		for _, ev := range events {
			if ev.Enrichment != nil && !ev.Enrichment.Available {
				a.metrics.EnrichmentFailures.Inc()
			}
		}
	}
	a.metrics.EventsDetected.Add(float64(len(events)))

	out := PhenologyAnalysis{
		Crop:             crop,
		Location:         loc,
		Year:             year,
		YearsAnalyzed:    years,
		Series:           season,
		Smoothed:         a.detector.Smoother().Smooth(domain.SeriesValues(season)),
		HistoricPeakDays: historic,
		Events:           events,
	}
	if req.Anomalies {
		out.Anomalies = domain.DetectAnomalies(series, domain.AnomalyThresholdsFor(crop))
		a.metrics.AnomaliesDetected.Add(float64(len(out.Anomalies)))
	}

	a.logger.Debug("phenology analyzed",
		"crop", crop,
		"region", loc.Name,
		"year", year,
		"events", len(events),
	)
	a.complete(ctx, domain.ResultPhenology, crop, loc, out)
	return out, nil
}

// AnomalyRequest selects the crop, location and years to scan for alerts.
type AnomalyRequest struct {
	Crop     string
	Location domain.Location
	Years    int
}

// AnomalyReport lists vegetation alerts over a multi-year NDVI series.
type AnomalyReport struct {
	Crop       string                   `json:"crop"`
	Location   domain.Location          `json:"location"`
	From       time.Time                `json:"from"`
	To         time.Time                `json:"to"`
	Samples    int                      `json:"samples"`
	Thresholds domain.AnomalyThresholds `json:"thresholds"`
	Alerts     []domain.AnomalyAlert    `json:"alerts"`
}

// Anomalies scans the NDVI series of the requested years for drought, fire
// risk and sudden vegetation changes.
func (a *Analyzer) Anomalies(ctx context.Context, req AnomalyRequest) (_ AnomalyReport, err error) {
	start := time.Now()
	defer func() { a.observe(domain.ResultAnomalies, start, err) }()

	years, err := yearsOrDefault(req.Years)
	if err != nil {
		return AnomalyReport{}, err
	}
	crop, loc := a.crop(req.Crop), a.location(req.Location)
	today := domain.Today(a.clock)
	from := yearStart(today.Year() - years + 1)

	series, err := a.ndvi.NDVISeries(ctx, loc, crop, from, today)
	if err != nil {
		return AnomalyReport{}, fmt.Errorf("fetch ndvi series: %w", err)
	}

	th := domain.AnomalyThresholdsFor(crop)
	out := AnomalyReport{
		Crop:       crop,
		Location:   loc,
		From:       from,
		To:         today,
		Samples:    len(series),
		Thresholds: th,
		Alerts:     domain.DetectAnomalies(series, th),
	}
	a.metrics.AnomaliesDetected.Add(float64(len(out.Alerts)))
	a.complete(ctx, domain.ResultAnomalies, crop, loc, out)
	return out, nil
}

// CurrentWeather returns conditions at loc (the home region when zero).
func (a *Analyzer) CurrentWeather(ctx context.Context, mode string, loc domain.Location) (domain.WeatherReading, error) {
	return a.weather.Current(ctx, mode, a.location(loc))
}

// WeatherForecast returns between 1 and MaxForecastDays daily forecasts.
func (a *Analyzer) WeatherForecast(ctx context.Context, mode string, loc domain.Location, days int) ([]domain.ForecastDay, error) {
	if days < 1 || days > MaxForecastDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d, got %d", ErrInvalidRequest, MaxForecastDays, days)
	}
	return a.weather.Forecast(ctx, mode, a.location(loc), days)
}

// CompareSources reports how closely the two weather providers agree at loc.
func (a *Analyzer) CompareSources(ctx context.Context, loc domain.Location) (domain.SourceComparison, error) {
	return a.weather.Compare(ctx, a.location(loc))
}

// Crops lists the supported crop keys.
func (a *Analyzer) Crops() []string { return a.scorer.Crops().Keys() }

// Regions lists the locations covered by the risk map.
func (a *Analyzer) Regions() []domain.Location { return a.regions }

func (a *Analyzer) observe(kind string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	a.metrics.AnalysesTotal.WithLabelValues(kind, outcome).Inc()
	a.metrics.AnalysisDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// complete marks the analyzer ready and queues the result for publishing.
func (a *Analyzer) complete(ctx context.Context, kind, crop string, loc domain.Location, payload any) {
	a.ready.Store(true)
	a.enqueue(ctx, kind, crop, loc, payload)
}

func (a *Analyzer) crop(c string) string {
	if c == "" {
		return a.defaultCrop
	}
	return c
}

func (a *Analyzer) location(loc domain.Location) domain.Location {
	if loc.Lat == 0 && loc.Lon == 0 {
		return a.home
	}
	return loc
}

func yearsOrDefault(years int) (int, error) {
	switch {
	case years == 0:
		return defaultYears, nil
	case years < 1 || years > maxYears:
		return 0, fmt.Errorf("%w: years must be between 1 and %d, got %d", ErrInvalidRequest, maxYears, years)
	}
	return years, nil
}

func yearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// latestSeason returns the most recent year in [first, last] with enough
// samples for detection.
func latestSeason(series []domain.Point, first, last int) (int, []domain.Point) {
	for y := last; y >= first; y-- {
		if pts := domain.PointsForYear(series, y); len(pts) >= minSeasonPoints {
			return y, pts
		}
	}
	return 0, nil
}

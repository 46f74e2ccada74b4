package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
)

const (
	// ndviLookbackDays covers four 16-day composites before the scored date.
	ndviLookbackDays     = 64
	defaultTimelinePast  = 30
	defaultTimelineAhead = 7
	defaultIrrigationDay = 7
)

// RiskRequest asks for the flowering risk of a crop on one date. A zero Date
// means today; a zero Location means the home region.
type RiskRequest struct {
	Crop     string
	Date     time.Time
	Location domain.Location
	Mode     string
}

// RiskInputs are the readings a risk score was computed from.
type RiskInputs struct {
	NDVI            float64         `json:"ndvi"`
	Temperature     float64         `json:"temperature"`
	Humidity        float64         `json:"humidity"`
	WeatherProvider string          `json:"weather_provider"`
	WeatherKind     domain.DataKind `json:"weather_kind"`
}

// RiskAssessment is a scored date with the inputs behind it.
type RiskAssessment struct {
	Location domain.Location   `json:"location"`
	Risk     domain.RiskResult `json:"risk"`
	Inputs   RiskInputs        `json:"input_data"`
}

// CurrentRisk scores one date. Dates after today are scored as forecasts
// from projected NDVI and the weather forecast.
func (a *Analyzer) CurrentRisk(ctx context.Context, req RiskRequest) (_ RiskAssessment, err error) {
	start := time.Now()
	defer func() { a.observe(domain.ResultRisk, start, err) }()

	crop, loc := a.crop(req.Crop), a.location(req.Location)
	today := domain.Today(a.clock)
	date := today
	if !req.Date.IsZero() {
		date = domain.CalendarDate(req.Date)
	}
	if domain.DaysBetween(today, date) > MaxForecastDays {
		return RiskAssessment{}, fmt.Errorf("%w: %s is more than %d days ahead", ErrInvalidRange, date.Format(domain.DateLayout), MaxForecastDays)
	}

	out, err := a.assess(ctx, crop, loc, date, today, req.Mode)
	if err != nil {
		return RiskAssessment{}, err
	}
	a.complete(ctx, domain.ResultRisk, crop, loc, out)
	return out, nil
}

func (a *Analyzer) assess(ctx context.Context, crop string, loc domain.Location, date, today time.Time, mode string) (RiskAssessment, error) {
	forecast := date.After(today)
	ndviEnd := date
	if forecast {
		ndviEnd = today
	}

	series, err := a.ndvi.NDVISeries(ctx, loc, crop, ndviEnd.AddDate(0, 0, -ndviLookbackDays), ndviEnd)
	if err != nil {
		return RiskAssessment{}, fmt.Errorf("fetch ndvi series: %w", err)
	}
	if len(series) == 0 {
		return RiskAssessment{}, fmt.Errorf("%w: %s", ErrNoSeries, ndviEnd.Format(domain.DateLayout))
	}

	var in RiskInputs
	if forecast {
		in.NDVI = domain.EstimateFutureNDVI(ndviRecords(series), date)
		days, err := a.weather.Forecast(ctx, mode, loc, domain.DaysBetween(today, date)+1)
		if err != nil {
			return RiskAssessment{}, fmt.Errorf("fetch forecast: %w", err)
		}
		day, ok := forecastOn(days, date)
		if !ok {
			day = domain.SeasonalForecast(date, 1)[0]
		}
		in.Temperature, in.Humidity = day.TempAvg, day.Humidity
		in.WeatherProvider, in.WeatherKind = day.Provider, day.Kind
	} else {
		in.NDVI = series[len(series)-1].Value
		r, err := a.weather.Current(ctx, mode, loc)
		if err != nil {
			return RiskAssessment{}, fmt.Errorf("fetch current weather: %w", err)
		}
		in.Temperature, in.Humidity = r.Temperature, r.Humidity
		in.WeatherProvider, in.WeatherKind = r.Provider, r.Kind
	}

	res := a.scorer.Score(domain.RiskInput{
		Date:        date,
		Crop:        crop,
		NDVI:        in.NDVI,
		Temperature: in.Temperature,
		Humidity:    in.Humidity,
		IsForecast:  forecast,
	})
	return RiskAssessment{Location: loc, Risk: res, Inputs: in}, nil
}

// TimelineRequest asks for daily risk over [Start, End]. Zero dates default
// to 30 days back and 7 days ahead.
type TimelineRequest struct {
	Crop     string
	Start    time.Time
	End      time.Time
	Location domain.Location
	Mode     string
}

// RiskTimeline is a day-by-day risk series with its summary.
type RiskTimeline struct {
	Crop     string                 `json:"crop"`
	Location domain.Location        `json:"location"`
	Start    time.Time              `json:"start_date"`
	End      time.Time              `json:"end_date"`
	Today    time.Time              `json:"today"`
	Results  []domain.RiskResult    `json:"timeline"`
	Summary  domain.TimelineSummary `json:"summary"`
}

// RiskTimeline scores every day in the range: days up to today from NDVI and
// past weather, later days from the forecast with projected NDVI.
func (a *Analyzer) RiskTimeline(ctx context.Context, req TimelineRequest) (_ RiskTimeline, err error) {
	start := time.Now()
	defer func() { a.observe(domain.ResultTimeline, start, err) }()

	crop, loc := a.crop(req.Crop), a.location(req.Location)
	today := domain.Today(a.clock)
	from, to := today.AddDate(0, 0, -defaultTimelinePast), today.AddDate(0, 0, defaultTimelineAhead)
	if !req.Start.IsZero() {
		from = domain.CalendarDate(req.Start)
	}
	if !req.End.IsZero() {
		to = domain.CalendarDate(req.End)
	}
	if to.Before(from) {
		return RiskTimeline{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, to.Format(domain.DateLayout), from.Format(domain.DateLayout))
	}
	if domain.DaysBetween(today, to) > MaxForecastDays {
		return RiskTimeline{}, fmt.Errorf("%w: end %s is more than %d days ahead", ErrInvalidRange, to.Format(domain.DateLayout), MaxForecastDays)
	}

	histEnd := minDate(to, today)
	series, err := a.ndvi.NDVISeries(ctx, loc, crop, minDate(from, today).AddDate(0, 0, -ndviLookbackDays), histEnd)
	if err != nil {
		return RiskTimeline{}, fmt.Errorf("fetch ndvi series: %w", err)
	}
	historical, err := a.historicalRecords(ctx, series, loc, from, histEnd)
	if err != nil {
		return RiskTimeline{}, err
	}
	forecast, err := a.forecastRecords(ctx, req.Mode, loc, maxDate(from, today.AddDate(0, 0, 1)), to, today)
	if err != nil {
		return RiskTimeline{}, err
	}

	// Forecast NDVI follows the composites themselves; the daily historical
	// records hold the last composite flat up to today.
	results := a.scorer.ForecastSeriesWithTrend(historical, ndviRecords(series), forecast, crop)
	out := RiskTimeline{
		Crop:     crop,
		Location: loc,
		Start:    from,
		End:      to,
		Today:    today,
		Results:  results,
		Summary:  domain.SummarizeTimeline(results),
	}
	a.complete(ctx, domain.ResultTimeline, crop, loc, out)
	return out, nil
}

// historicalRecords builds one record per day in [from, to] with NDVI
// interpolated between the series composites and, when a history source is
// set, the day's simulated weather. An empty range yields no records.
func (a *Analyzer) historicalRecords(ctx context.Context, series []domain.Point, loc domain.Location, from, to time.Time) ([]domain.DailyRecord, error) {
	if to.Before(from) {
		return nil, nil
	}

	weather := make(map[time.Time]domain.WeatherReading)
	if a.history != nil {
		days, err := a.history.DailyWeather(ctx, loc, from, to)
		if err != nil {
			a.logger.Warn("past weather unavailable, using defaults", "region", loc.Name, "error", err)
		}
		for _, d := range days {
			weather[domain.CalendarDate(d.ObservedAt)] = d
		}
	}

	records := make([]domain.DailyRecord, 0, domain.DaysBetween(from, to)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		rec := domain.DailyRecord{Date: d}
		if v, ok := interpolateNDVI(series, d); ok {
			rec.NDVI = ptr(v)
		}
		if w, ok := weather[d]; ok {
			rec.Temperature = ptr(w.Temperature)
			rec.Humidity = ptr(w.Humidity)
		}
		records = append(records, rec)
	}
	return records, nil
}

// forecastRecords builds one record per day in [from, to] from the weather
// forecast. Days the forecast does not cover keep default readings.
func (a *Analyzer) forecastRecords(ctx context.Context, mode string, loc domain.Location, from, to, today time.Time) ([]domain.DailyRecord, error) {
	if to.Before(from) {
		return nil, nil
	}

	days, err := a.weather.Forecast(ctx, mode, loc, domain.DaysBetween(today, to)+1)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}

	records := make([]domain.DailyRecord, 0, domain.DaysBetween(from, to)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		rec := domain.DailyRecord{Date: d}
		if f, ok := forecastOn(days, d); ok {
			rec.Temperature = ptr(f.TempAvg)
			rec.Humidity = ptr(f.Humidity)
		}
		records = append(records, rec)
	}
	return records, nil
}

// RegionRisk is one entry of a risk map. Err is set when the region could
// not be scored.
type RegionRisk struct {
	Region domain.Location    `json:"region"`
	Risk   *domain.RiskResult `json:"risk,omitempty"`
	Inputs *RiskInputs        `json:"input_data,omitempty"`
	Err    string             `json:"error,omitempty"`
}

// RiskMap is the risk of one crop on one date across the configured regions.
type RiskMap struct {
	Crop    string       `json:"crop"`
	Date    time.Time    `json:"date"`
	Regions []RegionRisk `json:"regions"`
}

// RiskMap scores every configured region in turn. A region that fails is
// reported with its error; the map fails only when the context ends.
func (a *Analyzer) RiskMap(ctx context.Context, crop string, date time.Time, mode string) (_ RiskMap, err error) {
	start := time.Now()
	defer func() { a.observe(domain.ResultRiskMap, start, err) }()

	crop = a.crop(crop)
	today := domain.Today(a.clock)
	if date.IsZero() {
		date = today
	}
	date = domain.CalendarDate(date)
	if domain.DaysBetween(today, date) > MaxForecastDays {
		return RiskMap{}, fmt.Errorf("%w: %s is more than %d days ahead", ErrInvalidRange, date.Format(domain.DateLayout), MaxForecastDays)
	}

	out := RiskMap{Crop: crop, Date: date, Regions: make([]RegionRisk, 0, len(a.regions))}
	for _, region := range a.regions {
		as, err := a.assess(ctx, crop, region, date, today, mode)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return RiskMap{}, ctxErr
			}
			a.logger.Warn("region risk failed", "region", region.Name, "error", err)
			out.Regions = append(out.Regions, RegionRisk{Region: region, Err: err.Error()})
			continue
		}
		out.Regions = append(out.Regions, RegionRisk{Region: region, Risk: &as.Risk, Inputs: &as.Inputs})
	}
	a.complete(ctx, domain.ResultRiskMap, crop, a.home, out)
	return out, nil
}

// IrrigationRequest asks for an irrigation plan over Days forecast days
// (default 7).
type IrrigationRequest struct {
	Crop     string
	Location domain.Location
	Mode     string
	Days     int
}

// Irrigation combines current conditions and the forecast into a crop water
// balance and schedule.
func (a *Analyzer) Irrigation(ctx context.Context, req IrrigationRequest) (_ domain.IrrigationPlan, err error) {
	start := time.Now()
	defer func() { a.observe(domain.ResultIrrigation, start, err) }()

	days := req.Days
	if days == 0 {
		days = defaultIrrigationDay
	}
	if days < 1 || days > MaxForecastDays {
		return domain.IrrigationPlan{}, fmt.Errorf("%w: days must be between 1 and %d, got %d", ErrInvalidRequest, MaxForecastDays, days)
	}
	crop, loc := a.crop(req.Crop), a.location(req.Location)

	current, err := a.weather.Current(ctx, req.Mode, loc)
	if err != nil {
		return domain.IrrigationPlan{}, fmt.Errorf("fetch current weather: %w", err)
	}
	forecast, err := a.weather.Forecast(ctx, req.Mode, loc, days)
	if err != nil {
		return domain.IrrigationPlan{}, fmt.Errorf("fetch forecast: %w", err)
	}

	plan := domain.PlanIrrigation(current, forecast, crop)
	a.complete(ctx, domain.ResultIrrigation, crop, loc, plan)
	return plan, nil
}

func ndviRecords(series []domain.Point) []domain.DailyRecord {
	records := make([]domain.DailyRecord, len(series))
	for i, p := range series {
		records[i] = domain.DailyRecord{Date: p.Date, NDVI: ptr(p.Value)}
	}
	return records
}

// interpolateNDVI linearly interpolates the series at date. Dates past the
// last sample hold its value; dates before the first have no value.
func interpolateNDVI(series []domain.Point, date time.Time) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		p := series[i]
		if p.Date.After(date) {
			continue
		}
		if i == len(series)-1 || p.Date.Equal(date) {
			return p.Value, true
		}
		next := series[i+1]
		span := float64(domain.DaysBetween(p.Date, next.Date))
		frac := float64(domain.DaysBetween(p.Date, date)) / span
		return p.Value + (next.Value-p.Value)*frac, true
	}
	return 0, false
}

func forecastOn(days []domain.ForecastDay, date time.Time) (domain.ForecastDay, bool) {
	for _, d := range days {
		if domain.CalendarDate(d.Date).Equal(date) {
			return d, true
		}
	}
	return domain.ForecastDay{}, false
}

func ptr(v float64) *float64 { return &v }

func minDate(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func maxDate(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

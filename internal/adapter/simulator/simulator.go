// Package simulator generates deterministic NDVI and weather series for a
// Mediterranean agricultural region. It stands in for satellite products and
// serves as the last weather provider before climatology.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const providerName = "simulator"

// NDVICadenceDays is the spacing of generated NDVI samples (MODIS composites).
const NDVICadenceDays = 16

// ErrInvalidRange is returned when the end of a requested range precedes its start.
var ErrInvalidRange = errors.New("end date before start date")

const (
	minNDVI         = 0.1
	maxNDVI         = 0.9
	minHumidity     = 20.0
	maxHumidity     = 95.0
	minEventFactor  = 0.3
	maxEventFactor  = 2.0
	rainProbability = 0.1
	meanRainMM      = 0.5
	diurnalRange    = 5.0
)

// climate holds the annual parameters of the Valencia plain.
var climate = struct {
	tempAvg       float64
	tempAmplitude float64
	humidityAvg   float64
	ndviBase      float64
}{
	tempAvg:       18.5,
	tempAmplitude: 12,
	humidityAvg:   65,
	ndviBase:      0.45,
}

// Simulator produces reproducible series: the same seed, location and date
// always yield the same values.
type Simulator struct {
	seed   uint64
	home   domain.Location
	clock  clockwork.Clock
	crops  map[string]cropCycle
	events []climateEvent
}

// New creates a simulator. home is used when a caller passes a zero location.
func New(seed uint64, home domain.Location, clk clockwork.Clock) *Simulator {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Simulator{
		seed:   seed,
		home:   home,
		clock:  clk,
		crops:  defaultCropCycles(),
		events: defaultClimateEvents(),
	}
}

func (s *Simulator) Name() string { return providerName }

// NDVISeries returns NDVI samples every 16 days from from through to.
func (s *Simulator) NDVISeries(ctx context.Context, loc domain.Location, crop string, from, to time.Time) ([]domain.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from, to = domain.CalendarDate(from), domain.CalendarDate(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s..%s", ErrInvalidRange, from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	}
	loc = s.location(loc)

	var points []domain.Point
	for d := from; !d.After(to); d = d.AddDate(0, 0, NDVICadenceDays) {
		points = append(points, domain.Point{Date: d, Value: s.ndvi(loc, crop, d)})
	}
	return points, nil
}

func (s *Simulator) ndvi(loc domain.Location, crop string, date time.Time) float64 {
	doy := date.YearDay()
	seasonal := climate.ndviBase + 0.15*math.Sin(float64(doy)/365*2*math.Pi-math.Pi/4)
	combined := (seasonal + s.cropNDVI(crop, doy)) * s.eventFactor(date, channelNDVI)

	spatial := 1 + 0.05*math.Sin(loc.Lat*math.Pi/180)*math.Cos(loc.Lon*math.Pi/180)
	v := combined*spatial + s.normal(loc, date, "ndvi", 0.03)
	return clamp(v, minNDVI, maxNDVI)
}

// day is one simulated day of weather.
type day struct {
	date          time.Time
	temperature   float64
	humidity      float64
	pressure      float64
	windSpeed     float64
	precipitation float64
	et0           float64
}

func (s *Simulator) day(loc domain.Location, date time.Time) day {
	doy := float64(date.YearDay())
	baseTemp := climate.tempAvg + climate.tempAmplitude*math.Sin(doy/365*2*math.Pi-math.Pi/2)
	baseHumidity := climate.humidityAvg - (baseTemp-climate.tempAvg)*1.5

	temp := baseTemp*s.eventFactor(date, channelTemperature) + s.normal(loc, date, "temperature", 2)
	humidity := baseHumidity*s.eventFactor(date, channelHumidity) + s.normal(loc, date, "humidity", 5)
	humidity = clamp(humidity, minHumidity, maxHumidity)

	wind := math.Max(0, 8+s.normal(loc, date, "wind", 4))
	var precip float64
	if s.uniform(loc, date, "rain") < rainProbability {
		precip = distuv.Exponential{Rate: 1 / meanRainMM}.Quantile(s.uniform(loc, date, "rain_amount"))
	}

	return day{
		date:          date,
		temperature:   temp,
		humidity:      humidity,
		pressure:      1013 + s.normal(loc, date, "pressure", 10) + 5*math.Sin(doy/365*2*math.Pi),
		windSpeed:     wind,
		precipitation: precip,
		et0:           domain.ReferenceET(temp, humidity, wind),
	}
}

// Current returns today's simulated conditions at loc.
func (s *Simulator) Current(ctx context.Context, loc domain.Location) (domain.WeatherReading, error) {
	if err := ctx.Err(); err != nil {
		return domain.WeatherReading{}, err
	}
	now := s.clock.Now()
	d := s.day(s.location(loc), domain.CalendarDate(now))
	return domain.WeatherReading{
		Provider:           providerName,
		ObservedAt:         now,
		Temperature:        d.temperature,
		Humidity:           d.humidity,
		Precipitation:      d.precipitation,
		WindSpeed:          d.windSpeed,
		WindDirection:      270,
		Pressure:           d.pressure,
		Evapotranspiration: d.et0,
		Kind:               domain.KindEstimated,
	}, nil
}

// Forecast returns days simulated daily forecasts starting today.
func (s *Simulator) Forecast(ctx context.Context, loc domain.Location, days int) ([]domain.ForecastDay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc = s.location(loc)
	today := domain.Today(s.clock)

	out := make([]domain.ForecastDay, 0, max(days, 0))
	for i := 0; i < days; i++ {
		d := s.day(loc, today.AddDate(0, 0, i))
		out = append(out, domain.ForecastDay{
			Date:                     d.date,
			TempMax:                  d.temperature + diurnalRange,
			TempMin:                  d.temperature - diurnalRange,
			TempAvg:                  d.temperature,
			Humidity:                 d.humidity,
			PrecipitationProbability: rainChance(d),
			PrecipitationMM:          d.precipitation,
			WindSpeed:                d.windSpeed,
			ET0:                      d.et0,
			Irrigation:               assessIrrigationNeed(d),
			Provider:                 providerName,
			Kind:                     domain.KindEstimated,
		})
	}
	return out, nil
}

// PeriodTemperature summarizes simulated daily temperatures over [from, to].
func (s *Simulator) PeriodTemperature(ctx context.Context, loc domain.Location, from, to time.Time) (domain.TemperatureSummary, error) {
	if err := ctx.Err(); err != nil {
		return domain.TemperatureSummary{}, err
	}
	from, to = domain.CalendarDate(from), domain.CalendarDate(to)
	if to.Before(from) {
		from, to = to, from
	}
	loc = s.location(loc)

	var temps []float64
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		temps = append(temps, s.day(loc, d).temperature)
	}
	return domain.TemperatureSummary{
		PeriodStart: from,
		PeriodEnd:   to,
		Mean:        stat.Mean(temps, nil),
		Max:         floats.Max(temps),
		Min:         floats.Min(temps),
		Source:      providerName,
		Kind:        domain.KindEstimated,
	}, nil
}

// DailyWeather returns one simulated reading per day over [from, to].
func (s *Simulator) DailyWeather(ctx context.Context, loc domain.Location, from, to time.Time) ([]domain.WeatherReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from, to = domain.CalendarDate(from), domain.CalendarDate(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s..%s", ErrInvalidRange, from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	}
	loc = s.location(loc)

	var out []domain.WeatherReading
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		d := s.day(loc, date)
		out = append(out, domain.WeatherReading{
			Provider:           providerName,
			ObservedAt:         date,
			Temperature:        d.temperature,
			Humidity:           d.humidity,
			Precipitation:      d.precipitation,
			WindSpeed:          d.windSpeed,
			WindDirection:      270,
			Pressure:           d.pressure,
			Evapotranspiration: d.et0,
			Kind:               domain.KindEstimated,
		})
	}
	return out, nil
}

func (s *Simulator) location(loc domain.Location) domain.Location {
	if loc.Lat == 0 && loc.Lon == 0 {
		return s.home
	}
	return loc
}

// uniform draws a value in (0, 1) determined by the seed, location, date
// and channel.
func (s *Simulator) uniform(loc domain.Location, date time.Time, channel string) float64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%.4f,%.4f", date.Format(domain.DateLayout), channel, loc.Lat, loc.Lon)
	u := rand.New(rand.NewPCG(s.seed, h.Sum64())).Float64()
	return clamp(u, 1e-9, 1-1e-9)
}

func (s *Simulator) normal(loc domain.Location, date time.Time, channel string, sigma float64) float64 {
	return distuv.Normal{Mu: 0, Sigma: sigma}.Quantile(s.uniform(loc, date, channel))
}

// rainChance maps simulated rainfall to a forecast probability.
func rainChance(d day) float64 {
	if d.precipitation > 0 {
		return math.Min(100, 60+d.precipitation*20)
	}
	return clamp(d.humidity-60, 0, 40)
}

// assessIrrigationNeed grades net water demand adjusted for the season.
func assessIrrigationNeed(d day) domain.IrrigationNeed {
	summer := 1 + 0.5*math.Sin(float64(d.date.YearDay()-90)/365*2*math.Pi)
	demand := (d.et0 - d.precipitation) * summer
	switch {
	case demand > 6:
		return domain.IrrigationHigh
	case demand > 4:
		return domain.IrrigationMedium
	case demand > 2:
		return domain.IrrigationLow
	default:
		return domain.IrrigationNone
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

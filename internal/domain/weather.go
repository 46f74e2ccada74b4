package domain

import (
	"context"
	"math"
	"strings"
	"time"
)

// DataKind tags whether a value came from a real provider or was estimated.
type DataKind string

const (
	KindObserved  DataKind = "observed"
	KindEstimated DataKind = "estimated"
)

// Fusion weights for temperature: the local station and the global model.
const (
	localTempWeight  = 0.4
	globalTempWeight = 0.6

	defaultSoilTemperature = 18.0
	defaultSoilMoisture    = 50.0
)

// WeatherReading is a point-in-time weather observation.
type WeatherReading struct {
	Provider           string    `json:"provider"`
	ObservedAt         time.Time `json:"observed_at"`
	Temperature        float64   `json:"temperature"`
	Humidity           float64   `json:"humidity"`
	Precipitation      float64   `json:"precipitation"`
	WindSpeed          float64   `json:"wind_speed"`
	WindDirection      float64   `json:"wind_direction"`
	Pressure           float64   `json:"pressure"`
	SoilTemperature    *float64  `json:"soil_temperature,omitempty"`
	SoilMoisture       *float64  `json:"soil_moisture,omitempty"`
	Evapotranspiration float64   `json:"evapotranspiration"`
	Kind               DataKind  `json:"kind"`
	Sources            []string  `json:"sources,omitempty"`
}

// ForecastDay is one day of a provider forecast.
type ForecastDay struct {
	Date                     time.Time      `json:"date"`
	TempMax                  float64        `json:"temp_max"`
	TempMin                  float64        `json:"temp_min"`
	TempAvg                  float64        `json:"temp_avg"`
	Humidity                 float64        `json:"humidity"`
	PrecipitationProbability float64        `json:"precipitation_probability"`
	PrecipitationMM          float64        `json:"precipitation_mm"`
	WindSpeed                float64        `json:"wind_speed"`
	ET0                      float64        `json:"et0"`
	Irrigation               IrrigationNeed `json:"irrigation_need"`
	Provider                 string         `json:"provider"`
	Kind                     DataKind       `json:"kind"`
}

// WeatherProvider fetches current conditions and daily forecasts.
type WeatherProvider interface {
	Name() string

	// Current returns the latest observation near loc.
	Current(ctx context.Context, loc Location) (WeatherReading, error)

	// Forecast returns up to days daily forecasts starting today.
	Forecast(ctx context.Context, loc Location, days int) ([]ForecastDay, error)
}

// FuseReadings combines a local station reading with a global model reading.
func FuseReadings(local, global WeatherReading) WeatherReading {
	fused := WeatherReading{
		Provider:           "fusion",
		ObservedAt:         latest(local.ObservedAt, global.ObservedAt),
		Temperature:        local.Temperature*localTempWeight + global.Temperature*globalTempWeight,
		Humidity:           local.Humidity,
		Precipitation:      local.Precipitation,
		WindSpeed:          global.WindSpeed,
		WindDirection:      global.WindDirection,
		Pressure:           (local.Pressure + global.Pressure) / 2,
		Evapotranspiration: math.Max(local.Evapotranspiration, global.Evapotranspiration),
		Kind:               fusedKind(local.Kind, global.Kind),
		Sources:            []string{local.Provider, global.Provider},
	}

	soilTemp := defaultSoilTemperature
	switch {
	case global.SoilTemperature != nil:
		soilTemp = *global.SoilTemperature
	case local.SoilTemperature != nil:
		soilTemp = *local.SoilTemperature
	}
	fused.SoilTemperature = &soilTemp

	soilMoisture := defaultSoilMoisture
	if global.SoilMoisture != nil {
		soilMoisture = *global.SoilMoisture
	}
	fused.SoilMoisture = &soilMoisture

	return fused
}

// FuseForecasts merges two forecasts day by day, up to days entries or the
// shorter of the two.
func FuseForecasts(local, global []ForecastDay, days int) []ForecastDay {
	n := min(len(local), len(global), days)
	out := make([]ForecastDay, 0, max(n, 0))
	for i := 0; i < n; i++ {
		l, g := local[i], global[i]
		out = append(out, ForecastDay{
			Date:                     l.Date,
			TempMax:                  l.TempMax*localTempWeight + g.TempMax*globalTempWeight,
			TempMin:                  l.TempMin*localTempWeight + g.TempMin*globalTempWeight,
			TempAvg:                  l.TempAvg*localTempWeight + g.TempAvg*globalTempWeight,
			Humidity:                 (l.Humidity + g.Humidity) / 2,
			PrecipitationProbability: l.PrecipitationProbability,
			PrecipitationMM:          g.PrecipitationMM,
			WindSpeed:                g.WindSpeed,
			ET0:                      math.Max(l.ET0, g.ET0),
			Irrigation:               MoreUrgent(l.Irrigation, g.Irrigation),
			Provider:                 "fusion",
			Kind:                     fusedKind(l.Kind, g.Kind),
		})
	}
	return out
}

// SeasonalFallback returns climatological conditions for the season of now,
// used when no provider answered.
func SeasonalFallback(now time.Time) WeatherReading {
	r := WeatherReading{
		Provider:   "seasonal_fallback",
		ObservedAt: now,
		Pressure:   1013.2,
		WindSpeed:  2.0,
		Kind:       KindEstimated,
	}
	switch now.Month() {
	case time.June, time.July, time.August:
		r.Temperature, r.Humidity, r.Precipitation = 28, 55, 0.1
	case time.December, time.January, time.February:
		r.Temperature, r.Humidity, r.Precipitation = 15, 75, 2.0
	default:
		r.Temperature, r.Humidity, r.Precipitation = 21, 65, 0.8
	}
	r.Evapotranspiration = ReferenceET(r.Temperature, r.Humidity, r.WindSpeed)
	return r
}

// SeasonalForecast repeats the seasonal fallback for days consecutive dates
// from start, with a ±5 °C daily range.
func SeasonalForecast(start time.Time, days int) []ForecastDay {
	out := make([]ForecastDay, 0, max(days, 0))
	for i := 0; i < days; i++ {
		date := CalendarDate(start).AddDate(0, 0, i)
		r := SeasonalFallback(date)
		rainChance := math.Min(100, r.Precipitation*25)
		out = append(out, ForecastDay{
			Date:                     date,
			TempMax:                  r.Temperature + 5,
			TempMin:                  r.Temperature - 5,
			TempAvg:                  r.Temperature,
			Humidity:                 r.Humidity,
			PrecipitationProbability: rainChance,
			PrecipitationMM:          r.Precipitation,
			WindSpeed:                r.WindSpeed,
			ET0:                      r.Evapotranspiration,
			Irrigation:               AssessIrrigationNeed(r.Temperature, r.Humidity, r.WindSpeed, rainChance),
			Provider:                 r.Provider,
			Kind:                     KindEstimated,
		})
	}
	return out
}

// Source agreement levels.
const (
	ConsistencyHigh   = "high"
	ConsistencyMedium = "medium"
	ConsistencyLow    = "low"
)

// SourceComparison reports how closely two providers agree on temperature.
type SourceComparison struct {
	Local                 WeatherReading `json:"local"`
	Global                WeatherReading `json:"global"`
	TemperatureDifference float64        `json:"temperature_difference"`
	Consistency           string         `json:"consistency"`
}

// CompareReadings grades agreement: under 2 °C is high, under 5 °C medium.
func CompareReadings(local, global WeatherReading) SourceComparison {
	diff := math.Abs(local.Temperature - global.Temperature)
	c := SourceComparison{Local: local, Global: global, TemperatureDifference: diff}
	switch {
	case diff < 2:
		c.Consistency = ConsistencyHigh
	case diff < 5:
		c.Consistency = ConsistencyMedium
	default:
		c.Consistency = ConsistencyLow
	}
	return c
}

// IrrigationNeed is an irrigation urgency level.
type IrrigationNeed string

const (
	IrrigationCritical IrrigationNeed = "CRITICAL"
	IrrigationHigh     IrrigationNeed = "HIGH"
	IrrigationMedium   IrrigationNeed = "MEDIUM"
	IrrigationLow      IrrigationNeed = "LOW"
	IrrigationNone     IrrigationNeed = "NONE"
)

// Priority ranks the level from 1 (none) to 5 (critical). Unknown values rank 0.
func (n IrrigationNeed) Priority() int {
	switch n {
	case IrrigationCritical:
		return 5
	case IrrigationHigh:
		return 4
	case IrrigationMedium:
		return 3
	case IrrigationLow:
		return 2
	case IrrigationNone:
		return 1
	}
	return 0
}

// ParseIrrigationNeed reads a level from provider text such as
// "HIGH - Immediate irrigation needed". MODERATE maps to MEDIUM and MINIMAL
// to NONE.
func ParseIrrigationNeed(s string) IrrigationNeed {
	word := strings.ToUpper(strings.TrimSpace(s))
	if i := strings.IndexAny(word, " -"); i >= 0 {
		word = word[:i]
	}
	switch word {
	case "CRITICAL":
		return IrrigationCritical
	case "HIGH":
		return IrrigationHigh
	case "MEDIUM", "MODERATE":
		return IrrigationMedium
	case "LOW":
		return IrrigationLow
	default:
		return IrrigationNone
	}
}

// MoreUrgent returns the higher-priority of two levels.
func MoreUrgent(a, b IrrigationNeed) IrrigationNeed {
	if b.Priority() > a.Priority() {
		return b
	}
	return a
}

// ReferenceET estimates reference evapotranspiration (mm/day) with a
// simplified Penman-Monteith using a temperature-based radiation estimate.
func ReferenceET(temp, humidity, wind float64) float64 {
	es := 0.6108 * math.Exp(17.27*temp/(temp+237.3))
	delta := 4098 * es / math.Pow(temp+237.3, 2)
	const gamma = 0.665
	radiation := math.Max(0, 15+0.5*temp)
	ea := es * humidity / 100

	et0 := (0.408*delta*radiation + gamma*900/(temp+273)*wind*(es-ea)) /
		(delta + gamma*(1+0.34*wind))
	return math.Max(0, et0)
}

// AssessIrrigationNeed grades irrigation urgency from daily conditions.
func AssessIrrigationNeed(temp, humidity, wind, precipProbability float64) IrrigationNeed {
	et0 := ReferenceET(temp, humidity, wind)
	heatStress := temp > 30
	dry := humidity < 40
	windy := wind > 4
	noRain := precipProbability < 20

	switch {
	case et0 > 6 && heatStress && dry:
		return IrrigationHigh
	case et0 > 4 && (heatStress || dry || windy) && noRain:
		return IrrigationMedium
	case et0 > 2 && noRain:
		return IrrigationLow
	case precipProbability > 60:
		return IrrigationNone
	default:
		return IrrigationLow
	}
}

func fusedKind(a, b DataKind) DataKind {
	if a == KindObserved && b == KindObserved {
		return KindObserved
	}
	return KindEstimated
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

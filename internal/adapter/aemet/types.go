package aemet

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
)

const (
	defaultHumidity  = 60.0
	defaultWindSpeed = 2.0
	kmhPerMS         = 3.6
)

var errMissingTemperature = errors.New("missing temperature range")

// AEMET API response types.

type envelope struct {
	Descripcion string `json:"descripcion"`
	Estado      int    `json:"estado"`
	Datos       string `json:"datos"`
}

type observation struct {
	Time          string   `json:"fint"`
	Temperature   optFloat `json:"ta"`
	Humidity      optFloat `json:"hr"`
	Precipitation optFloat `json:"prec"`
	WindSpeed     optFloat `json:"vv"` // m/s
	WindDirection optFloat `json:"dv"`
	Pressure      optFloat `json:"pres"`
	SoilTemp      optFloat `json:"tss"`
}

type forecastDocument struct {
	Prediction struct {
		Days []forecastDay `json:"dia"`
	} `json:"prediccion"`
}

type forecastDay struct {
	Date        string        `json:"fecha"`
	RainChance  []periodValue `json:"probPrecipitacion"`
	Temperature minMax        `json:"temperatura"`
	Humidity    minMax        `json:"humedadRelativa"`
	Wind        []wind        `json:"viento"`
}

type periodValue struct {
	Value  optFloat `json:"value"`
	Period string   `json:"periodo"`
}

type minMax struct {
	Max optFloat `json:"maxima"`
	Min optFloat `json:"minima"`
}

type wind struct {
	Direction string   `json:"direccion"`
	Speed     optFloat `json:"velocidad"` // km/h
	Period    string   `json:"periodo"`
}

// optFloat decodes AEMET numbers, which arrive as JSON numbers, strings
// (sometimes with a decimal comma) or are absent. Unparseable values such as
// "Ip" (trace precipitation) leave it invalid.
type optFloat struct {
	Value float64
	Valid bool
}

func (f *optFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = optFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		*f = optFloat{}
		return nil
	}
	*f = optFloat{Value: v, Valid: true}
	return nil
}

func (f optFloat) or(def float64) float64 {
	if f.Valid {
		return f.Value
	}
	return def
}

// latestObservation returns the last observation carrying a temperature.
// AEMET lists hourly observations oldest first.
func latestObservation(obs []observation) (observation, bool) {
	for i := len(obs) - 1; i >= 0; i-- {
		if obs[i].Temperature.Valid {
			return obs[i], true
		}
	}
	return observation{}, false
}

func (o observation) toReading(now time.Time) domain.WeatherReading {
	temp := o.Temperature.Value
	humidity := o.Humidity.or(defaultHumidity)
	windSpeed := o.WindSpeed.or(defaultWindSpeed)

	r := domain.WeatherReading{
		Provider:           providerName,
		ObservedAt:         parseObservationTime(o.Time, now),
		Temperature:        temp,
		Humidity:           humidity,
		Precipitation:      o.Precipitation.or(0),
		WindSpeed:          windSpeed,
		WindDirection:      o.WindDirection.or(0),
		Pressure:           o.Pressure.or(0),
		Evapotranspiration: domain.ReferenceET(temp, humidity, windSpeed),
		Kind:               domain.KindObserved,
	}
	if o.SoilTemp.Valid {
		soil := o.SoilTemp.Value
		r.SoilTemperature = &soil
	}
	return r
}

func parseObservationTime(s string, fallback time.Time) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05-0700", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

func (d forecastDay) toForecastDay() (domain.ForecastDay, error) {
	dateStr := d.Date
	if len(dateStr) > len(domain.DateLayout) {
		dateStr = dateStr[:len(domain.DateLayout)]
	}
	date, err := domain.ParseDate(dateStr)
	if err != nil {
		return domain.ForecastDay{}, err
	}
	if !d.Temperature.Max.Valid || !d.Temperature.Min.Valid {
		return domain.ForecastDay{}, errMissingTemperature
	}

	tMax, tMin := d.Temperature.Max.Value, d.Temperature.Min.Value
	avg := (tMax + tMin) / 2
	humidity := defaultHumidity
	if d.Humidity.Max.Valid && d.Humidity.Min.Valid {
		humidity = (d.Humidity.Max.Value + d.Humidity.Min.Value) / 2
	}
	windSpeed := d.windSpeed()
	rainChance := d.maxRainChance()

	return domain.ForecastDay{
		Date:                     date,
		TempMax:                  tMax,
		TempMin:                  tMin,
		TempAvg:                  avg,
		Humidity:                 humidity,
		PrecipitationProbability: rainChance,
		WindSpeed:                windSpeed,
		ET0:                      domain.ReferenceET(avg, humidity, windSpeed),
		Irrigation:               domain.AssessIrrigationNeed(avg, humidity, windSpeed, rainChance),
		Provider:                 providerName,
		Kind:                     domain.KindObserved,
	}, nil
}

// maxRainChance is the highest precipitation probability of any period.
func (d forecastDay) maxRainChance() float64 {
	best := 0.0
	for _, p := range d.RainChance {
		if p.Value.Valid && p.Value.Value > best {
			best = p.Value.Value
		}
	}
	return best
}

// windSpeed converts the first reported wind speed from km/h to m/s.
func (d forecastDay) windSpeed() float64 {
	for _, w := range d.Wind {
		if w.Speed.Valid {
			return w.Speed.Value / kmhPerMS
		}
	}
	return defaultWindSpeed
}

package meteomatics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/couchcryptid/bloom-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	providerName = "meteomatics"
	timeLayout   = "2006-01-02T15:04:05Z"
)

// ErrNoData is returned when a response lacks a required parameter.
var ErrNoData = errors.New("meteomatics returned no data")

// Parameters requested for current conditions.
var currentParams = []string{
	"t_2m:C",
	"relative_humidity_2m:p",
	"precip_1h:mm",
	"wind_speed_10m:ms",
	"wind_dir_10m:d",
	"msl_pressure:hPa",
	"t_soil_0cm:C",
	"soil_moisture_0_to_10cm:p",
	"evapotranspiration_1h:mm",
}

// Parameters requested for daily forecasts.
var forecastParams = []string{
	"t_max_2m_24h:C",
	"t_min_2m_24h:C",
	"t_mean_2m_24h:C",
	"relative_humidity_mean_2m_24h:p",
	"precip_24h:mm",
	"wind_speed_mean_10m_24h:ms",
	"evapotranspiration_24h:mm",
	"prob_precip_24h:p",
}

var periodParams = []string{"t_mean_2m_24h:C", "t_max_2m_24h:C", "t_min_2m_24h:C"}

// Options configure a Client.
type Options struct {
	Username string
	Password string
	BaseURL  string
	Timeout  time.Duration
}

// Client implements domain.WeatherProvider and domain.TemperatureSource using
// the Meteomatics time-series API.
type Client struct {
	username   string
	password   string
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Meteomatics client.
func NewClient(opts Options, clk clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		username: opts.Username,
		password: opts.Password,
		baseURL:  opts.BaseURL,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		clock:   clk,
		metrics: metrics,
		logger:  logger,
	}
}

func (c *Client) Name() string { return providerName }

// Current returns model conditions at loc for the current time.
func (c *Client) Current(ctx context.Context, loc domain.Location) (domain.WeatherReading, error) {
	now := c.clock.Now().UTC().Truncate(time.Hour)
	resp, err := c.query(ctx, "current", now.Format(timeLayout), currentParams, loc)
	if err != nil {
		return domain.WeatherReading{}, err
	}

	values := resp.firstValues()
	temp, ok := values["t_2m:C"]
	if !ok {
		return domain.WeatherReading{}, fmt.Errorf("t_2m: %w", ErrNoData)
	}

	r := domain.WeatherReading{
		Provider:           providerName,
		ObservedAt:         now,
		Temperature:        temp,
		Humidity:           valueOr(values, "relative_humidity_2m:p", 60),
		Precipitation:      valueOr(values, "precip_1h:mm", 0),
		WindSpeed:          valueOr(values, "wind_speed_10m:ms", 2),
		WindDirection:      valueOr(values, "wind_dir_10m:d", 270),
		Pressure:           valueOr(values, "msl_pressure:hPa", 1013.2),
		Evapotranspiration: valueOr(values, "evapotranspiration_1h:mm", 0.2),
		Kind:               domain.KindObserved,
	}
	if v, ok := values["t_soil_0cm:C"]; ok {
		r.SoilTemperature = &v
	}
	if v, ok := values["soil_moisture_0_to_10cm:p"]; ok {
		r.SoilMoisture = &v
	}
	return r, nil
}

// Forecast returns up to days daily forecasts at noon UTC, starting today.
// Days without a mean temperature are skipped.
func (c *Client) Forecast(ctx context.Context, loc domain.Location, days int) ([]domain.ForecastDay, error) {
	if days <= 0 {
		return nil, nil
	}
	start := domain.Today(c.clock).Add(12 * time.Hour)
	end := start.AddDate(0, 0, days-1)
	interval := fmt.Sprintf("%s--%s:P1D", start.Format(timeLayout), end.Format(timeLayout))

	resp, err := c.query(ctx, "forecast", interval, forecastParams, loc)
	if err != nil {
		return nil, err
	}

	byDate := resp.byDate()
	out := make([]domain.ForecastDay, 0, days)
	for i := 0; i < days; i++ {
		date := domain.CalendarDate(start.AddDate(0, 0, i))
		values := byDate[date]
		avg, ok := values["t_mean_2m_24h:C"]
		if !ok {
			c.logger.Warn("skipping meteomatics forecast day", "date", date.Format(domain.DateLayout))
			continue
		}
		humidity := valueOr(values, "relative_humidity_mean_2m_24h:p", 60)
		wind := valueOr(values, "wind_speed_mean_10m_24h:ms", 2)
		rainChance := valueOr(values, "prob_precip_24h:p", 20)

		out = append(out, domain.ForecastDay{
			Date:                     date,
			TempMax:                  valueOr(values, "t_max_2m_24h:C", avg),
			TempMin:                  valueOr(values, "t_min_2m_24h:C", avg),
			TempAvg:                  avg,
			Humidity:                 humidity,
			PrecipitationProbability: rainChance,
			PrecipitationMM:          valueOr(values, "precip_24h:mm", 0),
			WindSpeed:                wind,
			ET0:                      valueOr(values, "evapotranspiration_24h:mm", domain.ReferenceET(avg, humidity, wind)),
			Irrigation:               assessIrrigationNeed(avg, humidity, wind, rainChance),
			Provider:                 providerName,
			Kind:                     domain.KindObserved,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("forecast: %w", ErrNoData)
	}
	return out, nil
}

// PeriodTemperature summarizes daily temperatures between from and to inclusive.
func (c *Client) PeriodTemperature(ctx context.Context, loc domain.Location, from, to time.Time) (domain.TemperatureSummary, error) {
	from, to = domain.CalendarDate(from), domain.CalendarDate(to)
	if to.Before(from) {
		from, to = to, from
	}
	interval := fmt.Sprintf("%s--%s:P1D", from.Format(timeLayout), to.Format(timeLayout))

	resp, err := c.query(ctx, "period", interval, periodParams, loc)
	if err != nil {
		return domain.TemperatureSummary{}, err
	}

	series := resp.series()
	means := series["t_mean_2m_24h:C"]
	if len(means) == 0 {
		return domain.TemperatureSummary{}, fmt.Errorf("t_mean_2m_24h: %w", ErrNoData)
	}
	return summarize(from, to, means, series["t_max_2m_24h:C"], series["t_min_2m_24h:C"]), nil
}

// query requests params over the time expression at loc and records metrics.
func (c *Client) query(ctx context.Context, method, timeExpr string, params []string, loc domain.Location) (response, error) {
	start := c.clock.Now()
	resp, err := c.doRequest(ctx, timeExpr, params, loc)
	c.metrics.ProviderAPIDuration.WithLabelValues(providerName, method).Observe(c.clock.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.ProviderRequests.WithLabelValues(providerName, method, outcome).Inc()
	return resp, err
}

func (c *Client) doRequest(ctx context.Context, timeExpr string, params []string, loc domain.Location) (response, error) {
	u := fmt.Sprintf("%s/%s/%s/%.4f,%.4f/json", c.baseURL, timeExpr, strings.Join(params, ","), loc.Lat, loc.Lon)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("meteomatics request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return response{}, fmt.Errorf("meteomatics API error: status %d: %s", resp.StatusCode, body)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return response{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// assessIrrigationNeed grades urgency from an effective temperature that
// accounts for humidity and wind cooling.
func assessIrrigationNeed(temp, humidity, wind, rainChance float64) domain.IrrigationNeed {
	effective := temp + 0.5*(humidity-50)/10 - wind*0.5
	switch {
	case effective > 32 && humidity < 40 && rainChance < 20:
		return domain.IrrigationCritical
	case effective > 28 && humidity < 50 && rainChance < 30:
		return domain.IrrigationHigh
	case effective > 25 && humidity < 60 && rainChance < 40:
		return domain.IrrigationMedium
	case rainChance > 70:
		return domain.IrrigationNone
	default:
		return domain.IrrigationLow
	}
}

func valueOr(values map[string]float64, key string, def float64) float64 {
	if v, ok := values[key]; ok {
		return v
	}
	return def
}

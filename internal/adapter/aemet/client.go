package aemet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/couchcryptid/bloom-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

const providerName = "aemet"

// ErrNoData is returned when AEMET answers without a data URL or with an
// empty payload.
var ErrNoData = errors.New("aemet returned no data")

// Options configure a Client.
type Options struct {
	APIKey       string
	BaseURL      string
	Station      string
	Municipality string
	Timeout      time.Duration
}

// Client implements domain.WeatherProvider using the AEMET OpenData API.
// Observations come from a single station and forecasts from a single
// municipality, so the requested location is only used for logging.
type Client struct {
	apiKey       string
	baseURL      string
	station      string
	municipality string
	httpClient   *http.Client
	clock        clockwork.Clock
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates an AEMET client.
func NewClient(opts Options, clk clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:       opts.APIKey,
		baseURL:      opts.BaseURL,
		station:      opts.Station,
		municipality: opts.Municipality,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		clock:   clk,
		metrics: metrics,
		logger:  logger,
	}
}

func (c *Client) Name() string { return providerName }

// Current returns the most recent observation of the configured station.
func (c *Client) Current(ctx context.Context, loc domain.Location) (domain.WeatherReading, error) {
	var obs []observation
	if err := c.fetch(ctx, "/observacion/convencional/datos/estacion/"+c.station, "current", &obs); err != nil {
		return domain.WeatherReading{}, err
	}
	latest, ok := latestObservation(obs)
	if !ok {
		return domain.WeatherReading{}, fmt.Errorf("station %s: %w", c.station, ErrNoData)
	}

	reading := latest.toReading(c.clock.Now())
	c.logger.Debug("aemet observation",
		"station", c.station,
		"location", loc.Name,
		"observed_at", reading.ObservedAt,
		"temperature", reading.Temperature,
	)
	return reading, nil
}

// Forecast returns up to days daily forecasts for the configured municipality.
func (c *Client) Forecast(ctx context.Context, _ domain.Location, days int) ([]domain.ForecastDay, error) {
	var docs []forecastDocument
	if err := c.fetch(ctx, "/prediccion/especifica/municipio/diaria/"+c.municipality, "forecast", &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("municipality %s: %w", c.municipality, ErrNoData)
	}

	raw := docs[0].Prediction.Days
	out := make([]domain.ForecastDay, 0, min(days, len(raw)))
	for _, d := range raw {
		if len(out) >= days {
			break
		}
		day, err := d.toForecastDay()
		if err != nil {
			c.logger.Warn("skipping aemet forecast day", "fecha", d.Date, "error", err)
			continue
		}
		out = append(out, day)
	}
	return out, nil
}

// fetch performs AEMET's two-step request: the API answers with an envelope
// whose "datos" field points to the actual payload, which is decoded into out.
func (c *Client) fetch(ctx context.Context, endpoint, method string, out any) error {
	start := c.clock.Now()
	err := c.doFetch(ctx, endpoint, out)
	c.metrics.ProviderAPIDuration.WithLabelValues(providerName, method).Observe(c.clock.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.ProviderRequests.WithLabelValues(providerName, method, outcome).Inc()
	return err
}

func (c *Client) doFetch(ctx context.Context, endpoint string, out any) error {
	var env envelope
	if err := c.getJSON(ctx, c.baseURL+endpoint, true, &env); err != nil {
		return err
	}
	if env.Datos == "" {
		return fmt.Errorf("%w: estado %d: %s", ErrNoData, env.Estado, env.Descripcion)
	}
	return c.getJSON(ctx, env.Datos, false, out)
}

func (c *Client) getJSON(ctx context.Context, url string, authenticated bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if authenticated {
		req.Header.Set("api_key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("aemet request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("aemet API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

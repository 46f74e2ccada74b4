package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/couchcryptid/bloom-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Weather modes.
const (
	ModeFusion      = "fusion"
	ModeAuto        = "auto"
	ModeAEMET       = "aemet"
	ModeMeteomatics = "meteomatics"
	ModeSimulator   = "simulator"
)

var (
	// ErrUnknownMode is returned for a mode other than the Mode constants.
	ErrUnknownMode = errors.New("unknown weather mode")

	// ErrNotConfigured is returned when a mode needs a provider that is not set up.
	ErrNotConfigured = errors.New("weather provider not configured")

	// ErrNoTemperatureSource is returned when no provider can summarize past temperatures.
	ErrNoTemperatureSource = errors.New("no temperature source available")
)

// Options wire providers into a Coordinator. Local is the national station
// network, Global the model-based provider, Fallback the estimator used when
// both fail. Any of them may be nil.
type Options struct {
	Local       domain.WeatherProvider
	Global      domain.WeatherProvider
	Fallback    domain.WeatherProvider
	DefaultMode string
}

// Coordinator selects and fuses weather providers. Failed providers degrade
// to the survivor, then the fallback estimator, then seasonal climatology,
// so Current and Forecast only fail on an unknown mode or a cancelled context.
type Coordinator struct {
	local       domain.WeatherProvider
	global      domain.WeatherProvider
	fallback    domain.WeatherProvider
	defaultMode string
	clock       clockwork.Clock
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewCoordinator validates the default mode and builds a coordinator.
func NewCoordinator(opts Options, clk clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) (*Coordinator, error) {
	mode := opts.DefaultMode
	if mode == "" {
		mode = ModeFusion
	}
	if !validMode(mode) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	c := &Coordinator{
		local:       opts.Local,
		global:      opts.Global,
		fallback:    opts.Fallback,
		defaultMode: mode,
		clock:       clk,
		metrics:     metrics,
		logger:      logger,
	}
	for _, s := range c.Status().Providers {
		enabled := 0.0
		if s.Configured {
			enabled = 1
		}
		metrics.ProvidersEnabled.WithLabelValues(s.Name).Set(enabled)
	}
	return c, nil
}

func validMode(mode string) bool {
	switch mode {
	case ModeFusion, ModeAuto, ModeAEMET, ModeMeteomatics, ModeSimulator:
		return true
	}
	return false
}

// resolve maps a requested mode to the providers to query. Auto behaves as
// fusion; fusion with a single configured provider uses that one.
func (c *Coordinator) resolve(mode string) (primary, secondary domain.WeatherProvider, err error) {
	if mode == "" {
		mode = c.defaultMode
	}
	switch mode {
	case ModeFusion, ModeAuto:
		return c.local, c.global, nil
	case ModeAEMET:
		return c.local, nil, nil
	case ModeMeteomatics:
		return c.global, nil, nil
	case ModeSimulator:
		return nil, nil, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// Current returns current conditions at loc using mode ("" for the default).
func (c *Coordinator) Current(ctx context.Context, mode string, loc domain.Location) (domain.WeatherReading, error) {
	primary, secondary, err := c.resolve(mode)
	if err != nil {
		return domain.WeatherReading{}, err
	}

	pr, perr := current(ctx, primary, loc)
	sr, serr := current(ctx, secondary, loc)
	switch {
	case perr == nil && serr == nil:
		return domain.FuseReadings(pr, sr), nil
	case perr == nil:
		c.degraded("current", primary, secondary, serr)
		return pr, nil
	case serr == nil:
		c.degraded("current", secondary, primary, perr)
		return sr, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.WeatherReading{}, err
	}

	if r, err := current(ctx, c.fallback, loc); err == nil {
		c.metrics.WeatherFallbacks.WithLabelValues("current", "simulator").Inc()
		return r, nil
	} else if !errors.Is(err, ErrNotConfigured) {
		c.logger.Warn("fallback weather provider failed", "method", "current", "error", err)
	}
	c.metrics.WeatherFallbacks.WithLabelValues("current", "seasonal").Inc()
	return domain.SeasonalFallback(c.clock.Now()), nil
}

// Forecast returns up to days daily forecasts at loc using mode.
func (c *Coordinator) Forecast(ctx context.Context, mode string, loc domain.Location, days int) ([]domain.ForecastDay, error) {
	primary, secondary, err := c.resolve(mode)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, nil
	}

	pf, perr := forecast(ctx, primary, loc, days)
	sf, serr := forecast(ctx, secondary, loc, days)
	if perr == nil && serr == nil {
		if fused := domain.FuseForecasts(pf, sf, days); len(fused) > 0 {
			return fused, nil
		}
	}
	switch {
	case perr == nil && len(pf) > 0:
		c.degraded("forecast", primary, secondary, serr)
		return pf, nil
	case serr == nil && len(sf) > 0:
		c.degraded("forecast", secondary, primary, perr)
		return sf, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if f, err := forecast(ctx, c.fallback, loc, days); err == nil && len(f) > 0 {
		c.metrics.WeatherFallbacks.WithLabelValues("forecast", "simulator").Inc()
		return f, nil
	} else if err != nil && !errors.Is(err, ErrNotConfigured) {
		c.logger.Warn("fallback weather provider failed", "method", "forecast", "error", err)
	}
	c.metrics.WeatherFallbacks.WithLabelValues("forecast", "seasonal").Inc()
	return domain.SeasonalForecast(c.clock.Now(), days), nil
}

// Compare fetches both configured providers and grades their agreement.
func (c *Coordinator) Compare(ctx context.Context, loc domain.Location) (domain.SourceComparison, error) {
	local, err := current(ctx, c.local, loc)
	if err != nil {
		return domain.SourceComparison{}, fmt.Errorf("local provider: %w", err)
	}
	global, err := current(ctx, c.global, loc)
	if err != nil {
		return domain.SourceComparison{}, fmt.Errorf("global provider: %w", err)
	}
	return domain.CompareReadings(local, global), nil
}

// PeriodTemperature summarizes temperatures from the first provider able to,
// trying the global model, the local network and then the fallback.
func (c *Coordinator) PeriodTemperature(ctx context.Context, loc domain.Location, from, to time.Time) (domain.TemperatureSummary, error) {
	var errs []error
	for _, p := range []domain.WeatherProvider{c.global, c.local, c.fallback} {
		src, ok := p.(domain.TemperatureSource)
		if p == nil || !ok {
			continue
		}
		s, err := src.PeriodTemperature(ctx, loc, from, to)
		if err == nil {
			return s, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return domain.TemperatureSummary{}, ErrNoTemperatureSource
	}
	return domain.TemperatureSummary{}, errors.Join(errs...)
}

// degraded records that only one provider answered and logs why.
func (c *Coordinator) degraded(method string, used, missing domain.WeatherProvider, cause error) {
	if missing == nil {
		return
	}
	c.metrics.WeatherFallbacks.WithLabelValues(method, "single").Inc()
	c.logger.Warn("weather provider unavailable, using single source",
		"method", method,
		"used", used.Name(),
		"missing", missing.Name(),
		"error", cause,
	)
}

// ProviderStatus describes one configured provider slot.
type ProviderStatus struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Configured bool   `json:"configured"`
}

// Status is the provider configuration reported by the API.
type Status struct {
	DefaultMode   string           `json:"default_mode"`
	FusionCapable bool             `json:"fusion_capable"`
	Providers     []ProviderStatus `json:"providers"`
}

// Status lists the provider slots and whether each is configured.
func (c *Coordinator) Status() Status {
	return Status{
		DefaultMode:   c.defaultMode,
		FusionCapable: c.local != nil && c.global != nil,
		Providers: []ProviderStatus{
			slot(ModeAEMET, "local", c.local),
			slot(ModeMeteomatics, "global", c.global),
			slot(ModeSimulator, "fallback", c.fallback),
		},
	}
}

func slot(name, role string, p domain.WeatherProvider) ProviderStatus {
	return ProviderStatus{Name: name, Role: role, Configured: p != nil}
}

func current(ctx context.Context, p domain.WeatherProvider, loc domain.Location) (domain.WeatherReading, error) {
	if p == nil {
		return domain.WeatherReading{}, ErrNotConfigured
	}
	return p.Current(ctx, loc)
}

func forecast(ctx context.Context, p domain.WeatherProvider, loc domain.Location, days int) ([]domain.ForecastDay, error) {
	if p == nil {
		return nil, ErrNotConfigured
	}
	return p.Forecast(ctx, loc, days)
}

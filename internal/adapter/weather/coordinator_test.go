package weather

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/couchcryptid/bloom-risk-service/internal/observability"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T, local, global, fallback domain.WeatherProvider, mode string) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(Options{
		Local:       local,
		Global:      global,
		Fallback:    fallback,
		DefaultMode: mode,
	}, clockwork.NewFakeClockAt(testNow), observability.NewMetricsForTesting(), discardLogger())
	require.NoError(t, err)
	return c
}

// provider converts a possibly nil fake into an interface value, keeping nil
// a true nil interface.
func provider(f *fakeProvider) domain.WeatherProvider {
	if f == nil {
		return nil
	}
	return f
}

func TestNewCoordinator_UnknownMode(t *testing.T) {
	_, err := NewCoordinator(Options{DefaultMode: "satellite"},
		clockwork.NewFakeClockAt(testNow), observability.NewMetricsForTesting(), discardLogger())
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestCoordinator_Current(t *testing.T) {
	tests := []struct {
		name         string
		localErr     error
		globalErr    error
		withFallback bool
		mode         string
		wantProvider string
		wantTemp     float64
		wantKind     domain.DataKind
	}{
		{
			name:         "fusion of both",
			mode:         ModeFusion,
			wantProvider: "fusion",
			wantTemp:     20*0.4 + 25*0.6,
			wantKind:     domain.KindObserved,
		},
		{
			name:         "auto behaves as fusion",
			mode:         ModeAuto,
			wantProvider: "fusion",
			wantTemp:     20*0.4 + 25*0.6,
			wantKind:     domain.KindObserved,
		},
		{
			name:         "local survives",
			mode:         ModeFusion,
			globalErr:    errOutage,
			wantProvider: "aemet",
			wantTemp:     20,
			wantKind:     domain.KindObserved,
		},
		{
			name:         "global survives",
			mode:         ModeFusion,
			localErr:     errOutage,
			wantProvider: "meteomatics",
			wantTemp:     25,
			wantKind:     domain.KindObserved,
		},
		{
			name:         "both fail uses fallback",
			mode:         ModeFusion,
			localErr:     errOutage,
			globalErr:    errOutage,
			withFallback: true,
			wantProvider: "simulator",
			wantTemp:     18,
			wantKind:     domain.KindEstimated,
		},
		{
			name:         "both fail without fallback uses climatology",
			mode:         ModeFusion,
			localErr:     errOutage,
			globalErr:    errOutage,
			wantProvider: "seasonal_fallback",
			wantTemp:     21,
			wantKind:     domain.KindEstimated,
		},
		{
			name:         "single provider mode",
			mode:         ModeMeteomatics,
			wantProvider: "meteomatics",
			wantTemp:     25,
			wantKind:     domain.KindObserved,
		},
		{
			name:         "simulator mode",
			mode:         ModeSimulator,
			withFallback: true,
			wantProvider: "simulator",
			wantTemp:     18,
			wantKind:     domain.KindEstimated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := newFake("aemet", 20, domain.KindObserved)
			local.err = tt.localErr
			global := newFake("meteomatics", 25, domain.KindObserved)
			global.err = tt.globalErr
			var fallback *fakeProvider
			if tt.withFallback {
				fallback = newFake("simulator", 18, domain.KindEstimated)
			}
			c := newTestCoordinator(t, local, global, provider(fallback), ModeFusion)

			r, err := c.Current(context.Background(), tt.mode, valencia)
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, r.Provider)
			assert.InDelta(t, tt.wantTemp, r.Temperature, 1e-9)
			assert.Equal(t, tt.wantKind, r.Kind)
		})
	}
}

func TestCoordinator_Current_DefaultMode(t *testing.T) {
	local := newFake("aemet", 20, domain.KindObserved)
	global := newFake("meteomatics", 25, domain.KindObserved)
	c := newTestCoordinator(t, local, global, nil, ModeAEMET)

	r, err := c.Current(context.Background(), "", valencia)
	require.NoError(t, err)
	assert.Equal(t, "aemet", r.Provider)

	cur, fc := global.calls()
	assert.Zero(t, cur+fc, "aemet mode never queries the global model")
}

func TestCoordinator_Current_UnknownMode(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, nil, ModeFusion)
	_, err := c.Current(context.Background(), "radar", valencia)
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestCoordinator_Current_CancelledContext(t *testing.T) {
	c := newTestCoordinator(t,
		newFake("aemet", 20, domain.KindObserved),
		newFake("meteomatics", 25, domain.KindObserved),
		nil, ModeFusion)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Current(ctx, ModeFusion, valencia)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCoordinator_Forecast_Fusion(t *testing.T) {
	local := newFake("aemet", 20, domain.KindObserved)
	global := newFake("meteomatics", 25, domain.KindObserved)
	c := newTestCoordinator(t, local, global, nil, ModeFusion)

	days, err := c.Forecast(context.Background(), "", valencia, 3)
	require.NoError(t, err)
	require.Len(t, days, 3)

	want := domain.FuseForecasts(local.forecast, global.forecast, 3)
	if diff := cmp.Diff(want, days); diff != "" {
		t.Errorf("fused forecast mismatch (-want +got):\n%s", diff)
	}
}

func TestCoordinator_Forecast_Survivor(t *testing.T) {
	local := newFake("aemet", 20, domain.KindObserved)
	local.err = errOutage
	global := newFake("meteomatics", 25, domain.KindObserved)
	c := newTestCoordinator(t, local, global, nil, ModeFusion)

	days, err := c.Forecast(context.Background(), ModeFusion, valencia, 4)
	require.NoError(t, err)
	require.Len(t, days, 4)
	assert.Equal(t, "meteomatics", days[0].Provider)
}

func TestCoordinator_Forecast_Fallbacks(t *testing.T) {
	local := newFake("aemet", 20, domain.KindObserved)
	local.err = errOutage
	global := newFake("meteomatics", 25, domain.KindObserved)
	global.err = errOutage
	sim := newFake("simulator", 18, domain.KindEstimated)

	withSim := newTestCoordinator(t, local, global, sim, ModeFusion)
	days, err := withSim.Forecast(context.Background(), "", valencia, 2)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "simulator", days[0].Provider)

	sim.err = errOutage
	days, err = withSim.Forecast(context.Background(), "", valencia, 6)
	require.NoError(t, err)
	require.Len(t, days, 6, "climatology covers the whole horizon")
	for i, d := range days {
		assert.Equal(t, domain.CalendarDate(testNow).AddDate(0, 0, i), d.Date)
		assert.Equal(t, domain.KindEstimated, d.Kind)
		assert.Equal(t, "seasonal_fallback", d.Provider)
	}
}

func TestCoordinator_Forecast_ZeroDays(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, nil, ModeFusion)
	days, err := c.Forecast(context.Background(), "", valencia, 0)
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestCoordinator_Compare(t *testing.T) {
	local := newFake("aemet", 20, domain.KindObserved)
	global := newFake("meteomatics", 23.5, domain.KindObserved)
	c := newTestCoordinator(t, local, global, nil, ModeFusion)

	cmpResult, err := c.Compare(context.Background(), valencia)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, cmpResult.TemperatureDifference, 1e-9)
	assert.Equal(t, domain.ConsistencyMedium, cmpResult.Consistency)

	missing := newTestCoordinator(t, local, nil, nil, ModeAEMET)
	_, err = missing.Compare(context.Background(), valencia)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestCoordinator_PeriodTemperature(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 10)

	global := fakeTemperatureProvider{newFake("meteomatics", 16, domain.KindObserved)}
	global.summaryErr = errOutage
	sim := fakeTemperatureProvider{newFake("simulator", 14, domain.KindEstimated)}
	c := newTestCoordinator(t, newFake("aemet", 20, domain.KindObserved), global, sim, ModeFusion)

	s, err := c.PeriodTemperature(context.Background(), valencia, from, to)
	require.NoError(t, err)
	assert.Equal(t, "simulator", s.Source, "global failed and the station network has no summaries")
	assert.InDelta(t, 14.0, s.Mean, 1e-9)

	sim.summaryErr = errOutage
	_, err = c.PeriodTemperature(context.Background(), valencia, from, to)
	require.ErrorIs(t, err, errOutage)

	none := newTestCoordinator(t, newFake("aemet", 20, domain.KindObserved), nil, nil, ModeFusion)
	_, err = none.PeriodTemperature(context.Background(), valencia, from, to)
	require.ErrorIs(t, err, ErrNoTemperatureSource)
}

func TestCoordinator_Status(t *testing.T) {
	c := newTestCoordinator(t, newFake("aemet", 20, domain.KindObserved), nil,
		newFake("simulator", 18, domain.KindEstimated), ModeAEMET)

	want := Status{
		DefaultMode:   ModeAEMET,
		FusionCapable: false,
		Providers: []ProviderStatus{
			{Name: ModeAEMET, Role: "local", Configured: true},
			{Name: ModeMeteomatics, Role: "global", Configured: false},
			{Name: ModeSimulator, Role: "fallback", Configured: true},
		},
	}
	if diff := cmp.Diff(want, c.Status()); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}

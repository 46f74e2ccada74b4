package aemet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/couchcryptid/bloom-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey        = "test-key"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var valencia = domain.Location{Name: "valencia", Lat: 39.4699, Lon: -0.3763}

func testClient(baseURL string) *Client {
	return &Client{
		apiKey:       testAPIKey,
		baseURL:      baseURL,
		station:      "8416A",
		municipality: "46250",
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		clock:        clockwork.NewFakeClockAt(time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)),
		metrics:      observability.NewMetricsForTesting(),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// newTwoStepServer serves the AEMET envelope at endpoint and payload at the
// data URL the envelope points to.
func newTwoStepServer(t *testing.T, endpoint, payload string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testAPIKey, r.Header.Get("api_key"))
		w.Header().Set(headerContentType, contentTypeJSON)
		fmt.Fprintf(w, `{"descripcion":"exito","estado":200,"datos":"%s/datos"}`, srv.URL)
	})
	mux.HandleFunc("/datos", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("api_key"), "data URL must not receive the key")
		w.Header().Set(headerContentType, contentTypeJSON)
		fmt.Fprint(w, payload)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Current_UsesLatestObservation(t *testing.T) {
	payload := `[
		{"fint":"2025-05-10T09:00:00+0000","ta":19.1,"hr":70,"prec":0,"vv":2.5,"dv":90,"pres":1014.0},
		{"fint":"2025-05-10T10:00:00+0000","ta":"21,4","hr":65,"prec":"Ip","vv":3.1,"dv":100,"pres":1013.5,"tss":23.2},
		{"fint":"2025-05-10T11:00:00+0000","hr":60}
	]`
	srv := newTwoStepServer(t, "/observacion/convencional/datos/estacion/8416A", payload)
	c := testClient(srv.URL)

	r, err := c.Current(context.Background(), valencia)
	require.NoError(t, err)

	assert.Equal(t, "aemet", r.Provider)
	assert.Equal(t, time.Date(2025, 5, 10, 10, 0, 0, 0, time.UTC), r.ObservedAt)
	assert.InDelta(t, 21.4, r.Temperature, 1e-9)
	assert.InDelta(t, 65.0, r.Humidity, 1e-9)
	assert.InDelta(t, 0.0, r.Precipitation, 1e-9)
	assert.InDelta(t, 3.1, r.WindSpeed, 1e-9)
	assert.InDelta(t, 1013.5, r.Pressure, 1e-9)
	require.NotNil(t, r.SoilTemperature)
	assert.InDelta(t, 23.2, *r.SoilTemperature, 1e-9)
	assert.InDelta(t, domain.ReferenceET(21.4, 65, 3.1), r.Evapotranspiration, 1e-9)
	assert.Equal(t, domain.KindObserved, r.Kind)
}

func TestClient_Current_NoTemperature(t *testing.T) {
	srv := newTwoStepServer(t, "/observacion/convencional/datos/estacion/8416A", `[{"hr":60}]`)
	c := testClient(srv.URL)

	_, err := c.Current(context.Background(), valencia)
	require.ErrorIs(t, err, ErrNoData)
}

func TestClient_Forecast(t *testing.T) {
	payload := `[{"prediccion":{"dia":[
		{"fecha":"2025-05-10T00:00:00","temperatura":{"maxima":26,"minima":14},"humedadRelativa":{"maxima":80,"minima":40},
		 "probPrecipitacion":[{"value":10,"periodo":"00-12"},{"value":35,"periodo":"12-24"}],
		 "viento":[{"direccion":"E","velocidad":18,"periodo":"00-24"}]},
		{"fecha":"2025-05-11T00:00:00","temperatura":{"maxima":null,"minima":15}},
		{"fecha":"2025-05-12T00:00:00","temperatura":{"maxima":30,"minima":18},"probPrecipitacion":[{"value":"","periodo":"00-24"}]},
		{"fecha":"2025-05-13T00:00:00","temperatura":{"maxima":31,"minima":19}}
	]}}]`
	srv := newTwoStepServer(t, "/prediccion/especifica/municipio/diaria/46250", payload)
	c := testClient(srv.URL)

	days, err := c.Forecast(context.Background(), valencia, 2)
	require.NoError(t, err)
	require.Len(t, days, 2, "day without a temperature range is skipped")

	first := days[0]
	assert.Equal(t, time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC), first.Date)
	assert.InDelta(t, 26.0, first.TempMax, 1e-9)
	assert.InDelta(t, 14.0, first.TempMin, 1e-9)
	assert.InDelta(t, 20.0, first.TempAvg, 1e-9)
	assert.InDelta(t, 60.0, first.Humidity, 1e-9)
	assert.InDelta(t, 35.0, first.PrecipitationProbability, 1e-9)
	assert.InDelta(t, 5.0, first.WindSpeed, 1e-9)
	assert.Equal(t, domain.AssessIrrigationNeed(20, 60, 5, 35), first.Irrigation)
	assert.Equal(t, "aemet", first.Provider)

	second := days[1]
	assert.Equal(t, time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC), second.Date)
	assert.InDelta(t, 60.0, second.Humidity, 1e-9, "default humidity")
	assert.InDelta(t, 2.0, second.WindSpeed, 1e-9, "default wind")
	assert.InDelta(t, 0.0, second.PrecipitationProbability, 1e-9)
}

func TestClient_MissingDataURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		fmt.Fprint(w, `{"descripcion":"No hay datos que satisfagan esos criterios","estado":404}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Forecast(context.Background(), valencia, 3)
	require.ErrorIs(t, err, ErrNoData)
	assert.Contains(t, err.Error(), "estado 404")
}

func TestClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "invalid api key")
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Current(context.Background(), valencia)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestClient_ContextCanceled(t *testing.T) {
	srv := newTwoStepServer(t, "/observacion/convencional/datos/estacion/8416A", `[]`)
	c := testClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Current(ctx, valencia)
	require.Error(t, err)
}

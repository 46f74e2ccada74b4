package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/adapter/weather"
	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/couchcryptid/bloom-risk-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestIDHeader carries the ID of the analysis produced by a request.
const RequestIDHeader = "X-Request-ID"

// Analyzer is the analysis surface served under /api/v1. It is implemented
// by *pipeline.Analyzer.
type Analyzer interface {
	sharedobs.ReadinessChecker
	AnalyzePhenology(ctx context.Context, req pipeline.PhenologyRequest) (pipeline.PhenologyAnalysis, error)
	Anomalies(ctx context.Context, req pipeline.AnomalyRequest) (pipeline.AnomalyReport, error)
	CurrentRisk(ctx context.Context, req pipeline.RiskRequest) (pipeline.RiskAssessment, error)
	RiskTimeline(ctx context.Context, req pipeline.TimelineRequest) (pipeline.RiskTimeline, error)
	RiskMap(ctx context.Context, crop string, date time.Time, mode string) (pipeline.RiskMap, error)
	Irrigation(ctx context.Context, req pipeline.IrrigationRequest) (domain.IrrigationPlan, error)
	CurrentWeather(ctx context.Context, mode string, loc domain.Location) (domain.WeatherReading, error)
	WeatherForecast(ctx context.Context, mode string, loc domain.Location, days int) ([]domain.ForecastDay, error)
	CompareSources(ctx context.Context, loc domain.Location) (domain.SourceComparison, error)
	Crops() []string
	Regions() []domain.Location
}

// ProviderReporter describes the configured weather providers.
type ProviderReporter interface {
	Status() weather.Status
}

// Server exposes the analysis API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	analyzer   Analyzer
	providers  ProviderReporter
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api/v1 routes.
func NewServer(addr string, analyzer Analyzer, providers ProviderReporter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		analyzer:  analyzer,
		providers: providers,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(analyzer))
	mux.Handle("GET /metrics", promhttp.Handler())

	api := map[string]http.HandlerFunc{
		"GET /api/v1/crops":               s.handleCrops,
		"GET /api/v1/regions":             s.handleRegions,
		"GET /api/v1/phenology/analyze":   s.handlePhenology,
		"GET /api/v1/phenology/anomalies": s.handleAnomalies,
		"GET /api/v1/risk/current":        s.handleCurrentRisk,
		"GET /api/v1/risk/timeline":       s.handleRiskTimeline,
		"GET /api/v1/risk/map":            s.handleRiskMap,
		"GET /api/v1/weather/current":     s.handleCurrentWeather,
		"GET /api/v1/weather/forecast":    s.handleForecast,
		"GET /api/v1/weather/irrigation":  s.handleIrrigation,
		"GET /api/v1/weather/providers":   s.handleProviders,
		"GET /api/v1/weather/compare":     s.handleCompare,
	}
	for pattern, h := range api {
		mux.Handle(pattern, s.withRequestID(h))
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// withRequestID tags the response and the request context with a request ID,
// reusing one sent by the client.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(pipeline.WithRequestID(r.Context(), id)))

		s.logger.Debug("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", id,
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

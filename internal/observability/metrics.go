package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bloom_risk"

// Metrics holds the Prometheus counters, histograms, and gauges for the analysis service.
type Metrics struct {
	// Analysis metrics.
	AnalysesTotal      *prometheus.CounterVec   // labels: kind={phenology,anomalies,risk,risk_timeline,risk_map,irrigation}, outcome={success,error}
	AnalysisDuration   *prometheus.HistogramVec // labels: kind
	EventsDetected     prometheus.Counter
	AnomaliesDetected  prometheus.Counter
	EnrichmentFailures prometheus.Counter

	// Weather provider metrics.
	ProviderRequests    *prometheus.CounterVec   // labels: provider, method={current,forecast,period}, outcome={success,error}
	ProviderAPIDuration *prometheus.HistogramVec // labels: provider, method
	WeatherCache        *prometheus.CounterVec   // labels: method, result={hit,miss}
	WeatherFallbacks    *prometheus.CounterVec   // labels: method, source={single,simulator,seasonal}
	ProvidersEnabled    *prometheus.GaugeVec     // labels: provider

	// Result publishing metrics.
	ResultsPublished    prometheus.Counter
	PublishErrors       prometheus.Counter
	PublishQueueDropped prometheus.Counter
	PublisherRunning    prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analyses served by kind and outcome.",
		}, []string{"kind", "outcome"}),
		AnalysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of an analysis including provider calls.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		EventsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bloom_events_detected_total",
			Help:      "Total bloom events detected.",
		}),
		AnomaliesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_detected_total",
			Help:      "Total vegetation anomaly alerts raised.",
		}),
		EnrichmentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_failures_total",
			Help:      "Bloom events whose weather enrichment was unavailable.",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Weather provider requests by provider, method and outcome.",
		}, []string{"provider", "method", "outcome"}),
		ProviderAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_api_duration_seconds",
			Help:      "Weather provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider", "method"}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_cache_total",
			Help:      "Weather cache lookups by method and result.",
		}, []string{"method", "result"}),
		WeatherFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_fallbacks_total",
			Help:      "Weather requests answered by a fallback source.",
		}, []string{"method", "source"}),
		ProvidersEnabled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_enabled",
			Help:      "1 when the weather provider is configured, 0 otherwise.",
		}, []string{"provider"}),
		ResultsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_published_total",
			Help:      "Analysis results written to the results topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed attempts to publish analysis results.",
		}),
		PublishQueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_queue_dropped_total",
			Help:      "Analysis results dropped because the publish queue was full.",
		}),
		PublisherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publisher_running",
			Help:      "1 when the result publisher is active, 0 when shut down.",
		}),
	}

	prometheus.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.EventsDetected,
		m.AnomaliesDetected,
		m.EnrichmentFailures,
		m.ProviderRequests,
		m.ProviderAPIDuration,
		m.WeatherCache,
		m.WeatherFallbacks,
		m.ProvidersEnabled,
		m.ResultsPublished,
		m.PublishErrors,
		m.PublishQueueDropped,
		m.PublisherRunning,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		AnalysesTotal:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "analyses_total"}, []string{"kind", "outcome"}),
		AnalysisDuration:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "analysis_duration_seconds"}, []string{"kind"}),
		EventsDetected:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "bloom_events_detected_total"}),
		AnomaliesDetected:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "anomalies_detected_total"}),
		EnrichmentFailures:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "enrichment_failures_total"}),
		ProviderRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "provider_requests_total"}, []string{"provider", "method", "outcome"}),
		ProviderAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "provider_api_duration_seconds"}, []string{"provider", "method"}),
		WeatherCache:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "weather_cache_total"}, []string{"method", "result"}),
		WeatherFallbacks:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "weather_fallbacks_total"}, []string{"method", "source"}),
		ProvidersEnabled:    prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: "provider_enabled"}, []string{"provider"}),
		ResultsPublished:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "results_published_total"}),
		PublishErrors:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "publish_errors_total"}),
		PublishQueueDropped: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "publish_queue_dropped_total"}),
		PublisherRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "publisher_running"}),
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// Outcome labels for events_processed_total
const (
	OutcomeStored      = "stored"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"
)

// PrometheusMetrics holds the collector's instruments.
// An empty namespace keeps the bare names, e.g. track_requests_total.
type PrometheusMetrics struct {
	trackRequests   prometheus.Counter
	eventsStored    *prometheus.CounterVec
	eventsProcessed *prometheus.CounterVec
	insertDuration  prometheus.Histogram
	httpRequests    *prometheus.CounterVec

	httpHandler fasthttp.RequestHandler
}

func NewPrometheusMetrics(namespace string, logger *zap.Logger) *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewPrometheusMetricsWithRegistry registers on registerer; tests pass a fresh prometheus.NewRegistry()
func NewPrometheusMetricsWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *PrometheusMetrics {
	pm := &PrometheusMetrics{}

	pm.trackRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "track_requests_total",
		Help:      "Total number of /track POST requests",
	})

	pm.eventsStored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_stored_total",
		Help:      "Events written to storage by event type",
	}, []string{"event_type"})

	pm.eventsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_processed_total",
		Help:      "Outcome of every /track request",
	}, []string{"outcome"})

	pm.insertDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "insert_duration_seconds",
		Help:      "Time spent writing one event to storage",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	})

	pm.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by endpoint and status",
	}, []string{"endpoint", "status"})

	registerer.MustRegister(
		pm.trackRequests,
		pm.eventsStored,
		pm.eventsProcessed,
		pm.insertDuration,
		pm.httpRequests,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	pm.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Info("Collector Prometheus metrics initialized", zap.String("namespace", namespace))
	return pm
}

func (pm *PrometheusMetrics) RecordTrackRequest() {
	pm.trackRequests.Inc()
}

func (pm *PrometheusMetrics) RecordStored(eventType string, seconds float64) {
	pm.eventsStored.WithLabelValues(eventType).Inc()
	pm.eventsProcessed.WithLabelValues(OutcomeStored).Inc()
	pm.insertDuration.Observe(seconds)
}

// RecordOutcome counts a non-stored outcome (invalid, unavailable, failed)
func (pm *PrometheusMetrics) RecordOutcome(outcome string) {
	pm.eventsProcessed.WithLabelValues(outcome).Inc()
}

func (pm *PrometheusMetrics) RecordHTTPRequest(endpoint, status string) {
	pm.httpRequests.WithLabelValues(endpoint, status).Inc()
}

// ServeHTTP serves the exposition format
func (pm *PrometheusMetrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	pm.httpHandler(ctx)
}

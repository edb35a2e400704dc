package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/generation"
	gormModels "github.com/alchemorsel/recipeflow/internal/infrastructure/persistence/gorm"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const namespace = "recipeflow"

// MetricsCollector handles Prometheus metrics collection for the pipeline,
// the database and the HTTP surface
type MetricsCollector struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// Pipeline metrics
	extractionsTotal      *prometheus.CounterVec
	extractionDuration    *prometheus.HistogramVec
	learningRunsTotal     *prometheus.CounterVec
	cardGenerationsTotal  *prometheus.CounterVec
	cardGenerationSeconds prometheus.Histogram
	generationTotal       *prometheus.CounterVec
	generationDuration    *prometheus.HistogramVec

	// Token usage goes through the otel meter and is exported by the
	// prometheus bridge registered on the same registry
	tokenUsage metric.Int64Counter

	// Database metrics
	dbQueryDuration *prometheus.HistogramVec
	dbQueryErrors   *prometheus.CounterVec
}

var (
	_ outbound.PipelineMetrics   = (*MetricsCollector)(nil)
	_ gormModels.QueryObserver = (*MetricsCollector)(nil)
)

// NewMetricsCollector registers every collector on registry. meter may be
// nil, in which case token usage is not recorded.
func NewMetricsCollector(registry *prometheus.Registry, meter metric.Meter, logger *zap.Logger) (*MetricsCollector, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(namespace)
	}
	factory := promauto.With(registry)

	tokenUsage, err := meter.Int64Counter(
		"gen_ai.client.token.usage",
		metric.WithDescription("Tokens consumed by generation calls"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create token usage counter: %w", err)
	}

	return &MetricsCollector{
		logger:   logger,
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"method", "route"},
		),
		httpResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		extractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "Recipe extractions by source kind and outcome",
			},
			[]string{"source_kind", "outcome"},
		),
		extractionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extraction_duration_seconds",
				Help:      "End to end extraction duration in seconds",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"source_kind"},
		),
		learningRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "learning_runs_total",
				Help:      "Knowledge learner runs by cuisine and outcome",
			},
			[]string{"cuisine", "outcome"},
		),
		cardGenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "card_generations_total",
				Help:      "Workflow card generations by outcome",
			},
			[]string{"outcome"},
		),
		cardGenerationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "card_generation_duration_seconds",
				Help:      "Workflow card generation duration in seconds",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
		),
		generationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_requests_total",
				Help:      "Generation capability calls by provider, model and outcome",
			},
			[]string{"provider", "model", "outcome"},
		),
		generationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Generation capability latency in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"provider", "model"},
		),
		tokenUsage: tokenUsage,

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation", "table"},
		),
		dbQueryErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_query_errors_total",
				Help:      "Database queries that returned an error",
			},
			[]string{"operation", "table"},
		),
	}, nil
}

// NewRegistry creates a registry preloaded with the Go runtime and process
// collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordExtraction implements outbound.PipelineMetrics
func (m *MetricsCollector) RecordExtraction(sourceKind, outcome string, duration time.Duration) {
	m.extractionsTotal.WithLabelValues(sourceKind, outcome).Inc()
	m.extractionDuration.WithLabelValues(sourceKind).Observe(duration.Seconds())
}

// RecordLearning implements outbound.PipelineMetrics
func (m *MetricsCollector) RecordLearning(cuisine, outcome string) {
	m.learningRunsTotal.WithLabelValues(cuisine, outcome).Inc()
}

// RecordCardGeneration implements outbound.PipelineMetrics
func (m *MetricsCollector) RecordCardGeneration(outcome string, duration time.Duration) {
	m.cardGenerationsTotal.WithLabelValues(outcome).Inc()
	m.cardGenerationSeconds.Observe(duration.Seconds())
}

// RecordGeneration implements outbound.PipelineMetrics
func (m *MetricsCollector) RecordGeneration(provider, model, outcome string, duration time.Duration, usage generation.Usage) {
	m.generationTotal.WithLabelValues(provider, model, outcome).Inc()
	m.generationDuration.WithLabelValues(provider, model).Observe(duration.Seconds())

	ctx := context.Background()
	if usage.InputTokens > 0 {
		m.tokenUsage.Add(ctx, int64(usage.InputTokens), metric.WithAttributes(
			attribute.String("gen_ai.system", provider),
			attribute.String("gen_ai.response.model", model),
			attribute.String("gen_ai.token.type", "input"),
		))
	}
	if usage.OutputTokens > 0 {
		m.tokenUsage.Add(ctx, int64(usage.OutputTokens), metric.WithAttributes(
			attribute.String("gen_ai.system", provider),
			attribute.String("gen_ai.response.model", model),
			attribute.String("gen_ai.token.type", "output"),
		))
	}
}

// ObserveQuery implements gorm.QueryObserver
func (m *MetricsCollector) ObserveQuery(operation, table string, duration time.Duration, err error) {
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		m.dbQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// ObserveHTTPRequest records one served request. route is the chi route
// pattern, never the raw path.
func (m *MetricsCollector) ObserveHTTPRequest(method, route string, status int, duration time.Duration, size int) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.httpResponseSize.WithLabelValues(method, route).Observe(float64(size))
}

package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	TracingEnabled bool
	TraceExporter  string
	OTLPEndpoint   string
	JaegerEndpoint string
	SamplingRate   float64
}

// TelemetryConfigFrom maps application configuration
func TelemetryConfigFrom(cfg *config.Config) TelemetryConfig {
	return TelemetryConfig{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		TracingEnabled: cfg.Monitoring.EnableTracing,
		TraceExporter:  cfg.Monitoring.TraceExporter,
		OTLPEndpoint:   cfg.Monitoring.OTLPEndpoint,
		JaegerEndpoint: cfg.Monitoring.JaegerEndpoint,
		SamplingRate:   cfg.Monitoring.SamplingRate,
	}
}

// Telemetry owns the trace and meter providers. Both are installed as the
// otel globals so packages can call otel.Tracer directly.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	meter          metric.Meter
	logger         *zap.Logger
	config         TelemetryConfig
}

// NewTelemetry sets up tracing (when enabled) and an otel meter whose
// instruments are exported through registerer
func NewTelemetry(cfg TelemetryConfig, registerer prometheus.Registerer, logger *zap.Logger) (*Telemetry, error) {
	t := &Telemetry{
		logger: logger.Named("telemetry"),
		config: cfg,
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.TracingEnabled {
		if err := t.initializeTracing(res); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(registerer))
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	t.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(t.meterProvider)
	t.meter = t.meterProvider.Meter(cfg.ServiceName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

	t.logger.Info("Telemetry initialized",
		zap.String("service", cfg.ServiceName),
		zap.String("version", cfg.ServiceVersion),
		zap.Bool("tracing_enabled", cfg.TracingEnabled),
		zap.String("trace_exporter", cfg.TraceExporter),
	)
	return t, nil
}

func (t *Telemetry) initializeTracing(res *resource.Resource) error {
	var exporter sdktrace.SpanExporter

	switch t.config.TraceExporter {
	case "jaeger":
		jaegerExporter, err := jaeger.New(
			jaeger.WithCollectorEndpoint(
				jaeger.WithEndpoint(t.config.JaegerEndpoint),
			),
		)
		if err != nil {
			return fmt.Errorf("failed to create Jaeger exporter: %w", err)
		}
		exporter = jaegerExporter
	case "otlp", "":
		otlpExporter, err := otlptrace.New(
			context.Background(),
			otlptracehttp.NewClient(
				otlptracehttp.WithEndpoint(t.config.OTLPEndpoint),
				otlptracehttp.WithInsecure(),
			),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporter = otlpExporter
	default:
		return fmt.Errorf("unknown trace exporter %q", t.config.TraceExporter)
	}

	t.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(t.config.SamplingRate))),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(t.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

// Tracer returns a tracer from the active provider
func (t *Telemetry) Tracer(name string) trace.Tracer {
	return otel.Tracer(name, trace.WithInstrumentationVersion(t.config.ServiceVersion))
}

// Meter returns the meter bridged into the Prometheus registry
func (t *Telemetry) Meter() metric.Meter {
	return t.meter
}

// InstrumentHTTPHandler wraps handler with otelhttp server instrumentation
func (t *Telemetry) InstrumentHTTPHandler(handler http.Handler, operation string) http.Handler {
	opts := []otelhttp.Option{otelhttp.WithMeterProvider(t.meterProvider)}
	if t.tracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(t.tracerProvider))
	}
	return otelhttp.NewHandler(handler, operation, opts...)
}

// Shutdown flushes and stops both providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	t.logger.Info("Telemetry shutdown completed")
	return nil
}

package observability

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"resumeflow/internal/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const defaultCollectionInterval = 15 * time.Second

// ObservabilityConfig holds configuration for observability
type ObservabilityConfig struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
	ConsoleOutput  bool
	PrettyPrint    bool
	SampleRate     float64
	Prometheus     PrometheusConfig
}

// ObservabilityManager owns the tracer and meter providers of the process.
// A manager built with Enabled false hands out no-op instrumentation.
type ObservabilityManager struct {
	config         ObservabilityConfig
	settings       config.ObservabilityConfig
	backendURL     string
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metrics        *Metrics
	prometheusMux  *http.ServeMux
}

// NewObservabilityManager installs global providers when obsConfig is enabled.
// fullConfig may be nil; every custom metric is then recorded.
func NewObservabilityManager(obsConfig ObservabilityConfig, fullConfig *config.Config) (*ObservabilityManager, error) {
	om := &ObservabilityManager{config: obsConfig}
	if fullConfig != nil {
		om.settings = fullConfig.Observability
		om.backendURL = fullConfig.Backend.URL
	} else {
		om.settings.CustomMetrics = allMetricsEnabled()
	}
	if !obsConfig.Enabled {
		return om, nil
	}

	ctx := context.Background()
	res, err := om.resource()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize resource: %w", err)
	}

	exporter, err := om.spanExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	traceOpts := []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(obsConfig.SampleRate))),
	}
	if exporter != nil {
		traceOpts = append(traceOpts, trace.WithBatcher(exporter))
	}
	om.tracerProvider = trace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(om.tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	readers, err := om.metricReaders(ctx)
	if err != nil {
		_ = om.tracerProvider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		meterOpts = append(meterOpts, sdkmetric.WithReader(reader))
	}
	om.meterProvider = sdkmetric.NewMeterProvider(meterOpts...)
	otel.SetMeterProvider(om.meterProvider)

	om.metrics, err = NewMetrics(om.meterProvider.Meter(obsConfig.ServiceName), om.settings.CustomMetrics)
	if err != nil {
		_ = om.Shutdown(ctx)
		return nil, err
	}
	return om, nil
}

func (om *ObservabilityManager) resource() (*resource.Resource, error) {
	instance := om.settings.ServiceInstance
	if instance == "" {
		instance = "resumeflow-1"
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(om.config.ServiceName),
		semconv.ServiceVersion(om.config.ServiceVersion),
		attribute.String("service.instance.id", instance),
	}
	if u, err := url.Parse(om.backendURL); err == nil && u.Host != "" {
		attrs = append(attrs, attribute.String("resumeflow.backend.host", u.Host))
	}
	return resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
}

// spanExporter picks the console exporter, then OTLP. A nil exporter means
// spans are sampled for propagation but never exported.
func (om *ObservabilityManager) spanExporter(ctx context.Context) (trace.SpanExporter, error) {
	switch {
	case om.config.ConsoleOutput:
		var opts []stdouttrace.Option
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		return stdouttrace.New(opts...)
	case om.settings.OTLP.Enabled:
		otlp := om.settings.OTLP
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(otlp.Endpoint)}
		if otlp.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(otlp.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(otlp.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}
	return nil, nil
}

// metricReaders returns every configured reader, falling back to a manual
// reader so the meter provider always has one.
func (om *ObservabilityManager) metricReaders(ctx context.Context) ([]sdkmetric.Reader, error) {
	interval := om.settings.Metrics.CollectionInterval
	if interval <= 0 {
		interval = defaultCollectionInterval
	}

	var readers []sdkmetric.Reader
	if om.config.ConsoleOutput {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	}

	if otlp := om.settings.OTLP; otlp.Enabled {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(otlp.Endpoint)}
		if otlp.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(otlp.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(otlp.Headers))
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("OTLP metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	}

	if om.config.Prometheus.Enabled {
		reader, mux, err := SetupPrometheusExporter(om.config.Prometheus)
		if err != nil {
			return nil, fmt.Errorf("prometheus exporter: %w", err)
		}
		if reader != nil {
			readers = append(readers, reader)
			om.prometheusMux = mux
		}
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}
	return readers, nil
}

// PrometheusServer returns the dedicated metrics server, or nil when the
// Prometheus exporter is off.
func (om *ObservabilityManager) PrometheusServer() *http.Server {
	return NewPrometheusServer(om.prometheusMux, om.config.Prometheus.Port)
}

// GetMetrics returns the metrics instance. It is nil when observability is
// disabled; every Metrics method accepts a nil receiver.
func (om *ObservabilityManager) GetMetrics() *Metrics {
	return om.metrics
}

// HTTPMiddleware instruments the local API with otelhttp.
func (om *ObservabilityManager) HTTPMiddleware() func(http.Handler) http.Handler {
	if om.tracerProvider == nil {
		return func(h http.Handler) http.Handler { return h }
	}
	return otelhttp.NewMiddleware(
		om.config.ServiceName,
		otelhttp.WithTracerProvider(om.tracerProvider),
		otelhttp.WithMeterProvider(om.meterProvider),
	)
}

// Tracer returns a tracer for the service
func (om *ObservabilityManager) Tracer(name string) oteltrace.Tracer {
	if om.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return om.tracerProvider.Tracer(name)
}

// Shutdown flushes and stops both providers.
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	var errs []error
	if om.meterProvider != nil {
		errs = append(errs, om.meterProvider.Shutdown(ctx))
	}
	if om.tracerProvider != nil {
		errs = append(errs, om.tracerProvider.Shutdown(ctx))
	}
	return stderrors.Join(errs...)
}

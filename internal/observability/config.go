package observability

import (
	"net/http"

	"resumeflow/internal/config"

	"go.opentelemetry.io/otel/attribute"
)

// GetObservabilityConfig creates observability config from provided config
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	if cfg == nil {
		return ObservabilityConfig{
			ServiceName:    "resumeflow",
			ServiceVersion: version,
			Enabled:        false,
			ConsoleOutput:  true,
			PrettyPrint:    true,
			SampleRate:     1.0,
			Prometheus:     GetPrometheusConfig(cfg),
		}
	}

	obsConfig := cfg.Observability

	// Use app version if service version not specified
	serviceVersion := obsConfig.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}

	sampleRate := obsConfig.SampleRate
	if !obsConfig.Tracing.Enabled {
		sampleRate = 0
	}

	return ObservabilityConfig{
		ServiceName:    obsConfig.ServiceName,
		ServiceVersion: serviceVersion,
		Enabled:        obsConfig.Enabled,
		ConsoleOutput:  obsConfig.ConsoleOutput,
		PrettyPrint:    obsConfig.Console.PrettyPrint,
		SampleRate:     sampleRate,
		Prometheus:     GetPrometheusConfig(cfg),
	}
}

// ObservabilityMiddleware opens a span per request named after method and path
func ObservabilityMiddleware(om *ObservabilityManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if om == nil || !om.config.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracer := om.Tracer("resumeflow.http")
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
			defer span.End()

			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL.String()),
				attribute.String("http.user_agent", r.UserAgent()),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

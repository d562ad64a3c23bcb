package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultDraftKey is the cache key the builder stores its draft under.
const DefaultDraftKey = "resumeBuilderDraft"

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Backend Configuration
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.timeout", 120*time.Second) // Parsing large PDFs can be slow
	v.SetDefault("backend.connectTimeout", 10*time.Second)

	// Circuit Breaker Configuration
	v.SetDefault("backend.circuitBreaker.enabled", true)
	v.SetDefault("backend.circuitBreaker.maxRequests", 3)
	v.SetDefault("backend.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("backend.circuitBreaker.timeout", 30*time.Second)
	v.SetDefault("backend.circuitBreaker.minRequests", 3)
	v.SetDefault("backend.circuitBreaker.failureThreshold", 0.6)

	// Session Configuration
	v.SetDefault("session.reviewDelay", 600*time.Millisecond)
	v.SetDefault("session.resultsDelay", 800*time.Millisecond)
	v.SetDefault("session.minJobDescription", 50)

	// Draft Configuration
	v.SetDefault("draft.dir", defaultDraftDir())
	v.SetDefault("draft.key", DefaultDraftKey)
	v.SetDefault("draft.watch", false)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 0) // SSE streams stay open for the whole operation
	v.SetDefault("server.idleTimeout", 120*time.Second)
	// Rate limiting defaults
	v.SetDefault("server.rateLimit.enabled", true)
	v.SetDefault("server.rateLimit.requestsPerMin", 120)
	v.SetDefault("server.rateLimit.burstCapacity", 20)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "text")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 10*1024*1024) // 10MB

	// Observability Configuration
	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.serviceName", "resumeflow")
	v.SetDefault("observability.serviceVersion", "")  // Will use app version if empty
	v.SetDefault("observability.serviceInstance", "") // Will be auto-generated if empty
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)

	// Tracing Configuration
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)

	// Metrics Configuration
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)

	// Custom Metrics Configuration
	v.SetDefault("observability.customMetrics.session.enabled", true)
	v.SetDefault("observability.customMetrics.session.trackTransitions", true)
	v.SetDefault("observability.customMetrics.session.trackScores", true)
	v.SetDefault("observability.customMetrics.backend.enabled", true)
	v.SetDefault("observability.customMetrics.backend.trackDuration", true)
	v.SetDefault("observability.customMetrics.backend.trackMessages", true)
	v.SetDefault("observability.customMetrics.backend.trackMalformed", true)
	v.SetDefault("observability.customMetrics.backend.trackBreakerTrips", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)

	// Console Configuration
	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)

	// Prometheus Configuration
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")

	// OTLP Configuration
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}

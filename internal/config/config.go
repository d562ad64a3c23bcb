package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
// Precedence Order:
// 1. Environment Variables (RESUMEFLOW_BACKEND_URL, etc.) - Highest priority
// 2. Config File values
// 3. Legacy environment variables (NEXT_PUBLIC_API_URL)
// 4. Default values - Lowest priority
type Config struct {
	Backend       BackendConfig       `mapstructure:"backend"`
	Session       SessionConfig       `mapstructure:"session"`
	Draft         DraftConfig         `mapstructure:"draft"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// BackendConfig holds the connection settings for the résumé backend
type BackendConfig struct {
	URL            string               `mapstructure:"url" validate:"required,url"`
	Timeout        time.Duration        `mapstructure:"timeout" validate:"gt=0"`        // Timeout for plain HTTP requests
	ConnectTimeout time.Duration        `mapstructure:"connectTimeout" validate:"gt=0"` // Timeout for opening the streaming channel
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`                                 // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`                             // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`                                // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`                                 // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`                             // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold" validate:"gte=0,lte=1"` // Failure ratio threshold (0.0-1.0)
}

// SessionConfig holds the pacing and gating rules of the session flow
type SessionConfig struct {
	ReviewDelay       time.Duration `mapstructure:"reviewDelay" validate:"gte=0"`  // Pause before showing the review stage
	ResultsDelay      time.Duration `mapstructure:"resultsDelay" validate:"gte=0"` // Pause before showing results
	MinJobDescription int           `mapstructure:"minJobDescription" validate:"gte=1"`
}

// DraftConfig holds where the builder keeps its in-progress résumé
type DraftConfig struct {
	Dir   string `mapstructure:"dir" validate:"required"`
	Key   string `mapstructure:"key" validate:"required"`
	Watch bool   `mapstructure:"watch"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port" validate:"required,numeric"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`

	// Rate Limiting Configuration
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int           `mapstructure:"requestsPerMin"` // Requests allowed per window
	BurstCapacity  int           `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	ByIP           bool          `mapstructure:"byIP"`           // Enable per-IP rate limiting
	Window         time.Duration `mapstructure:"window"`         // Refill window for RequestsPerMin, one minute when zero
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel" validate:"oneof=debug info warn error"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats" validate:"min=1"`
	MaxFileSize      int64    `mapstructure:"maxFileSize" validate:"gt=0"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	ConsoleOutput   bool                `mapstructure:"consoleOutput"`
	SampleRate      float64             `mapstructure:"sampleRate" validate:"gte=0,lte=1"`
	Tracing         TracingConfig       `mapstructure:"tracing"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// CustomMetricsConfig holds fine-grained custom metrics configuration
type CustomMetricsConfig struct {
	Session        SessionMetricsConfig        `mapstructure:"session"`
	Backend        BackendMetricsConfig        `mapstructure:"backend"`
	Infrastructure InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

// SessionMetricsConfig controls session flow metrics
type SessionMetricsConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	TrackTransitions bool `mapstructure:"trackTransitions"`
	TrackScores      bool `mapstructure:"trackScores"`
}

// BackendMetricsConfig controls backend call and channel metrics
type BackendMetricsConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	TrackDuration     bool `mapstructure:"trackDuration"`
	TrackMessages     bool `mapstructure:"trackMessages"`
	TrackMalformed    bool `mapstructure:"trackMalformed"`
	TrackBreakerTrips bool `mapstructure:"trackBreakerTrips"`
}

// InfrastructureMetricsConfig holds infrastructure metrics configuration
type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// LoadConfig loads configuration from environment variables and a config file
func LoadConfig() (*Config, error) {
	return load(viper.New(), true)
}

// LoadConfigFile loads configuration from an explicit file path.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v, false)
}

func load(v *viper.Viper, searchPaths bool) (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix("RESUMEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Println("[CONFIG] Configured environment variable handling with prefix 'RESUMEFLOW'")

	if searchPaths {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/resumeflow/")
		v.AddConfigPath("$HOME/.resumeflow")
		v.AddConfigPath(".")
		log.Println("[CONFIG] Configured config file search paths: /etc/resumeflow/, $HOME/.resumeflow, .")
	}

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || !searchPaths {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	log.Println("[CONFIG] Successfully unmarshaled configuration")

	config.applyFallbacks(v)
	log.Println("[CONFIG] Applied configuration fallbacks and environment variable overrides")

	config.logConfigurationSources(configFileUsed)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	if !strings.HasPrefix(c.Backend.URL, "http://") && !strings.HasPrefix(c.Backend.URL, "https://") {
		return fmt.Errorf("backend URL must use http or https: %s", c.Backend.URL)
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	return nil
}

func formatValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Errorf("%s failed '%s=%s' check (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Errorf("%s failed '%s' check (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
}

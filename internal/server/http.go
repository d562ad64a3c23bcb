package server

import (
	"context"
	"time"

	"resumeflow/internal/backend"
	"resumeflow/internal/config"
	"resumeflow/internal/draft"
	resumeflowErrors "resumeflow/internal/errors"
	"resumeflow/internal/observability"
	"resumeflow/internal/session"

	"github.com/go-playground/validator/v10"
)

// OptimizeRequest is the body of POST /session/optimize
type OptimizeRequest struct {
	JobDescription string `json:"jobDescription" validate:"required"`
	JobTitle       string `json:"jobTitle" validate:"max=200"`
	Company        string `json:"company" validate:"max=200"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Backend is the part of the backend client the server reports on
type Backend interface {
	Health(ctx context.Context) (*backend.HealthStatus, error)
	ParseBreakerStats() map[string]any
	BaseURL() string
}

// Server holds configuration for the local presentation API
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	Session *session.Controller
	Backend Backend
	Drafts  *draft.Store

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	Metrics  *observability.Metrics
	Logger   *resumeflowErrors.Logger
	validate *validator.Validate
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, sess *session.Controller, be Backend, logger *resumeflowErrors.Logger) *Server {
	if logger == nil {
		logger = resumeflowErrors.NewNopLogger()
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.Window,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		Session:        sess,
		Backend:        be,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Logger:         logger,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ServerConfigFrom derives the server settings from the application config
func ServerConfigFrom(cfg *config.Config, version string) ServerConfig {
	return ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.App.MaxFileSize,
		RateLimit:      &cfg.Server.RateLimit,
	}
}

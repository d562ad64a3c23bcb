package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"RESUMEFLOW_BACKEND_URL", legacyBackendURLEnv, "RESUMEFLOW_APP_LOGLEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigFileDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfigFile(writeConfigFile(t, "app:\n  logLevel: info\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Backend.URL)
	assert.Equal(t, 50, cfg.Session.MinJobDescription)
	assert.Equal(t, 600*time.Millisecond, cfg.Session.ReviewDelay)
	assert.Equal(t, 800*time.Millisecond, cfg.Session.ResultsDelay)
	assert.Equal(t, DefaultDraftKey, cfg.Draft.Key)
	assert.NotEmpty(t, cfg.Draft.Dir)
	assert.True(t, cfg.Backend.CircuitBreaker.Enabled)
	assert.Equal(t, []string{"json", "text", "markdown"}, cfg.App.SupportedFormats)
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)
}

func TestLoadConfigFileOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
backend:
  url: https://api.example.com/
  timeout: 5s
session:
  reviewDelay: 0s
draft:
  dir: /tmp/drafts
server:
  port: "9999"
`)
	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Backend.URL, "trailing slash is trimmed")
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, time.Duration(0), cfg.Session.ReviewDelay)
	assert.Equal(t, "/tmp/drafts", cfg.Draft.Dir)
	assert.Equal(t, "9999", cfg.Server.Port)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("RESUMEFLOW_BACKEND_URL", "http://env-backend:8000")
	cfg, err := LoadConfigFile(writeConfigFile(t, "backend:\n  url: http://file-backend:8000\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://env-backend:8000", cfg.Backend.URL)
}

func TestLegacyBackendURLFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv(legacyBackendURLEnv, "https://legacy.example.com")
	cfg, err := LoadConfigFile(writeConfigFile(t, "app:\n  logLevel: info\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://legacy.example.com", cfg.Backend.URL)

	cfg, err = LoadConfigFile(writeConfigFile(t, "backend:\n  url: http://file-backend:8000\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://file-backend:8000", cfg.Backend.URL, "config file wins over the legacy variable")
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:            "http://localhost:8000",
			Timeout:        time.Second,
			ConnectTimeout: time.Second,
			CircuitBreaker: CircuitBreakerConfig{FailureThreshold: 0.5},
		},
		Session: SessionConfig{MinJobDescription: 50},
		Draft:   DraftConfig{Dir: "/tmp", Key: DefaultDraftKey},
		Server:  ServerConfig{Port: "8080"},
		App: AppConfig{
			LogLevel:         "info",
			DefaultFormat:    "json",
			SupportedFormats: []string{"json", "text"},
			MaxFileSize:      1024,
		},
		Observability: ObservabilityConfig{SampleRate: 1},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:        "missing backend url",
			mutate:      func(c *Config) { c.Backend.URL = "" },
			expectError: true,
			errorMsg:    "Config.Backend.URL",
		},
		{
			name:        "non http backend",
			mutate:      func(c *Config) { c.Backend.URL = "ftp://example.com" },
			expectError: true,
			errorMsg:    "backend URL must use http or https",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.App.LogLevel = "verbose" },
			expectError: true,
			errorMsg:    "Config.App.LogLevel",
		},
		{
			name:        "non numeric port",
			mutate:      func(c *Config) { c.Server.Port = "http" },
			expectError: true,
			errorMsg:    "Config.Server.Port",
		},
		{
			name:        "failure threshold above one",
			mutate:      func(c *Config) { c.Backend.CircuitBreaker.FailureThreshold = 1.5 },
			expectError: true,
			errorMsg:    "FailureThreshold",
		},
		{
			name:        "default format not supported",
			mutate:      func(c *Config) { c.App.DefaultFormat = "markdown" },
			expectError: true,
			errorMsg:    "invalid default format: markdown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

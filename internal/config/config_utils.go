package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// legacyBackendURLEnv is the variable older front-end deployments used for the backend origin.
const legacyBackendURLEnv = "NEXT_PUBLIC_API_URL"

// applyFallbacks applies environment variable fallbacks
func (c *Config) applyFallbacks(v *viper.Viper) {
	c.applyBackendFallbacks(v)
	c.applyDraftDefaults()
	c.applyObservabilityDefaults()
}

// applyBackendFallbacks honours the legacy backend variable when nothing else set the URL
func (c *Config) applyBackendFallbacks(v *viper.Viper) {
	if legacy := os.Getenv(legacyBackendURLEnv); legacy != "" && !v.InConfig("backend.url") && os.Getenv("RESUMEFLOW_BACKEND_URL") == "" {
		c.Backend.URL = legacy
	}
	c.Backend.URL = strings.TrimRight(strings.TrimSpace(c.Backend.URL), "/")
}

// applyDraftDefaults expands a leading ~ in the draft directory
func (c *Config) applyDraftDefaults() {
	if rest, ok := strings.CutPrefix(c.Draft.Dir, "~"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			c.Draft.Dir = filepath.Join(home, rest)
		}
	}
}

func defaultDraftDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".resumeflow", "drafts")
	}
	return filepath.Join(os.TempDir(), "resumeflow", "drafts")
}

// applyObservabilityDefaults applies default observability configuration values
func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}

	// Set console output based on log level if not explicitly configured
	if c.App.LogLevel == "debug" && !c.Observability.ConsoleOutput {
		c.Observability.ConsoleOutput = true
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		"RESUMEFLOW_BACKEND_URL",
		"RESUMEFLOW_SERVER_PORT",
		"RESUMEFLOW_SERVER_HOST",
		"RESUMEFLOW_APP_LOGLEVEL",
		"RESUMEFLOW_DRAFT_DIR",
		legacyBackendURLEnv, // Legacy support
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			log.Printf("[CONFIG]   %s=%s", envVar, value)
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] Backend URL: %s", c.Backend.URL)
	log.Printf("[CONFIG] Circuit Breaker Enabled: %t", c.Backend.CircuitBreaker.Enabled)
	log.Printf("[CONFIG] Draft Dir: %s", c.Draft.Dir)
	log.Printf("[CONFIG] Server Host: %s", c.Server.Host)
	log.Printf("[CONFIG] Server Port: %s", c.Server.Port)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)
	log.Println("[CONFIG] =====================================")
}

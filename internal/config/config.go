// Package config provides configuration loading and management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultRPCProviderHost is the host the credentialed endpoints live under
const DefaultRPCProviderHost = "g.alchemy.com"

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string `yaml:"port"`

	// RPCCredential is the optional API key for the primary RPC endpoints.
	// Empty means every network uses its public fallback.
	RPCCredential string `yaml:"rpc_credential"`

	// RPCProviderHost is the host under which primary endpoints are built
	RPCProviderHost string `yaml:"rpc_provider_host"`

	// Relay limits and retries, applied per network
	RPCRateLimit float64 `yaml:"rpc_rate_limit_rps"`
	RPCRateBurst int     `yaml:"rpc_rate_limit_burst"`
	RPCRetryMax  int     `yaml:"rpc_retry_max"`

	// Consecutive upstream failures that open a network's relay circuit, and how long it stays open
	RPCBreakerThreshold int           `yaml:"rpc_breaker_threshold"`
	RPCBreakerCooldown  time.Duration `yaml:"rpc_breaker_cooldown"`

	// RequestTimeout bounds a single relayed RPC call
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// SessionTTL is how long a browser session remembers its last wallet provider
	SessionTTL time.Duration `yaml:"session_ttl"`

	// AllowedOrigins for CORS on the API and relay routes; empty allows all
	AllowedOrigins []string `yaml:"allowed_origins"`

	// ReportFile is an optional pre-generated trading summary
	ReportFile string `yaml:"report_file"`

	// OpenTelemetry endpoint for observability
	OtelEndpoint string `yaml:"otel_endpoint"`

	EnableMetrics bool   `yaml:"enable_metrics"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Port:                "8080",
		RPCProviderHost:     DefaultRPCProviderHost,
		RPCRateLimit:        10,
		RPCRateBurst:        20,
		RPCRetryMax:         2,
		RPCBreakerThreshold: 5,
		RPCBreakerCooldown:  30 * time.Second,
		RequestTimeout:      10 * time.Second,
		SessionTTL:          24 * time.Hour,
		ReportFile:          "public/data/report_summary.json",
		EnableMetrics:       true,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load builds the configuration from defaults, the optional CONFIG_FILE and the environment,
// in that order of precedence (environment wins).
func Load() (Config, error) {
	cfg := DefaultConfig()

	if path, ok := GetEnv("CONFIG_FILE"); ok && path != "" {
		fileCfg, err := LoadFile(path, cfg)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg
	}

	return applyEnvOverrides(cfg), nil
}

// applyEnvOverrides applies environment variable overrides to the loaded configuration
func applyEnvOverrides(cfg Config) Config {
	cfg.Port = GetEnvOrDefault("PORT", cfg.Port)

	// The browser build reads NEXT_PUBLIC_ALCHEMY_KEY, keep accepting it.
	if key, ok := GetEnv("ALCHEMY_KEY"); ok && strings.TrimSpace(key) != "" {
		cfg.RPCCredential = strings.TrimSpace(key)
	} else if key, ok := GetEnv("NEXT_PUBLIC_ALCHEMY_KEY"); ok && strings.TrimSpace(key) != "" {
		cfg.RPCCredential = strings.TrimSpace(key)
	}

	cfg.RPCProviderHost = GetEnvOrDefault("RPC_PROVIDER_HOST", cfg.RPCProviderHost)
	cfg.RPCRateLimit = GetEnvAsFloat("RPC_RATE_LIMIT_RPS", cfg.RPCRateLimit)
	cfg.RPCRateBurst = GetEnvAsInt("RPC_RATE_LIMIT_BURST", cfg.RPCRateBurst)
	cfg.RPCRetryMax = GetEnvAsInt("RPC_RETRY_MAX", cfg.RPCRetryMax)
	cfg.RPCBreakerThreshold = GetEnvAsInt("RPC_BREAKER_THRESHOLD", cfg.RPCBreakerThreshold)
	cfg.RPCBreakerCooldown = GetEnvAsDuration("RPC_BREAKER_COOLDOWN", cfg.RPCBreakerCooldown)
	cfg.RequestTimeout = GetEnvAsDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.SessionTTL = GetEnvAsDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.ReportFile = GetEnvOrDefault("REPORT_FILE", cfg.ReportFile)
	cfg.OtelEndpoint = GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OtelEndpoint)
	cfg.EnableMetrics = GetEnvAsBool("ENABLE_METRICS", cfg.EnableMetrics)
	cfg.LogLevel = strings.ToLower(GetEnvOrDefault("LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(GetEnvOrDefault("LOG_FORMAT", cfg.LogFormat))

	if origins, ok := GetEnv("ALLOWED_ORIGINS"); ok && origins != "" {
		cfg.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	return cfg
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.Warnf("Invalid integer in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		logrus.Warnf("Invalid float in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.Warnf("Invalid duration in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		logrus.Warnf("Invalid boolean in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

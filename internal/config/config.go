package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"package-manifest/internal/converter"
	"package-manifest/internal/manifest"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerPort string
	ServerHost string
	// APIKey guards the cache administration routes; empty leaves them open
	APIKey string

	// Database configuration
	DBPath string

	// Logging
	LogLevel string

	// Document conversion
	ConverterEngine  string
	ConverterPython  string
	ConverterScript  string
	ConverterTimeout time.Duration

	// Result cache
	CacheTTL     time.Duration
	DisableCache bool

	// Upload and processing limits
	MaxUploadBytes int64
	DeadlineDays   int

	// Overdue package monitor
	MonitorEnabled  bool
	MonitorInterval time.Duration
	AutoReturn      bool

	MetricsEnabled bool
}

// Defaults shared by the env and viper loaders
const (
	defaultServerPort     = "8080"
	defaultServerHost     = "localhost"
	defaultDBPath         = "./ldi.db"
	defaultLogLevel       = "info"
	defaultEngine         = converter.EngineAuto
	defaultScript         = "scripts/docling_convert.py"
	defaultTimeout        = "2m"
	defaultCacheTTL       = "24h"
	defaultMaxUploadBytes = 10 << 20
	defaultMonitorPeriod  = "1h"
)

// Load loads configuration from environment variables with defaults
// If a .env file exists, it will be loaded first
func Load() (*Config, error) {
	loadEnvFile(".env")
	config := &Config{
		ServerPort: getEnvOrDefault("SERVER_PORT", defaultServerPort),
		ServerHost: getEnvOrDefault("SERVER_HOST", defaultServerHost),
		APIKey:     os.Getenv("ADMIN_API_KEY"),
		DBPath:     getEnvOrDefault("DB_PATH", defaultDBPath),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", defaultLogLevel),

		ConverterEngine:  getEnvOrDefault("CONVERTER_ENGINE", defaultEngine),
		ConverterPython:  os.Getenv("CONVERTER_PYTHON"),
		ConverterScript:  getEnvOrDefault("CONVERTER_SCRIPT", defaultScript),
		ConverterTimeout: getEnvDurationOrDefault("CONVERTER_TIMEOUT", defaultTimeout),

		CacheTTL:     getEnvDurationOrDefault("CACHE_TTL", defaultCacheTTL),
		DisableCache: getEnvBoolOrDefault("DISABLE_CACHE", false),

		MaxUploadBytes: int64(getEnvIntOrDefault("UPLOAD_MAX_BYTES", defaultMaxUploadBytes)),
		DeadlineDays:   getEnvIntOrDefault("DEADLINE_DAYS", manifest.DefaultDeadlineDays),

		MonitorEnabled:  getEnvBoolOrDefault("MONITOR_ENABLED", true),
		MonitorInterval: getEnvDurationOrDefault("MONITOR_INTERVAL", defaultMonitorPeriod),
		AutoReturn:      getEnvBoolOrDefault("AUTO_RETURN", false),

		MetricsEnabled: getEnvBoolOrDefault("METRICS_ENABLED", true),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return fmt.Errorf("invalid server port: %s", c.ServerPort)
	}

	if c.DBPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	if _, ok := logLevels[c.LogLevel]; !ok {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	switch strings.ToLower(c.ConverterEngine) {
	case converter.EngineAuto, converter.EngineDocling, converter.EngineNative:
	default:
		return fmt.Errorf("invalid converter engine: %s (must be one of: auto, docling, native)", c.ConverterEngine)
	}
	if c.ConverterTimeout <= 0 {
		return fmt.Errorf("converter timeout must be positive")
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}
	if c.DeadlineDays < 1 {
		return fmt.Errorf("deadline days must be at least 1")
	}
	if c.MonitorEnabled && c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor interval must be positive")
	}

	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Address returns the full server address
func (c *Config) Address() string {
	return c.ServerHost + ":" + c.ServerPort
}

// SlogLevel returns the configured log level
func (c *Config) SlogLevel() slog.Level {
	if level, ok := logLevels[c.LogLevel]; ok {
		return level
	}
	return slog.LevelInfo
}

// Converter returns the document converter settings
func (c *Config) Converter() converter.Config {
	return converter.Config{
		Engine: strings.ToLower(c.ConverterEngine),
		Docling: converter.DoclingConfig{
			Python:  c.ConverterPython,
			Script:  c.ConverterScript,
			Timeout: c.ConverterTimeout,
		},
	}
}

// GetDisableCache returns the cache disable flag
func (c *Config) GetDisableCache() bool {
	return c.DisableCache
}

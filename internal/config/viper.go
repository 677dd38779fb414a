package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"package-manifest/internal/manifest"
)

// EnvPrefix prefixes every environment variable read through viper
const EnvPrefix = "LDI_PARSER"

// LoadWithViper loads configuration using the given Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	setupEnvBinding(v)

	if err := loadConfigFile(v); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config := &Config{}
	if err := unmarshalConfig(v, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for every configuration key
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.api_key", "")

	v.SetDefault("database.path", defaultDBPath)

	v.SetDefault("logging.level", defaultLogLevel)

	v.SetDefault("converter.engine", defaultEngine)
	v.SetDefault("converter.python", "")
	v.SetDefault("converter.script", defaultScript)
	v.SetDefault("converter.timeout", defaultTimeout)

	v.SetDefault("cache.ttl", defaultCacheTTL)
	v.SetDefault("cache.disabled", false)

	v.SetDefault("upload.max_bytes", defaultMaxUploadBytes)
	v.SetDefault("processing.deadline_days", manifest.DefaultDeadlineDays)

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval", defaultMonitorPeriod)
	v.SetDefault("monitor.auto_return", false)

	v.SetDefault("metrics.enabled", true)
}

// envBindings maps configuration keys to LDI_PARSER_ suffixes
var envBindings = map[string]string{
	"server.port":              "SERVER_PORT",
	"server.host":              "SERVER_HOST",
	"server.api_key":           "ADMIN_API_KEY",
	"database.path":            "DATABASE_PATH",
	"logging.level":            "LOGGING_LEVEL",
	"converter.engine":         "CONVERTER_ENGINE",
	"converter.python":         "CONVERTER_PYTHON",
	"converter.script":         "CONVERTER_SCRIPT",
	"converter.timeout":        "CONVERTER_TIMEOUT",
	"cache.ttl":                "CACHE_TTL",
	"cache.disabled":           "CACHE_DISABLED",
	"upload.max_bytes":         "UPLOAD_MAX_BYTES",
	"processing.deadline_days": "PROCESSING_DEADLINE_DAYS",
	"monitor.enabled":          "MONITOR_ENABLED",
	"monitor.interval":         "MONITOR_INTERVAL",
	"monitor.auto_return":      "MONITOR_AUTO_RETURN",
	"metrics.enabled":          "METRICS_ENABLED",
}

// plainEnvBindings are the unprefixed names read by Load
var plainEnvBindings = map[string]string{
	"server.port":              "SERVER_PORT",
	"server.host":              "SERVER_HOST",
	"server.api_key":           "ADMIN_API_KEY",
	"database.path":            "DB_PATH",
	"logging.level":            "LOG_LEVEL",
	"converter.engine":         "CONVERTER_ENGINE",
	"converter.python":         "CONVERTER_PYTHON",
	"converter.script":         "CONVERTER_SCRIPT",
	"converter.timeout":        "CONVERTER_TIMEOUT",
	"cache.ttl":                "CACHE_TTL",
	"cache.disabled":           "DISABLE_CACHE",
	"upload.max_bytes":         "UPLOAD_MAX_BYTES",
	"processing.deadline_days": "DEADLINE_DAYS",
	"monitor.enabled":          "MONITOR_ENABLED",
	"monitor.interval":         "MONITOR_INTERVAL",
	"monitor.auto_return":      "AUTO_RETURN",
	"metrics.enabled":          "METRICS_ENABLED",
}

// setupEnvBinding binds prefixed variables first so they take precedence over
// the plain names
func setupEnvBinding(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	for key, suffix := range envBindings {
		v.BindEnv(key, EnvPrefix+"_"+suffix, plainEnvBindings[key])
	}
}

// loadConfigFile loads configuration file if it exists
func loadConfigFile(v *viper.Viper) error {
	if v.ConfigFileUsed() == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.ldi-parser")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	return nil
}

// unmarshalConfig maps Viper keys to struct fields
func unmarshalConfig(v *viper.Viper, config *Config) error {
	config.ServerPort = v.GetString("server.port")
	config.ServerHost = v.GetString("server.host")
	config.APIKey = v.GetString("server.api_key")
	config.DBPath = v.GetString("database.path")
	config.LogLevel = v.GetString("logging.level")

	config.ConverterEngine = v.GetString("converter.engine")
	config.ConverterPython = v.GetString("converter.python")
	config.ConverterScript = v.GetString("converter.script")

	var err error
	config.ConverterTimeout, err = time.ParseDuration(v.GetString("converter.timeout"))
	if err != nil {
		return fmt.Errorf("invalid converter timeout: %w", err)
	}

	config.CacheTTL, err = time.ParseDuration(v.GetString("cache.ttl"))
	if err != nil {
		return fmt.Errorf("invalid cache TTL: %w", err)
	}
	config.DisableCache = v.GetBool("cache.disabled")

	config.MaxUploadBytes = v.GetInt64("upload.max_bytes")
	config.DeadlineDays = v.GetInt("processing.deadline_days")
	config.MonitorEnabled = v.GetBool("monitor.enabled")
	config.MonitorInterval, err = time.ParseDuration(v.GetString("monitor.interval"))
	if err != nil {
		return fmt.Errorf("invalid monitor interval: %w", err)
	}
	config.AutoReturn = v.GetBool("monitor.auto_return")
	config.MetricsEnabled = v.GetBool("metrics.enabled")

	return nil
}

// LoadWithFile loads configuration from a specific file
func LoadWithFile(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	return LoadWithViper(v)
}

// LoadWithEnvFile loads an optional .env file and then the viper configuration
func LoadWithEnvFile(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	loadEnvFile(envFile)
	return LoadWithViper(viper.New())
}

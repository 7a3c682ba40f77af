package strux

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hengadev/strux/internal/compress"
)

// Environment variable names for LoadConfigFromEnvironment.
const (
	EnvCompression = "STRUX_COMPRESSION"
	EnvLogLevel    = "STRUX_LOG_LEVEL"
)

// Defaults applied by Validate.
const (
	DefaultCompression = "none"
	DefaultLogLevel    = "info"
)

// Config holds store session settings.
//
// This struct contains only data, no behavior. Configuration can be loaded
// from any source (environment variables, YAML files, code) and passed to
// Open via WithConfig.
type Config struct {
	// Compression selects the codec for newly written dataset rows:
	// "none", "lz4", or "zstd". Existing leaves keep the codec they were
	// written with; readers never need this setting.
	//
	// Optional field. Default: none.
	Compression string `yaml:"compression"`

	// LogLevel sets the session logger threshold: "debug", "info", "warn",
	// or "error".
	//
	// Optional field. Default: info.
	LogLevel string `yaml:"log_level"`
}

// Validate applies defaults to empty fields and rejects unknown values.
func (c *Config) Validate() error {
	if c.Compression == "" {
		c.Compression = DefaultCompression
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if _, err := compress.Parse(c.Compression); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid configuration: unknown log level %q", c.LogLevel)
	}
	return nil
}

// slogLevel maps the configured level name onto slog.
func (c *Config) slogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadConfigFromEnvironment reads configuration from STRUX_* environment
// variables, following the 12-factor convention. Unset variables fall back to
// defaults; the result is validated before being returned.
func LoadConfigFromEnvironment() (Config, error) {
	cfg := Config{
		Compression: getEnvOrDefault(EnvCompression, DefaultCompression),
		LogLevel:    getEnvOrDefault(EnvLogLevel, DefaultLogLevel),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigFromFile reads a YAML configuration file and validates it.
func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// getEnvOrDefault returns the environment variable's value, or defaultValue
// if unset or empty.
func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Package config contains everything related to configuration
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
)

// Config holds the application configuration.
type Config struct {
	DataDir         string        `yaml:"data_dir"`
	DatabasePath    string        `yaml:"database_path"`
	SecretPath      string        `yaml:"secret_path"`
	CredentialsPath string        `yaml:"credentials_path"`
	Bind            string        `yaml:"bind"`
	Port            int           `yaml:"port"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	RetentionDays   int           `yaml:"retention_days"`
	StatsDays       int           `yaml:"stats_days"`
	Notifications   bool          `yaml:"notifications"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`

	// DataDirErr is set when no local data directory could be determined.
	// Storage and the secret file are unavailable in that case.
	DataDirErr error `yaml:"-"`
}

// Default values
const (
	DefaultPort          = 19876
	defaultBind          = "0.0.0.0"
	defaultPollInterval  = 5 * time.Minute
	defaultRetentionDays = 30
	defaultStatsDays     = 7
)

// Load reads configuration from .env files, an optional YAML file and
// environment variables, in that order of increasing precedence. An empty
// path falls back to CLAUDE_USAGE_CONFIG and then to <data dir>/config.yaml.
func Load(path string) (*Config, error) {
	for _, envPath := range getEnvPaths() {
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			break
		}
	}

	cfg := defaults()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CLAUDE_USAGE_CONFIG")
		explicit = path != ""
	}
	if !explicit && cfg.DataDir != "" {
		path = filepath.Join(cfg.DataDir, "config.yaml")
	}

	if path != "" {
		if err := loadYAML(cfg, path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	applyEnvOverrides(cfg)
	cfg.derivePaths()

	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{
		Bind:          defaultBind,
		Port:          DefaultPort,
		PollInterval:  defaultPollInterval,
		RetentionDays: defaultRetentionDays,
		StatsDays:     defaultStatsDays,
		Notifications: true,
		LogLevel:      "info",
		LogFormat:     "text",
	}

	if dir, err := LocalDataDir(); err == nil {
		cfg.DataDir = filepath.Join(dir, AppDirName)
	} else {
		cfg.DataDirErr = err
	}

	if home, err := os.UserHomeDir(); err == nil {
		cfg.CredentialsPath = filepath.Join(home, ".claude", ".credentials.json")
	}

	return cfg
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if dir := os.Getenv("CLAUDE_USAGE_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
		cfg.DataDirErr = nil
	}
	cfg.DatabasePath = getEnvString("CLAUDE_USAGE_DB", cfg.DatabasePath)
	cfg.SecretPath = getEnvString("CLAUDE_USAGE_SECRET", cfg.SecretPath)
	cfg.CredentialsPath = getEnvString("CLAUDE_CREDENTIALS_PATH", cfg.CredentialsPath)
	cfg.Bind = getEnvString("CLAUDE_USAGE_BIND", cfg.Bind)
	cfg.Port = getEnvPort("CLAUDE_USAGE_PORT", cfg.Port)
	cfg.PollInterval = getEnvDuration("USAGE_REFRESH_INTERVAL", cfg.PollInterval)
	cfg.RetentionDays = getEnvInt("USAGE_RETENTION_DAYS", cfg.RetentionDays)
	cfg.Notifications = getEnvBool("USAGE_NOTIFICATIONS", cfg.Notifications)
	cfg.LogLevel = getEnvString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvString("LOG_FORMAT", cfg.LogFormat)
}

// derivePaths fills file paths that were not set explicitly from DataDir.
func (c *Config) derivePaths() {
	if c.DataDir == "" {
		return
	}
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "usage.db")
	}
	if c.SecretPath == "" {
		c.SecretPath = filepath.Join(c.DataDir, "auth_secret")
	}
}

// Addr returns the gateway listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// Retention returns the granular-data retention window.
func (c *Config) Retention() time.Duration {
	if c.RetentionDays <= 0 {
		return defaultRetentionDays * 24 * time.Hour
	}
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// LogPath returns the log file used while the TUI owns the terminal.
func (c *Config) LogPath() string {
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(c.DataDir, "cud.log")
}

// EnsureDataDir creates the data directory with owner-only permissions.
func (c *Config) EnsureDataDir() error {
	if c.DataDir == "" {
		if c.DataDirErr != nil {
			return c.DataDirErr
		}
		return errors.New("data directory not configured")
	}
	return ensureDir(c.DataDir)
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "claude-usage", ".env"))
	}

	return paths
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvPort parses a TCP port, keeping the default on anything invalid.
func getEnvPort(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		logger.Warn("ignoring invalid port override", "key", key, "value", value)
		return defaultValue
	}
	return port
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o700)
}

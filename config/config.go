// Package config loads client configuration from a YAML file with
// environment-variable overrides. Precedence is flag > env > file > default;
// flags are applied by the CLI layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vantagevision/vantage/pkg/api/v1/routes"
)

// environment variable names
const (
	EnvServerAddress = "VANTAGE_SERVER_ADDRESS"
	EnvAuthToken     = "VANTAGE_AUTH_TOKEN"
	EnvPollInterval  = "VANTAGE_POLL_INTERVAL"
	EnvSessionDir    = "VANTAGE_SESSION_DIR"
	EnvLogLevel      = "LOG_LEVEL"
)

// DefaultPollInterval is the fixed interval between status polls. Short
// enough for responsive progress, long enough to not hammer the status
// endpoint.
const DefaultPollInterval = 3 * time.Second

// Config holds the client configuration
type Config struct {
	ServerAddress string
	AuthToken     string
	PollInterval  time.Duration
	SessionDir    string
	LogLevel      string
}

// Default returns the default configuration
func Default() Config {
	return Config{
		ServerAddress: routes.DefaultBaseURL,
		PollInterval:  DefaultPollInterval,
		SessionDir:    defaultSessionDir(),
		LogLevel:      "info",
	}
}

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vantage"
	}
	return filepath.Join(home, ".vantage")
}

// fileConfig is the YAML shape of the config file. Durations are strings
// ("5s") because yaml.v3 has no native time.Duration decoding.
type fileConfig struct {
	ServerAddress string `yaml:"server_address"`
	AuthToken     string `yaml:"auth_token"`
	PollInterval  string `yaml:"poll_interval"`
	SessionDir    string `yaml:"session_dir"`
	LogLevel      string `yaml:"log_level"`
}

// Load reads the config file at path (missing file is not an error) and
// applies environment overrides on top of defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to env overrides
		case err != nil:
			return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
		default:
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return Config{}, fmt.Errorf("error parsing config file %s: %w", path, err)
			}
			if fc.ServerAddress != "" {
				cfg.ServerAddress = fc.ServerAddress
			}
			if fc.AuthToken != "" {
				cfg.AuthToken = fc.AuthToken
			}
			if fc.SessionDir != "" {
				cfg.SessionDir = fc.SessionDir
			}
			if fc.LogLevel != "" {
				cfg.LogLevel = fc.LogLevel
			}
			if fc.PollInterval != "" {
				d, err := time.ParseDuration(fc.PollInterval)
				if err != nil {
					return Config{}, fmt.Errorf("invalid poll_interval in %s: %w", path, err)
				}
				cfg.PollInterval = d
			}
		}
	}

	cfg.ServerAddress = GetEnv(EnvServerAddress, cfg.ServerAddress)
	cfg.AuthToken = GetEnv(EnvAuthToken, cfg.AuthToken)
	cfg.SessionDir = GetEnv(EnvSessionDir, cfg.SessionDir)
	cfg.LogLevel = GetEnv(EnvLogLevel, cfg.LogLevel)

	if v := os.Getenv(EnvPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvPollInterval, err)
		}
		cfg.PollInterval = d
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return cfg, nil
}

// GetEnv retrieves the value of an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

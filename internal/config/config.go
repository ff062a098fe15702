// Package config loads the GreenStack client configuration: built-in
// defaults, then an optional YAML file, then GREENSTACK_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GREENSTACK_"

// Config is the complete client configuration.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DeviceConfig configures the device API client.
type DeviceConfig struct {
	URL           string        `yaml:"url"`            // Device base URL, e.g. http://greenstack.local
	Timeout       time.Duration `yaml:"timeout"`        // Per-request timeout for readings and the pump
	ActionTimeout time.Duration `yaml:"action_timeout"` // Per-request timeout for WiFi provisioning
	MaxRetries    uint64        `yaml:"max_retries"`    // Retries after a failed request; 0 sends once
	BreakerTrips  uint32        `yaml:"breaker_trips"`  // Consecutive failures that open the breaker; 0 disables it
}

// DashboardConfig configures the dashboard timings and state.
type DashboardConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`     // Sensor polling period
	TransitionDelay  time.Duration `yaml:"transition_delay"`  // Value card transition
	WateringDuration time.Duration `yaml:"watering_duration"` // Pump button "Watering..." time
	ErrorDuration    time.Duration `yaml:"error_duration"`    // Pump button "Error" time
	WiFiActionDelay  time.Duration `yaml:"wifi_action_delay"` // Connect/AP result display time
	CookieFile       string        `yaml:"cookie_file"`       // Where the theme cookie is kept
}

// DiscoveryConfig configures mDNS discovery.
type DiscoveryConfig struct {
	Hostname string        `yaml:"hostname"`
	Service  string        `yaml:"service"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ServerConfig configures the local control API.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	RateLimit int    `yaml:"rate_limit"` // Actions per minute per client IP
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level"`        // trace, debug, info, warn, error
	Format     string `yaml:"format"`       // auto, console or json
	File       string `yaml:"file"`         // Optional rotating log file
	MaxSizeMB  int    `yaml:"max_size_mb"`  // Rotation size
	MaxBackups int    `yaml:"max_backups"`  // Rotated files kept
	MaxAgeDays int    `yaml:"max_age_days"` // Rotated file retention
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	OTLPEndpoint   string        `yaml:"otlp_endpoint"`
	Environment    string        `yaml:"environment"`
	ExportInterval time.Duration `yaml:"export_interval"` // How often device metrics are pushed
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			URL:           "http://greenstack.local",
			Timeout:       5 * time.Second,
			ActionTimeout: 20 * time.Second,
		},
		Dashboard: DashboardConfig{
			PollInterval:     2000 * time.Millisecond,
			TransitionDelay:  150 * time.Millisecond,
			WateringDuration: 5000 * time.Millisecond,
			ErrorDuration:    2000 * time.Millisecond,
			WiFiActionDelay:  2000 * time.Millisecond,
			CookieFile:       filepath.Join(stateDir(), "cookies"),
		},
		Discovery: DiscoveryConfig{
			Hostname: "GreenStack",
			Service:  "_http._tcp",
			Timeout:  5 * time.Second,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8080",
			RateLimit: 30,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint:   "localhost:4317",
			Environment:    "development",
			ExportInterval: 15 * time.Second,
		},
	}
}

// DefaultPath returns the config file read when none is named.
func DefaultPath() string {
	return filepath.Join(stateDir(), "config.yaml")
}

func stateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".greenstack"
	}
	return filepath.Join(dir, "greenstack")
}

// Load builds the configuration. When path is empty the default path is
// tried and may be absent; a named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	env := func(key string) (string, bool) {
		return lookup(EnvPrefix + key)
	}

	texts := map[string]*string{
		"DEVICE_URL":         &c.Device.URL,
		"COOKIE_FILE":        &c.Dashboard.CookieFile,
		"DISCOVERY_HOSTNAME": &c.Discovery.Hostname,
		"SERVER_ADDR":        &c.Server.Addr,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
		"LOG_FILE":           &c.Log.File,
		"OTLP_ENDPOINT":      &c.Telemetry.OTLPEndpoint,
		"ENV":                &c.Telemetry.Environment,
	}
	for key, field := range texts {
		if v, ok := env(key); ok {
			*field = v
		}
	}

	durations := map[string]*time.Duration{
		"DEVICE_TIMEOUT":        &c.Device.Timeout,
		"DEVICE_ACTION_TIMEOUT": &c.Device.ActionTimeout,
		"POLL_INTERVAL":         &c.Dashboard.PollInterval,
		"DISCOVERY_TIMEOUT":     &c.Discovery.Timeout,
		"TELEMETRY_INTERVAL":    &c.Telemetry.ExportInterval,
	}
	for key, field := range durations {
		if v, ok := env(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*field = d
		}
	}

	if v, ok := env("DEVICE_MAX_RETRIES"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sDEVICE_MAX_RETRIES: %w", EnvPrefix, err)
		}
		c.Device.MaxRetries = n
	}
	if v, ok := env("DEVICE_BREAKER_TRIPS"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%sDEVICE_BREAKER_TRIPS: %w", EnvPrefix, err)
		}
		c.Device.BreakerTrips = uint32(n)
	}
	if v, ok := env("SERVER_RATE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sSERVER_RATE_LIMIT: %w", EnvPrefix, err)
		}
		c.Server.RateLimit = n
	}
	if v, ok := env("TELEMETRY_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sTELEMETRY_ENABLED: %w", EnvPrefix, err)
		}
		c.Telemetry.Enabled = enabled
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Device.URL == "" {
		return errors.New("device url is required")
	}
	if !strings.HasPrefix(c.Device.URL, "http://") && !strings.HasPrefix(c.Device.URL, "https://") {
		return fmt.Errorf("device url %q must start with http:// or https://", c.Device.URL)
	}
	if c.Dashboard.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Dashboard.PollInterval)
	}
	switch c.Log.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("log format %q must be auto, console or json", c.Log.Format)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Telemetry.Enabled && c.Telemetry.ExportInterval <= 0 {
		return fmt.Errorf("telemetry export interval must be positive, got %s", c.Telemetry.ExportInterval)
	}
	return nil
}

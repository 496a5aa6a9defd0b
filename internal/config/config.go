// ABOUTME: Configuration loading and parsing for drover-agent
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete drover-agent configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Intervals IntervalsConfig `yaml:"intervals"`
}

// ServerConfig holds the management server endpoints and credentials.
// LocalAddr is the LAN-reachable host, OverlayAddr the VPN overlay host;
// the agent probes the local address first and fails over to the overlay.
type ServerConfig struct {
	LocalAddr   string `yaml:"local_addr"`
	OverlayAddr string `yaml:"overlay_addr"`
	Port        string `yaml:"port"`
	Token       string `yaml:"token"`
}

// StorageConfig holds the on-disk state location
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// IntervalsConfig holds agent loop cadences. All fields have defaults so a
// config file that omits the section still produces a working agent.
type IntervalsConfig struct {
	SchedulerTick    time.Duration `yaml:"-"`
	WatcherTick      time.Duration `yaml:"-"`
	ReconnectBackoff time.Duration `yaml:"-"`
	ProbeTimeout     time.Duration `yaml:"-"`
	ExecTimeout      time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	SchedulerTickRaw    string `yaml:"scheduler_tick"`
	WatcherTickRaw      string `yaml:"watcher_tick"`
	ReconnectBackoffRaw string `yaml:"reconnect_backoff"`
	ProbeTimeoutRaw     string `yaml:"probe_timeout"`
	ExecTimeoutRaw      string `yaml:"exec_timeout"`
}

// Interval defaults. These match the cadences the server-side dashboard
// assumes when displaying agent freshness.
const (
	DefaultSchedulerTick    = 30 * time.Second
	DefaultWatcherTick      = 15 * time.Second
	DefaultReconnectBackoff = 30 * time.Second
	DefaultProbeTimeout     = 3 * time.Second
	DefaultExecTimeout      = 300 * time.Second
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.LocalAddr == "" {
		return fmt.Errorf("server.local_addr is required")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.Token == "" {
		return fmt.Errorf("server.token is required")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{cfg.Intervals.SchedulerTickRaw, "scheduler_tick", &cfg.Intervals.SchedulerTick},
		{cfg.Intervals.WatcherTickRaw, "watcher_tick", &cfg.Intervals.WatcherTick},
		{cfg.Intervals.ReconnectBackoffRaw, "reconnect_backoff", &cfg.Intervals.ReconnectBackoff},
		{cfg.Intervals.ProbeTimeoutRaw, "probe_timeout", &cfg.Intervals.ProbeTimeout},
		{cfg.Intervals.ExecTimeoutRaw, "exec_timeout", &cfg.Intervals.ExecTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

// applyDefaults fills in zero-valued intervals so the agent never runs
// with an unset cadence.
func applyDefaults(cfg *Config) {
	if cfg.Intervals.SchedulerTick == 0 {
		cfg.Intervals.SchedulerTick = DefaultSchedulerTick
	}
	if cfg.Intervals.WatcherTick == 0 {
		cfg.Intervals.WatcherTick = DefaultWatcherTick
	}
	if cfg.Intervals.ReconnectBackoff == 0 {
		cfg.Intervals.ReconnectBackoff = DefaultReconnectBackoff
	}
	if cfg.Intervals.ProbeTimeout == 0 {
		cfg.Intervals.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Intervals.ExecTimeout == 0 {
		cfg.Intervals.ExecTimeout = DefaultExecTimeout
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

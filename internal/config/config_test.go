// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and defaults

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "agent.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  local_addr: "192.168.1.10"
  overlay_addr: "100.64.0.10"
  port: "8000"
  token: "secret-token"

storage:
  data_dir: "/var/lib/drover"

logging:
  level: "debug"
  format: "json"

intervals:
  scheduler_tick: "10s"
  watcher_tick: "5s"
  reconnect_backoff: "1m"
  probe_timeout: "2s"
  exec_timeout: "30s"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.LocalAddr != "192.168.1.10" {
		t.Errorf("Server.LocalAddr = %q, want %q", cfg.Server.LocalAddr, "192.168.1.10")
	}
	if cfg.Server.OverlayAddr != "100.64.0.10" {
		t.Errorf("Server.OverlayAddr = %q, want %q", cfg.Server.OverlayAddr, "100.64.0.10")
	}
	if cfg.Server.Port != "8000" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8000")
	}
	if cfg.Storage.DataDir != "/var/lib/drover" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/var/lib/drover")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}

	if cfg.Intervals.SchedulerTick != 10*time.Second {
		t.Errorf("Intervals.SchedulerTick = %v, want %v", cfg.Intervals.SchedulerTick, 10*time.Second)
	}
	if cfg.Intervals.WatcherTick != 5*time.Second {
		t.Errorf("Intervals.WatcherTick = %v, want %v", cfg.Intervals.WatcherTick, 5*time.Second)
	}
	if cfg.Intervals.ReconnectBackoff != time.Minute {
		t.Errorf("Intervals.ReconnectBackoff = %v, want %v", cfg.Intervals.ReconnectBackoff, time.Minute)
	}
	if cfg.Intervals.ProbeTimeout != 2*time.Second {
		t.Errorf("Intervals.ProbeTimeout = %v, want %v", cfg.Intervals.ProbeTimeout, 2*time.Second)
	}
	if cfg.Intervals.ExecTimeout != 30*time.Second {
		t.Errorf("Intervals.ExecTimeout = %v, want %v", cfg.Intervals.ExecTimeout, 30*time.Second)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
server:
  local_addr: "192.168.1.10"
  port: "8000"
  token: "secret"

storage:
  data_dir: "/tmp/drover"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Intervals.SchedulerTick != DefaultSchedulerTick {
		t.Errorf("SchedulerTick = %v, want default %v", cfg.Intervals.SchedulerTick, DefaultSchedulerTick)
	}
	if cfg.Intervals.WatcherTick != DefaultWatcherTick {
		t.Errorf("WatcherTick = %v, want default %v", cfg.Intervals.WatcherTick, DefaultWatcherTick)
	}
	if cfg.Intervals.ReconnectBackoff != DefaultReconnectBackoff {
		t.Errorf("ReconnectBackoff = %v, want default %v", cfg.Intervals.ReconnectBackoff, DefaultReconnectBackoff)
	}
	if cfg.Intervals.ProbeTimeout != DefaultProbeTimeout {
		t.Errorf("ProbeTimeout = %v, want default %v", cfg.Intervals.ProbeTimeout, DefaultProbeTimeout)
	}
	if cfg.Intervals.ExecTimeout != DefaultExecTimeout {
		t.Errorf("ExecTimeout = %v, want default %v", cfg.Intervals.ExecTimeout, DefaultExecTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "text")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("DROVER_TEST_TOKEN", "expanded-token")
	t.Setenv("DROVER_TEST_ADDR", "10.0.0.5")

	configPath := writeConfig(t, `
server:
  local_addr: "${DROVER_TEST_ADDR}"
  port: "8000"
  token: "${DROVER_TEST_TOKEN}"

storage:
  data_dir: "/tmp/drover"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Token != "expanded-token" {
		t.Errorf("Server.Token = %q, want %q", cfg.Server.Token, "expanded-token")
	}
	if cfg.Server.LocalAddr != "10.0.0.5" {
		t.Errorf("Server.LocalAddr = %q, want %q", cfg.Server.LocalAddr, "10.0.0.5")
	}
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	configPath := writeConfig(t, `
server:
  local_addr: "192.168.1.10"
  port: "8000"
  token: "${DROVER_DEFINITELY_UNSET_VAR}"

storage:
  data_dir: "/tmp/drover"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error for empty token, got nil")
	}
	if !strings.Contains(err.Error(), "server.token") {
		t.Errorf("Load() error = %v, want mention of server.token", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  local_addr: "192.168.1.10"
  port: "8000"
  token: "secret"

storage:
  data_dir: "/tmp/drover"

intervals:
  scheduler_tick: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "scheduler_tick") {
		t.Errorf("Load() error = %v, want mention of scheduler_tick", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestValidate_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "missing local addr",
			cfg:  Config{Server: ServerConfig{Port: "8000", Token: "t"}, Storage: StorageConfig{DataDir: "/d"}},
			want: "server.local_addr",
		},
		{
			name: "missing port",
			cfg:  Config{Server: ServerConfig{LocalAddr: "h", Token: "t"}, Storage: StorageConfig{DataDir: "/d"}},
			want: "server.port",
		},
		{
			name: "missing token",
			cfg:  Config{Server: ServerConfig{LocalAddr: "h", Port: "8000"}, Storage: StorageConfig{DataDir: "/d"}},
			want: "server.token",
		},
		{
			name: "missing data dir",
			cfg:  Config{Server: ServerConfig{LocalAddr: "h", Port: "8000", Token: "t"}},
			want: "storage.data_dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"graphwatch/internal/lod"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		input string
		want  Source
	}{
		{"graph", SourceGraph},
		{"pipeline", SourcePipeline},
		{"topology", SourceTopology},
		{"invalid", SourceGraph}, // Default
		{"", SourceGraph},        // Default
	}

	for _, tt := range tests {
		if got := ParseSource(tt.input); got != tt.want {
			t.Errorf("ParseSource(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Source != SourceGraph {
		t.Errorf("Source = %s, want %s", cfg.Source, SourceGraph)
	}
	if cfg.Database.Path == "" {
		t.Error("Database.Path should not be empty")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	ch := cfg.ChannelSettings()
	if !ch.Enabled {
		t.Error("channel should be enabled by default")
	}
	if ch.MaxReconnectAttempts != 3 {
		t.Errorf("MaxReconnectAttempts = %d, want 3", ch.MaxReconnectAttempts)
	}
	if ch.BaseDelay != 5*time.Second || ch.Growth != 1.5 {
		t.Errorf("backoff = %s x %v, want 5s x 1.5", ch.BaseDelay, ch.Growth)
	}
	if ch.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %s, want 30s", ch.PollInterval)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	content := `
version: 1
source: pipeline
api:
  url: http://orchestrator:9000
channel:
  url: ws://orchestrator:9000/ws
  enabled: false
  max_reconnect_attempts: 0
  poll_interval: 10s
timeline:
  sample_interval: 1m
  record_interval: 30s
lod:
  default_level: detail
  reveal: [0, 2, 4, -1]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, gotPath, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if gotPath != path {
		t.Errorf("path = %s, want %s", gotPath, path)
	}
	if cfg.Source != SourcePipeline {
		t.Errorf("Source = %s, want pipeline", cfg.Source)
	}

	ch := cfg.ChannelSettings()
	if ch.Enabled {
		t.Error("channel should be disabled")
	}
	if ch.MaxReconnectAttempts != 0 {
		t.Errorf("MaxReconnectAttempts = %d, want explicit 0", ch.MaxReconnectAttempts)
	}
	if ch.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %s, want 10s", ch.PollInterval)
	}
	// Unset values fall back to defaults
	if ch.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %s, want default 30s", ch.HeartbeatInterval)
	}

	p, err := cfg.LODPolicy()
	if err != nil {
		t.Fatalf("LODPolicy: %v", err)
	}
	if p.Reveal[lod.LevelCategory] != 2 || p.Reveal[lod.LevelFull] != lod.Unlimited {
		t.Errorf("Reveal = %v", p.Reveal)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFromPathErrors(t *testing.T) {
	if _, _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("channel:\n  poll_interval: soon\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadFromPath(path); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad source", func(c *Config) { c.Source = "carrier-pigeon" }, "source"},
		{"bad api url", func(c *Config) { c.API.URL = "ftp://x" }, "api.url"},
		{"bad channel url", func(c *Config) { c.Channel.URL = "http://x/ws" }, "channel"},
		{"flat backoff", func(c *Config) { c.Channel.ReconnectGrowth = 1 }, "growth"},
		{"shrinking lod", func(c *Config) { c.LOD.Reveal = []int{3, 1, 5, -1} }, "lod"},
		{"short lod", func(c *Config) { c.LOD.Reveal = []int{0, 1} }, "lod"},
		{"bad level", func(c *Config) { c.LOD.DefaultLevel = "galaxy" }, "default_level"},
		{"slow recorder", func(c *Config) { c.Timeline.RecordInterval = Duration(time.Hour) }, "record_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}

	// Topology-only mode does not need the orchestrator
	cfg := DefaultConfig()
	cfg.Source = SourceTopology
	cfg.API.URL = ""
	cfg.Channel.URL = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("topology source should not need remote settings: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvChannelURL:           "wss://example.com/ws",
		EnvChannelEnabled:       "false",
		EnvMaxReconnectAttempts: "5",
		EnvHeartbeatInterval:    "15000",
		EnvPollInterval:         "45s",
		EnvReconnectGrowth:      "2",
		EnvListenAddr:           ":9999",
		EnvLogLevel:             "debug",
		EnvSource:               "topology",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	cfg.ApplyEnv(lookup, nil)

	ch := cfg.ChannelSettings()
	if ch.URL != "wss://example.com/ws" {
		t.Errorf("URL = %s", ch.URL)
	}
	if ch.Enabled {
		t.Error("Enabled should be false")
	}
	if ch.MaxReconnectAttempts != 5 {
		t.Errorf("MaxReconnectAttempts = %d, want 5", ch.MaxReconnectAttempts)
	}
	if ch.HeartbeatInterval != 15*time.Second {
		t.Errorf("HeartbeatInterval = %s, want 15s from milliseconds", ch.HeartbeatInterval)
	}
	if ch.PollInterval != 45*time.Second {
		t.Errorf("PollInterval = %s, want 45s", ch.PollInterval)
	}
	if ch.Growth != 2 {
		t.Errorf("Growth = %v, want 2", ch.Growth)
	}
	if cfg.Server.ListenAddr != ":9999" || cfg.Log.Level != "debug" || cfg.Source != SourceTopology {
		t.Errorf("unexpected overrides: %+v %+v %s", cfg.Server, cfg.Log, cfg.Source)
	}
}

func TestApplyEnvKeepsDefaultsOnInvalidValues(t *testing.T) {
	env := map[string]string{
		EnvChannelEnabled:       "maybe",
		EnvMaxReconnectAttempts: "-1",
		EnvHeartbeatInterval:    "often",
		EnvPollInterval:         "0",
		EnvReconnectGrowth:      "1",
		EnvLogLevel:             "loud",
		EnvLogFormat:            "xml",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := DefaultConfig()
	want := cfg.ChannelSettings()
	cfg.ApplyEnv(lookup, logger)
	got := cfg.ChannelSettings()

	if got.Enabled != want.Enabled || got.MaxReconnectAttempts != want.MaxReconnectAttempts ||
		got.HeartbeatInterval != want.HeartbeatInterval || got.PollInterval != want.PollInterval ||
		got.Growth != want.Growth {
		t.Errorf("invalid values changed config: got %+v, want %+v", got, want)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log settings changed: %+v", cfg.Log)
	}
	if n := strings.Count(buf.String(), "ignoring invalid environment value"); n != len(env) {
		t.Errorf("logged %d warnings, want %d:\n%s", n, len(env), buf.String())
	}
}

func TestCandidatePaths(t *testing.T) {
	env := map[string]string{
		EnvConfigPath:     "/tmp/explicit.yaml",
		"XDG_CONFIG_HOME": "/xdg",
		"HOME":            "/home/op",
	}
	got := candidatePaths(func(k string) string { return env[k] })
	want := []string{
		"/tmp/explicit.yaml",
		ConfigFileName,
		"/xdg/graphwatch/config.yaml",
		"/home/op/.config/graphwatch/config.yaml",
		"/etc/graphwatch/config.yaml",
	}
	if len(got) != len(want) {
		t.Fatalf("candidatePaths = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidatePaths[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Source = SourcePipeline
	cfg.Channel.PollInterval = Duration(12 * time.Second)
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Source != SourcePipeline {
		t.Errorf("Source = %s", loaded.Source)
	}
	if loaded.Channel.PollInterval.Duration() != 12*time.Second {
		t.Errorf("PollInterval = %s", loaded.Channel.PollInterval.Duration())
	}
}

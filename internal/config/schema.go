package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version  int            `yaml:"version"`
	Source   Source         `yaml:"source"`
	API      APIConfig      `yaml:"api"`
	Channel  ChannelConfig  `yaml:"channel"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Topology TopologyConfig `yaml:"topology"`
	Timeline TimelineConfig `yaml:"timeline"`
	LOD      LODConfig      `yaml:"lod"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig holds the orchestrator REST settings
type APIConfig struct {
	URL         string   `yaml:"url"`
	Timeout     Duration `yaml:"timeout"`
	ActionRate  float64  `yaml:"action_rate"`  // actions per second
	ActionBurst int      `yaml:"action_burst"` // actions sent back to back
}

// ChannelConfig holds the live update channel settings
type ChannelConfig struct {
	URL                  string   `yaml:"url"`
	Enabled              *bool    `yaml:"enabled,omitempty"` // nil = enabled
	Topics               []string `yaml:"topics,omitempty"`
	ConnectTimeout       Duration `yaml:"connect_timeout"`
	HeartbeatInterval    Duration `yaml:"heartbeat_interval"`
	MaxReconnectAttempts *int     `yaml:"max_reconnect_attempts,omitempty"`
	ReconnectBaseDelay   Duration `yaml:"reconnect_base_delay"`
	ReconnectGrowth      float64  `yaml:"reconnect_growth"`
	PollInterval         Duration `yaml:"poll_interval"`
}

// ServerConfig holds the display gateway settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TopologyConfig points at the agent registry
type TopologyConfig struct {
	RegistryPath string `yaml:"registry_path,omitempty"` // empty = built-in registry
}

// TimelineConfig holds recording and playback settings
type TimelineConfig struct {
	SampleInterval Duration `yaml:"sample_interval"`
	FrameDuration  Duration `yaml:"frame_duration"`
	RecordInterval Duration `yaml:"record_interval"`
	Retention      Duration `yaml:"retention"`
}

// LODConfig holds the level-of-detail defaults
type LODConfig struct {
	DefaultLevel string `yaml:"default_level"`
	// Reveal lists per-level quotas from overview to full; -1 is unlimited
	Reveal []int `yaml:"reveal,omitempty"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

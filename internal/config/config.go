// Package config provides configuration management for graphwatch.
//
// Values come from three layers, later layers winning: built-in defaults,
// an optional YAML file, and GRAPHWATCH_* environment variables.
//
// Config file locations (priority order):
//  1. $GRAPHWATCH_CONFIG
//  2. ./graphwatch.yaml
//  3. $XDG_CONFIG_HOME/graphwatch/config.yaml
//  4. ~/.config/graphwatch/config.yaml
//  5. /etc/graphwatch/config.yaml
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"graphwatch/internal/channel"
	"graphwatch/internal/lod"
	"graphwatch/internal/timeline"

	"gopkg.in/yaml.v3"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	ch := channel.DefaultConfig()

	if c.Version == 0 {
		c.Version = 1
	}
	if c.Source == "" {
		c.Source = SourceGraph
	}

	if c.API.URL == "" {
		c.API.URL = "http://localhost:8001"
	}
	setDuration(&c.API.Timeout, 10*time.Second)
	if c.API.ActionRate <= 0 {
		c.API.ActionRate = 2
	}
	if c.API.ActionBurst <= 0 {
		c.API.ActionBurst = 5
	}

	if c.Channel.URL == "" {
		c.Channel.URL = ch.URL
	}
	if c.Channel.Enabled == nil {
		enabled := true
		c.Channel.Enabled = &enabled
	}
	if len(c.Channel.Topics) == 0 {
		c.Channel.Topics = ch.Topics
	}
	setDuration(&c.Channel.ConnectTimeout, ch.ConnectTimeout)
	setDuration(&c.Channel.HeartbeatInterval, ch.HeartbeatInterval)
	if c.Channel.MaxReconnectAttempts == nil {
		n := ch.MaxReconnectAttempts
		c.Channel.MaxReconnectAttempts = &n
	}
	setDuration(&c.Channel.ReconnectBaseDelay, ch.BaseDelay)
	if c.Channel.ReconnectGrowth == 0 {
		c.Channel.ReconnectGrowth = ch.Growth
	}
	setDuration(&c.Channel.PollInterval, ch.PollInterval)

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8090"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./graphwatch.db"
	}

	setDuration(&c.Timeline.SampleInterval, timeline.DefaultSampleInterval)
	setDuration(&c.Timeline.FrameDuration, timeline.DefaultFrameDuration)
	setDuration(&c.Timeline.RecordInterval, time.Minute)
	setDuration(&c.Timeline.Retention, 7*24*time.Hour)

	if c.LOD.DefaultLevel == "" {
		c.LOD.DefaultLevel = lod.LevelCategory.String()
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func setDuration(d *Duration, def time.Duration) {
	if *d <= 0 {
		*d = Duration(def)
	}
}

// Validate reports every setting the components cannot start with
func (c *Config) Validate() error {
	var errs []error
	if !c.Source.Valid() {
		errs = append(errs, fmt.Errorf("source: unknown %q", c.Source))
	}
	if c.Source.Remote() {
		if u, err := url.Parse(c.API.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("api.url: %q is not an http(s) url", c.API.URL))
		}
		if err := c.ChannelSettings().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("channel: %w", err))
		}
	}
	if _, err := c.LODPolicy(); err != nil {
		errs = append(errs, fmt.Errorf("lod: %w", err))
	}
	if _, err := lod.ParseLevel(c.LOD.DefaultLevel); err != nil {
		errs = append(errs, fmt.Errorf("lod.default_level: %w", err))
	}
	if c.Timeline.RecordInterval.Duration() > c.Timeline.SampleInterval.Duration() {
		errs = append(errs, errors.New("timeline: record_interval must not exceed sample_interval"))
	}
	return errors.Join(errs...)
}

// ChannelSettings converts the channel section for the live update channel
func (c *Config) ChannelSettings() channel.Config {
	enabled := c.Channel.Enabled == nil || *c.Channel.Enabled
	attempts := channel.DefaultConfig().MaxReconnectAttempts
	if c.Channel.MaxReconnectAttempts != nil {
		attempts = *c.Channel.MaxReconnectAttempts
	}
	return channel.Config{
		URL:                  c.Channel.URL,
		Enabled:              enabled,
		Topics:               c.Channel.Topics,
		ConnectTimeout:       c.Channel.ConnectTimeout.Duration(),
		HeartbeatInterval:    c.Channel.HeartbeatInterval.Duration(),
		WriteTimeout:         channel.DefaultConfig().WriteTimeout,
		MaxReconnectAttempts: attempts,
		BaseDelay:            c.Channel.ReconnectBaseDelay.Duration(),
		Growth:               c.Channel.ReconnectGrowth,
		PollInterval:         c.Channel.PollInterval.Duration(),
	}
}

// LODPolicy returns the configured reveal quotas, or the default policy
// when none are set
func (c *Config) LODPolicy() (lod.Policy, error) {
	if len(c.LOD.Reveal) == 0 {
		return lod.DefaultPolicy(), nil
	}
	levels := lod.Levels()
	if len(c.LOD.Reveal) != len(levels) {
		return lod.Policy{}, fmt.Errorf("%w: reveal needs %d quotas, got %d", lod.ErrInvalidPolicy, len(levels), len(c.LOD.Reveal))
	}
	var p lod.Policy
	for i, l := range levels {
		p.Reveal[l] = c.LOD.Reveal[i]
	}
	if err := p.Validate(); err != nil {
		return lod.Policy{}, err
	}
	return p, nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	ch := c.ChannelSettings()
	summary := fmt.Sprintf("Source: %s, API: %s, Listen: %s\n", c.Source, c.API.URL, c.Server.ListenAddr)
	summary += fmt.Sprintf("Channel: %s (enabled: %t, reconnects: %d, poll: %s)\n",
		ch.URL, ch.Enabled, ch.MaxReconnectAttempts, ch.PollInterval)
	summary += fmt.Sprintf("Timeline: sample %s, record %s, retain %s",
		c.Timeline.SampleInterval.Duration(), c.Timeline.RecordInterval.Duration(), c.Timeline.Retention.Duration())
	return summary
}

package config

import (
	"log/slog"
	"strconv"
	"time"
)

// Environment variable names
const (
	EnvChannelURL           = "GRAPHWATCH_CHANNEL_URL"
	EnvChannelEnabled       = "GRAPHWATCH_CHANNEL_ENABLED"
	EnvMaxReconnectAttempts = "GRAPHWATCH_MAX_RECONNECT_ATTEMPTS"
	EnvHeartbeatInterval    = "GRAPHWATCH_HEARTBEAT_INTERVAL"
	EnvPollInterval         = "GRAPHWATCH_POLL_INTERVAL"
	EnvConnectTimeout       = "GRAPHWATCH_CONNECT_TIMEOUT"
	EnvReconnectBaseDelay   = "GRAPHWATCH_RECONNECT_BASE_DELAY"
	EnvReconnectGrowth      = "GRAPHWATCH_RECONNECT_GROWTH"
	EnvAPIURL               = "GRAPHWATCH_API_URL"
	EnvListenAddr           = "GRAPHWATCH_LISTEN_ADDR"
	EnvDBPath               = "GRAPHWATCH_DB_PATH"
	EnvRegistryPath         = "GRAPHWATCH_REGISTRY_PATH"
	EnvLogLevel             = "GRAPHWATCH_LOG_LEVEL"
	EnvLogFormat            = "GRAPHWATCH_LOG_FORMAT"
	EnvSource               = "GRAPHWATCH_SOURCE"
)

// ApplyEnv overrides config values from the environment. lookup is usually
// os.LookupEnv. A value that does not parse is logged and the current value
// is kept.
func (c *Config) ApplyEnv(lookup func(string) (string, bool), logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e := envReader{lookup: lookup, logger: logger.With("component", "config")}

	e.str(EnvChannelURL, &c.Channel.URL)
	e.str(EnvAPIURL, &c.API.URL)
	e.str(EnvListenAddr, &c.Server.ListenAddr)
	e.str(EnvDBPath, &c.Database.Path)
	e.str(EnvRegistryPath, &c.Topology.RegistryPath)

	if v, ok := e.get(EnvChannelEnabled); ok {
		if b, err := strconv.ParseBool(v); err != nil {
			e.invalid(EnvChannelEnabled, v, err)
		} else {
			c.Channel.Enabled = &b
		}
	}
	if v, ok := e.get(EnvMaxReconnectAttempts); ok {
		if n, err := strconv.Atoi(v); err != nil || n < 0 {
			e.invalid(EnvMaxReconnectAttempts, v, err)
		} else {
			c.Channel.MaxReconnectAttempts = &n
		}
	}
	if v, ok := e.get(EnvReconnectGrowth); ok {
		if f, err := strconv.ParseFloat(v, 64); err != nil || f <= 1 {
			e.invalid(EnvReconnectGrowth, v, err)
		} else {
			c.Channel.ReconnectGrowth = f
		}
	}

	e.duration(EnvHeartbeatInterval, &c.Channel.HeartbeatInterval)
	e.duration(EnvPollInterval, &c.Channel.PollInterval)
	e.duration(EnvConnectTimeout, &c.Channel.ConnectTimeout)
	e.duration(EnvReconnectBaseDelay, &c.Channel.ReconnectBaseDelay)

	if v, ok := e.get(EnvLogLevel); ok {
		switch v {
		case "debug", "info", "warn", "error":
			c.Log.Level = v
		default:
			e.invalid(EnvLogLevel, v, nil)
		}
	}
	if v, ok := e.get(EnvLogFormat); ok {
		switch v {
		case "text", "json":
			c.Log.Format = v
		default:
			e.invalid(EnvLogFormat, v, nil)
		}
	}
	if v, ok := e.get(EnvSource); ok {
		if s := Source(v); s.Valid() {
			c.Source = s
		} else {
			e.invalid(EnvSource, v, nil)
		}
	}
}

type envReader struct {
	lookup func(string) (string, bool)
	logger *slog.Logger
}

func (e envReader) get(name string) (string, bool) {
	v, ok := e.lookup(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e envReader) invalid(name, value string, err error) {
	if err != nil {
		e.logger.Warn("ignoring invalid environment value", "var", name, "value", value, "error", err)
		return
	}
	e.logger.Warn("ignoring invalid environment value", "var", name, "value", value)
}

func (e envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

// duration accepts Go duration strings and bare integers as milliseconds
func (e envReader) duration(name string, dst *Duration) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		if ms <= 0 {
			e.invalid(name, v, nil)
			return
		}
		*dst = Duration(time.Duration(ms) * time.Millisecond)
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.invalid(name, v, err)
		return
	}
	*dst = Duration(d)
}

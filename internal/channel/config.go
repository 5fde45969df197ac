package channel

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"
)

// Config controls the live update channel
type Config struct {
	// URL of the websocket endpoint (ws:// or wss://)
	URL string
	// Enabled false skips the socket entirely and polls from the start
	Enabled bool
	// Topics declared in the subscribe message sent on open
	Topics []string

	// ConnectTimeout bounds a single connection attempt
	ConnectTimeout time.Duration
	// HeartbeatInterval is the ping period while open
	HeartbeatInterval time.Duration
	// WriteTimeout bounds a single outbound frame
	WriteTimeout time.Duration

	// MaxReconnectAttempts is the number of reconnects scheduled before
	// settling into polling fallback
	MaxReconnectAttempts int
	// BaseDelay is the first reconnect delay
	BaseDelay time.Duration
	// Growth multiplies the delay after each failed attempt
	Growth float64

	// PollInterval is the refresh period in polling fallback
	PollInterval time.Duration
}

// DefaultTopics are the agreed topics the dashboard subscribes to
var DefaultTopics = []string{"agents", "connections", "incidents", "tasks", "metrics"}

// DefaultConfig returns the standard channel settings
func DefaultConfig() Config {
	return Config{
		URL:                  "ws://localhost:8001/ws",
		Enabled:              true,
		Topics:               DefaultTopics,
		ConnectTimeout:       10 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		WriteTimeout:         5 * time.Second,
		MaxReconnectAttempts: 3,
		BaseDelay:            5 * time.Second,
		Growth:               1.5,
		PollInterval:         30 * time.Second,
	}
}

// Validate checks the config for values the state machine cannot work with
func (c Config) Validate() error {
	var errs []error
	if c.Enabled {
		u, err := url.Parse(c.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("url: %w", err))
		} else if u.Scheme != "ws" && u.Scheme != "wss" {
			errs = append(errs, fmt.Errorf("url: scheme %q is not ws or wss", u.Scheme))
		}
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("connect timeout must be positive"))
	}
	if c.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("heartbeat interval must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.MaxReconnectAttempts < 0 {
		errs = append(errs, errors.New("max reconnect attempts must not be negative"))
	}
	if c.BaseDelay <= 0 {
		errs = append(errs, errors.New("base delay must be positive"))
	}
	if c.Growth <= 1 {
		errs = append(errs, errors.New("growth factor must be greater than 1"))
	}
	return errors.Join(errs...)
}

// Backoff returns the delay before reconnect number attempt (zero based):
// BaseDelay * Growth^attempt.
func (c Config) Backoff(attempt int) time.Duration {
	return time.Duration(float64(c.BaseDelay) * math.Pow(c.Growth, float64(attempt)))
}

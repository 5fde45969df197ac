package channel

import "time"

// Status is the observable connectivity state. Consumers render it without
// touching the socket.
type Status struct {
	State             State     `json:"state"`
	Connected         bool      `json:"connected"`
	Connecting        bool      `json:"connecting"`
	Polling           bool      `json:"polling"`
	Error             string    `json:"error,omitempty"`
	LastUpdate        time.Time `json:"lastUpdate"`
	ReconnectAttempts int       `json:"reconnectAttempts"`
	// RetryDelayMs is the delay of the pending reconnect, zero if none
	RetryDelayMs int64   `json:"retryDelayMs,omitempty"`
	LatencyMs    float64 `json:"latencyMs,omitempty"`
}

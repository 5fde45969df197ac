package channel

import "fmt"

// State is the connection lifecycle state of a Client
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateErrored
	// StatePollingFallback is terminal for the session: only Disconnect
	// leaves it.
	StatePollingFallback
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateConnecting:      "connecting",
	StateOpen:            "open",
	StateClosed:          "closed",
	StateErrored:         "errored",
	StatePollingFallback: "polling",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText renders the state name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transitions lists the allowed next states. Disconnect may return to Idle
// from anywhere.
var transitions = map[State][]State{
	StateIdle:            {StateConnecting, StatePollingFallback},
	StateConnecting:      {StateOpen, StateClosed, StateErrored},
	StateOpen:            {StateClosed, StateErrored},
	StateClosed:          {StateConnecting, StatePollingFallback},
	StateErrored:         {StateConnecting, StatePollingFallback},
	StatePollingFallback: {},
}

// CanTransition reports whether from -> to is a legal move
func CanTransition(from, to State) bool {
	if to == StateIdle {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

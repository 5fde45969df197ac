package store

// Mode says what the published view shows
type Mode int

const (
	ModeLive Mode = iota
	ModePlayback
)

func (m Mode) String() string {
	if m == ModePlayback {
		return "playback"
	}
	return "live"
}

// MarshalText renders the mode by name in JSON
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

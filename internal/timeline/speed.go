package timeline

import (
	"fmt"
	"slices"
	"time"
)

// Speed multiplies the playback rate
type Speed float64

// Speeds are the supported multipliers, slowest first
var Speeds = []Speed{0.5, 1, 2, 4, 8}

// Valid reports whether s is one of Speeds
func (s Speed) Valid() bool {
	return slices.Contains(Speeds, s)
}

// ParseSpeed validates a raw multiplier
func ParseSpeed(f float64) (Speed, error) {
	s := Speed(f)
	if !s.Valid() {
		return 0, fmt.Errorf("%w: %g (want one of %v)", ErrInvalidSpeed, f, Speeds)
	}
	return s, nil
}

// period is the wall time one snapshot stays on screen at this speed
func (s Speed) period(base time.Duration) time.Duration {
	return time.Duration(float64(base) / float64(s))
}

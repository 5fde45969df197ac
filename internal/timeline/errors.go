package timeline

import "errors"

var (
	ErrInvalidSpeed = errors.New("unsupported playback speed")
	ErrInvalidRange = errors.New("invalid time range")
	ErrNoLoader     = errors.New("no snapshot source available")
)

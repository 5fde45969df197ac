package store

import "errors"

var (
	ErrInvalidGraph  = errors.New("invalid graph")
	ErrInvalidDelta  = errors.New("invalid delta")
	ErrUnknownTarget = errors.New("delta target not in graph")
)

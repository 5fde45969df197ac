package domain

import "errors"

var (
	ErrInvalidNode        = errors.New("invalid node")
	ErrInvalidConnection  = errors.New("invalid connection")
	ErrInvalidIncident    = errors.New("invalid incident")
	ErrInvalidMetrics     = errors.New("invalid metrics")
	ErrDanglingReference  = errors.New("dangling reference")
	ErrUnorderedSnapshots = errors.New("snapshot timestamps not strictly increasing")
)

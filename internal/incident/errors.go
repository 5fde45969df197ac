package incident

import "errors"

var (
	ErrDanglingReference = errors.New("causality chain references unknown node")
	ErrUnknownIncident   = errors.New("unknown incident")
	ErrNoResolver        = errors.New("no resolver configured")
)

package topology

import "errors"

var (
	ErrMissingHead      = errors.New("category has no head agent")
	ErrMultipleHeads    = errors.New("category has more than one head agent")
	ErrMissingRoot      = errors.New("registry has no root agent")
	ErrMultipleRoots    = errors.New("registry has more than one root agent")
	ErrDuplicateAgent   = errors.New("duplicate agent id")
	ErrUnknownCategory  = errors.New("unknown agent category")
	ErrUnknownRole      = errors.New("unknown agent role")
	ErrUnknownOwner     = errors.New("infra agent references unknown owner")
	ErrInvalidAgent     = errors.New("invalid agent definition")
	ErrRegistryNotFound = errors.New("registry file not found")
)

package reconcile

import "errors"

var (
	ErrUnsupportedKind = errors.New("unsupported resource kind")
	ErrInvalidSpec     = errors.New("invalid workload spec")
)

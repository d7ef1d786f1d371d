package security

import "errors"

var (
	ErrUnknownEventType = errors.New("unknown security event type")
	ErrUnknownSeverity  = errors.New("unknown severity")
	ErrInvalidThreshold = errors.New("invalid alert threshold")
)

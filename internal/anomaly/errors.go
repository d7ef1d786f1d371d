package anomaly

import "errors"

var (
	ErrUnknownFamily = errors.New("unknown anomaly detector family")
	ErrNilDetector   = errors.New("nil anomaly detector")
)

package metrics

import (
	"errors"
)

// Sentinel kinds for metrics errors.
var (
	ErrNilCollector = errors.New("metrics: nil collector")
)

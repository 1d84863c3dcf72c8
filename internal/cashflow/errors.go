package cashflow

import "errors"

// Fatal input errors. Callers must not proceed with a snapshot when Compute
// returns one of these; use errors.Is to distinguish them.
var (
	// ErrNoData means the revenue series was empty.
	ErrNoData = errors.New("no revenue data provided")

	// ErrRateOutOfRange means the variable cost rate was outside [0, 1].
	ErrRateOutOfRange = errors.New("variable cost rate must be between 0 and 1")

	// ErrMalformedSample means a revenue sample arrived without an amount.
	ErrMalformedSample = errors.New("revenue sample missing amount")
)

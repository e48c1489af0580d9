package extractor

import "errors"

// Extraction errors. Each one fails the event; window-level problems never do.
var (
	// ErrNoCoverage is returned when the primary instrument has no price
	// data anywhere near the event.
	ErrNoCoverage = errors.New("no price coverage near event")

	// ErrCoverageCheck is returned when the coverage read itself fails, so
	// store outages are not mistaken for missing data.
	ErrCoverageCheck = errors.New("coverage check failed")

	// ErrInvalidEvent is returned for events without id, timestamp or ticker.
	ErrInvalidEvent = errors.New("invalid event")
)

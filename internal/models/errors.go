package models

import "errors"

// Domain error states. The query layer maps these to distinct responses so a
// caller can tell "no data yet" from "baseline not trained" from a real fault.
var (
	// ErrDuplicateReading marks a reading that collided with an existing
	// (site, sector, hour) slot. Recovered locally, latest write wins.
	ErrDuplicateReading = errors.New("duplicate reading for site/sector/hour")

	// ErrInsufficientBaseline means a cell has too few samples to score
	// against. It is a typed result, not a failure.
	ErrInsufficientBaseline = errors.New("baseline has insufficient data")

	// ErrNoData means a query range contains no stored readings or buckets.
	ErrNoData = errors.New("no data for requested range")

	// ErrRefreshTimeout means a scheduled refresh exceeded its time budget
	// and will retry on the next tick.
	ErrRefreshTimeout = errors.New("refresh job exceeded time budget")
)

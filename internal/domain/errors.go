package domain

import "errors"

// Sentinel errors used across all layers.
var (
	ErrNotFound        = errors.New("not found")
	ErrNoSeriesMatched = errors.New("no series matched in source catalog")
)

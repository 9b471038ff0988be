package source

import "errors"

// Sentinel kinds for source errors.
var (
	ErrUpstream     = errors.New("results site request failed")
	ErrNotFound     = errors.New("results table not found")
	ErrMissingTiref = errors.New("swimmer has no tiref")
)

package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("swimmer not found")
	ErrInvalidLimit = errors.New("invalid board limit")
	ErrEmptyRun     = errors.New("empty run date")
)

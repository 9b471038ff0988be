package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrBackpressure = errors.New("refresh queue is full")
	ErrUnavailable  = errors.New("snapshot store not configured")
	ErrNotStarted   = errors.New("service not started")
)

package service

import "errors"

// Sentinel errors returned by the service.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrBackpressure = errors.New("review queue is full")
	ErrNotStarted   = errors.New("service not started")
	ErrEventClosed  = errors.New("event is closed")
)

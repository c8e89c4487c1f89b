package service

import "errors"

// Sentinel kinds for session errors.
var (
	ErrNotStarted = errors.New("session not started")
	ErrBusy       = errors.New("command queue full")
	ErrStopped    = errors.New("session stopped")
)

package model

import "errors"

// Sentinel kinds for spike set errors.
var (
	// ErrConsistencyViolation reports parallel columns that disagree in length.
	// It marks a programming error: callers must refuse the edit that produced it.
	ErrConsistencyViolation = errors.New("spike set consistency violation")
	ErrInvalidRecording     = errors.New("invalid recording")
)

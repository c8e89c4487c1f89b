package project

import "errors"

// Sentinel kinds for projection errors.
var (
	// ErrInsufficientSamples is returned when fewer than two waveforms are
	// given; a two-component decomposition is undefined there.
	ErrInsufficientSamples = errors.New("insufficient samples for projection")
	ErrDecomposition       = errors.New("principal component decomposition failed")
	ErrShape               = errors.New("waveforms differ in length")
)

package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure, whatever layer set the value.
	ErrInvalidConfig = errors.New("config: invalid value")
	// ErrLoadConfig wraps file, env and decode failures in Load.
	ErrLoadConfig = errors.New("config: load failed")
)

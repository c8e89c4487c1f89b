package signalfile

import "errors"

// Sentinel kinds for recording file errors.
var (
	ErrMalformed = errors.New("malformed recording file")
	ErrOpen      = errors.New("open recording file failed")
)

package extract

import "errors"

// Sentinel kinds for extraction errors.
var (
	ErrWindowOutOfBounds = errors.New("extraction window out of bounds")
)

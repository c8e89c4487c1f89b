package detect

import "errors"

// Sentinel kinds for detection errors.
var (
	ErrInvalidParameters = errors.New("invalid detection parameters")
)

package curation

import "errors"

// Sentinel kinds for curation errors. ErrEmptyUndoStack and
// ErrInvalidCommand are reported and recovered; a consistency violation
// (model.ErrConsistencyViolation) is fatal for the edit that raised it.
var (
	ErrEmptyUndoStack = errors.New("nothing to undo")
	ErrInvalidCommand = errors.New("command not valid in current mode")
	ErrUnknownCommand = errors.New("unknown command")
)

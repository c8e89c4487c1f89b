package curation

import "github.com/okian/spikecurator/pkg/logger"

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for refused edits and debug traces.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

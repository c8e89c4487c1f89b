package service

import (
	"github.com/okian/spikecurator/internal/domain/project"
	"github.com/okian/spikecurator/pkg/logger"
)

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithHeightThreshold sets the initial peak height threshold.
func WithHeightThreshold(threshold float64) Option {
	return func(s *Session) {
		s.heightThreshold = threshold
	}
}

// WithWindowSeconds sets the pre/post waveform margins in seconds.
func WithWindowSeconds(pre, post float64) Option {
	return func(s *Session) {
		if pre >= 0 && post >= 0 {
			s.preSeconds, s.postSeconds = pre, post
		}
	}
}

// WithRefractorySeconds sets the minimum separation between peaks.
func WithRefractorySeconds(refractory float64) Option {
	return func(s *Session) {
		if refractory >= 0 {
			s.refractory = refractory
		}
	}
}

// WithProjectionPolicy selects refit-per-edit or a fixed feature basis.
func WithProjectionPolicy(p project.Policy) Option {
	return func(s *Session) {
		if p != "" {
			s.policy = p
		}
	}
}

// WithQueueSize sets the maximum number of pending commands.
func WithQueueSize(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many command ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the session.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Package project reduces spike waveforms to a two-dimensional feature space.
package project

import "fmt"

// Policy selects how the basis is obtained across successive calls.
type Policy string

const (
	// PolicyRefit fits a fresh basis on every call.
	PolicyRefit Policy = "refit"
	// PolicyFixed fits once, on the first call with enough samples, and
	// reuses that mean and basis until Reset.
	PolicyFixed Policy = "fixed"
)

// ParsePolicy maps a config string onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyRefit:
		return PolicyRefit, nil
	case PolicyFixed:
		return PolicyFixed, nil
	default:
		return "", fmt.Errorf("unknown projection policy %q", s)
	}
}

// Option applies a configuration option to the PCA projector.
type Option func(*PCA)

// WithPolicy sets the basis policy.
func WithPolicy(p Policy) Option {
	return func(c *PCA) {
		if p == PolicyRefit || p == PolicyFixed {
			c.policy = p
		}
	}
}

// Package model contains the domain models shared by detection, extraction,
// projection and curation.
package model

import (
	"fmt"
	"math"
)

// Recording is a filtered analog signal handed to the core by a loader.
// The core never mutates it.
type Recording struct {
	Samples     []float64 // filtered voltage
	SampleTimes []float64 // seconds, strictly increasing
	SampleRate  float64   // Hz
}

// Validate checks the shape contract a loader must honour.
func (r Recording) Validate() error {
	if r.SampleRate <= 0 || math.IsNaN(r.SampleRate) || math.IsInf(r.SampleRate, 0) {
		return fmt.Errorf("%w: sample rate %v", ErrInvalidRecording, r.SampleRate)
	}
	if len(r.Samples) != len(r.SampleTimes) {
		return fmt.Errorf("%w: %d samples vs %d sample times", ErrInvalidRecording, len(r.Samples), len(r.SampleTimes))
	}
	for i := 1; i < len(r.SampleTimes); i++ {
		if r.SampleTimes[i] <= r.SampleTimes[i-1] {
			return fmt.Errorf("%w: sample times not increasing at index %d", ErrInvalidRecording, i)
		}
	}
	return nil
}

// Len returns the number of samples.
func (r Recording) Len() int { return len(r.Samples) }

// Duration returns the covered time span in seconds.
func (r Recording) Duration() float64 {
	if len(r.SampleTimes) < 2 {
		return 0
	}
	return r.SampleTimes[len(r.SampleTimes)-1] - r.SampleTimes[0]
}

// Window holds the pre/post sample margins around a peak.
type Window struct {
	PreSamples  int
	PostSamples int
}

// WindowFromSeconds converts pre/post spans to sample counts, rounding
// halves to even.
func WindowFromSeconds(pre, post, sampleRate float64) Window {
	return Window{
		PreSamples:  int(math.RoundToEven(pre * sampleRate)),
		PostSamples: int(math.RoundToEven(post * sampleRate)),
	}
}

// Width is the waveform length W = pre + post + 1.
func (w Window) Width() int { return w.PreSamples + w.PostSamples + 1 }

// Fits reports whether a window centred on index fits inside n samples.
func (w Window) Fits(index, n int) bool {
	return index-w.PreSamples >= 0 && index+w.PostSamples <= n-1
}

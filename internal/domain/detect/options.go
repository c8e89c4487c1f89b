// Package detect locates candidate spikes in a filtered voltage trace.
package detect

import "github.com/okian/spikecurator/internal/domain/model"

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithWindow sets the extraction window used for edge exclusion. Peaks whose
// window would run off either end of the trace are dropped.
func WithWindow(w model.Window) Option {
	return func(d *Detector) {
		if w.PreSamples >= 0 && w.PostSamples >= 0 {
			d.window = w
		}
	}
}

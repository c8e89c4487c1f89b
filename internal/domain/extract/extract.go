// Package extract slices fixed-length waveform snippets around detected peaks.
package extract

import (
	"fmt"

	"github.com/okian/spikecurator/internal/domain/model"
)

// Extract returns one waveform per index, samples[i-pre .. i+post] inclusive,
// and the matching spike times taken from sampleTimes.
//
// Every index must leave enough margin on both sides. The detector filters
// such peaks out, so an index that does not fit is a programming error and
// Extract panics with an error wrapping ErrWindowOutOfBounds.
func Extract(samples, sampleTimes []float64, indices []int, w model.Window) ([][]float64, []float64) {
	if len(sampleTimes) != len(samples) {
		panic(fmt.Errorf("%w: %d samples vs %d sample times", ErrWindowOutOfBounds, len(samples), len(sampleTimes)))
	}
	width := w.Width()
	waveforms := make([][]float64, len(indices))
	times := make([]float64, len(indices))
	for k, i := range indices {
		if !w.Fits(i, len(samples)) {
			panic(fmt.Errorf("%w: index %d with pre=%d post=%d in %d samples",
				ErrWindowOutOfBounds, i, w.PreSamples, w.PostSamples, len(samples)))
		}
		wf := make([]float64, width)
		copy(wf, samples[i-w.PreSamples:i+w.PostSamples+1])
		waveforms[k] = wf
		times[k] = sampleTimes[i]
	}
	return waveforms, times
}

// TimeAxis returns the W sample offsets of a waveform in seconds, starting
// at zero.
func TimeAxis(w model.Window, sampleRate float64) []float64 {
	axis := make([]float64, w.Width())
	for j := range axis {
		axis[j] = float64(j) / sampleRate
	}
	return axis
}

// SpikeSet runs Extract and packs the result with the detector's heights.
func SpikeSet(rec model.Recording, indices []int, heights []float64, w model.Window) (model.SpikeSet, error) {
	waveforms, times := Extract(rec.Samples, rec.SampleTimes, indices, w)
	return model.NewSpikeSet(w.Width(), times, heights, waveforms)
}

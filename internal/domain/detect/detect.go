// Package detect locates candidate spikes in a filtered voltage trace.
//
// Detection follows the usual peak-finding pipeline: local maxima (flat tops
// resolve to their middle sample), a minimum height, non-maximum suppression
// within the refractory distance and finally edge exclusion for peaks whose
// extraction window does not fit inside the trace.
package detect

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/spikecurator/internal/domain/model"
)

// Detector finds peaks. It is stateless apart from its configuration and
// safe for concurrent use.
type Detector struct {
	window model.Window
}

// New creates a Detector. Without WithWindow no edge exclusion beyond the
// trace bounds applies.
func New(opts ...Option) *Detector {
	d := &Detector{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Window returns the configured extraction window.
func (d *Detector) Window() model.Window { return d.window }

// Detect returns the sample indices and heights of accepted peaks, in
// ascending index order. Finding nothing is not an error.
func (d *Detector) Detect(samples []float64, sampleRate, heightThreshold, refractorySeconds float64) ([]int, []float64, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) {
		return nil, nil, fmt.Errorf("%w: sample rate %v", ErrInvalidParameters, sampleRate)
	}
	if refractorySeconds < 0 || math.IsNaN(refractorySeconds) {
		return nil, nil, fmt.Errorf("%w: refractory %v", ErrInvalidParameters, refractorySeconds)
	}

	peaks := localMaxima(samples)
	peaks = aboveHeight(samples, peaks, heightThreshold)
	distance := int(math.RoundToEven(refractorySeconds * sampleRate))
	peaks = suppress(samples, peaks, distance)

	indices := make([]int, 0, len(peaks))
	heights := make([]float64, 0, len(peaks))
	for _, p := range peaks {
		if !d.window.Fits(p, len(samples)) {
			continue
		}
		indices = append(indices, p)
		heights = append(heights, samples[p])
	}
	return indices, heights, nil
}

// localMaxima finds samples strictly higher than their left neighbour and
// higher than the first differing sample on their right. For a flat top the
// middle sample (rounded down) is reported. The first and last samples are
// never maxima.
func localMaxima(x []float64) []int {
	var out []int
	i := 1
	last := len(x) - 1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				right := ahead - 1
				out = append(out, (i+right)/2)
				i = ahead
				continue
			}
		}
		i++
	}
	return out
}

func aboveHeight(x []float64, peaks []int, threshold float64) []int {
	out := peaks[:0:0]
	for _, p := range peaks {
		if x[p] >= threshold {
			out = append(out, p)
		}
	}
	return out
}

// suppress keeps, among peaks closer than distance samples, only the
// tallest. Equal heights favour the left-most peak. Input and output are in
// ascending index order.
func suppress(x []float64, peaks []int, distance int) []int {
	if distance <= 1 || len(peaks) < 2 {
		return peaks
	}
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return x[peaks[order[a]]] > x[peaks[order[b]]]
	})

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}
	for _, j := range order {
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}

	out := make([]int, 0, len(peaks))
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

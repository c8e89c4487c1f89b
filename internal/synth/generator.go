// Package synth generates filtered-looking recordings with embedded spikes
// of two distinct shapes, for demos and tests.
package synth

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/okian/spikecurator/internal/domain/model"
)

// ErrInvalidConfig reports generator settings that cannot be honoured.
var ErrInvalidConfig = errors.New("invalid synth config")

// Shape identifies which template a spike was drawn from.
type Shape int

const (
	ShapeNarrow Shape = iota // fast biphasic unit
	ShapeBroad               // slower unit with a shallow trough
)

// Truth lists the embedded spikes in time order.
type Truth struct {
	PeakIndices []int
	Times       []float64
	Shapes      []Shape
}

// halfSpan is how far a template extends on each side of its peak.
const halfSpan = 2e-3

// Generate builds a recording according to cfg.
func Generate(cfg Config) (model.Recording, Truth, error) {
	if cfg.SampleRate <= 0 || cfg.Seconds <= 0 || cfg.Spikes < 0 || cfg.NoiseStd < 0 {
		return model.Recording{}, Truth{}, fmt.Errorf("%w: %+v", ErrInvalidConfig, cfg)
	}
	n := int(math.Round(cfg.Seconds * cfg.SampleRate))
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible test signal

	rec := model.Recording{
		Samples:     make([]float64, n),
		SampleTimes: make([]float64, n),
		SampleRate:  cfg.SampleRate,
	}
	for i := range rec.SampleTimes {
		rec.SampleTimes[i] = float64(i) / cfg.SampleRate
		rec.Samples[i] = cfg.NoiseStd * rng.NormFloat64()
	}

	peaks, err := placePeaks(rng, n, cfg)
	if err != nil {
		return model.Recording{}, Truth{}, err
	}

	truth := Truth{
		PeakIndices: peaks,
		Times:       make([]float64, len(peaks)),
		Shapes:      make([]Shape, len(peaks)),
	}
	span := int(math.Ceil(halfSpan * cfg.SampleRate))
	for k, p := range peaks {
		shape := Shape(rng.IntN(2))
		truth.Times[k] = rec.SampleTimes[p]
		truth.Shapes[k] = shape
		amp := cfg.Amplitudes[shape]
		for j := -span; j <= span; j++ {
			if i := p + j; i >= 0 && i < n {
				rec.Samples[i] += amp * template(shape, float64(j)/cfg.SampleRate)
			}
		}
	}
	return rec, truth, nil
}

// placePeaks draws distinct peak indices at least MinGap apart, keeping a
// template's span clear of both ends.
func placePeaks(rng *rand.Rand, n int, cfg Config) ([]int, error) {
	margin := int(math.Ceil(halfSpan*cfg.SampleRate)) + 1
	gap := int(math.Ceil(cfg.MinGap.Seconds() * cfg.SampleRate))
	usable := n - 2*margin
	if cfg.Spikes > 0 && (usable <= 0 || (cfg.Spikes-1)*gap >= usable) {
		return nil, fmt.Errorf("%w: %d spikes %v apart do not fit in %vs", ErrInvalidConfig, cfg.Spikes, cfg.MinGap, cfg.Seconds)
	}

	const attemptsPerSpike = 1000
	peaks := make([]int, 0, cfg.Spikes)
	for attempts := 0; len(peaks) < cfg.Spikes; attempts++ {
		if attempts > attemptsPerSpike*cfg.Spikes {
			return nil, fmt.Errorf("%w: could not place %d spikes", ErrInvalidConfig, cfg.Spikes)
		}
		p := margin + rng.IntN(usable)
		i := sort.SearchInts(peaks, p)
		if (i > 0 && p-peaks[i-1] < gap) || (i < len(peaks) && peaks[i]-p < gap) {
			continue
		}
		peaks = append(peaks, 0)
		copy(peaks[i+1:], peaks[i:])
		peaks[i] = p
	}
	return peaks, nil
}

// template is the spike shape at offset t seconds from its peak, scaled so
// the peak is close to 1.
func template(s Shape, t float64) float64 {
	gauss := func(t, mu, sigma float64) float64 {
		z := (t - mu) / sigma
		return math.Exp(-z * z)
	}
	switch s {
	case ShapeNarrow:
		return gauss(t, 0, 0.15e-3) - 0.4*gauss(t, 0.45e-3, 0.25e-3)
	default:
		return gauss(t, 0, 0.3e-3) - 0.2*gauss(t, 0.9e-3, 0.45e-3)
	}
}

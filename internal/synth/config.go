package synth

import "time"

// Config describes a synthetic recording.
type Config struct {
	Seconds    float64 // recording length
	SampleRate float64 // Hz
	Spikes     int     // number of embedded spikes
	Seed       uint64  // generator seed; equal seeds give equal recordings
	NoiseStd   float64 // standard deviation of the additive Gaussian noise
	Amplitudes [2]float64
	MinGap     time.Duration // minimum separation between embedded spikes
}

// Default generator settings.
const (
	defaultSeconds    = 2.0
	defaultSampleRate = 20000.0
	defaultSpikes     = 60
	defaultNoiseStd   = 0.05
	defaultMinGap     = 3 * time.Millisecond
)

// DefaultConfig returns a two-unit recording with modest noise.
func DefaultConfig() Config {
	return Config{
		Seconds:    defaultSeconds,
		SampleRate: defaultSampleRate,
		Spikes:     defaultSpikes,
		Seed:       1,
		NoiseStd:   defaultNoiseStd,
		Amplitudes: [2]float64{1.0, 0.6},
		MinGap:     defaultMinGap,
	}
}

package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/spikecurator/internal/adapters/signalfile"
	"github.com/okian/spikecurator/pkg/logger"
)

// File permission constants.
const (
	truthFilePermission = 0o600
)

// ErrNoOutput is returned when Run has nowhere to write the recording.
var ErrNoOutput = errors.New("synth: output path required")

// RunConfig drives one generator run.
type RunConfig struct {
	Config
	// Out receives the recording as CSV.
	Out string
	// TruthOut, when set, receives the embedded spikes as JSON.
	TruthOut string
}

// truthFile is the JSON layout of a TruthOut file.
type truthFile struct {
	Seed       uint64    `json:"seed"`
	SampleRate float64   `json:"sample_rate"`
	Times      []float64 `json:"times"`
	Indices    []int     `json:"indices"`
	Shapes     []string  `json:"shapes"`
}

func (s Shape) String() string {
	if s == ShapeBroad {
		return "broad"
	}
	return "narrow"
}

// Run generates a recording and writes it, plus the optional truth file.
func Run(ctx context.Context, cfg RunConfig) error {
	if cfg.Out == "" {
		return ErrNoOutput
	}
	start := time.Now()
	log := logger.Get()

	log.Info(ctx, "generating synthetic recording",
		logger.Float64("seconds", cfg.Seconds),
		logger.Float64("sampleRate", cfg.SampleRate),
		logger.Int("spikes", cfg.Spikes),
		logger.Any("seed", cfg.Seed),
		logger.Float64("noiseStd", cfg.NoiseStd))

	rec, truth, err := Generate(cfg.Config)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if err := signalfile.Save(cfg.Out, rec); err != nil {
		return fmt.Errorf("save recording: %w", err)
	}

	if cfg.TruthOut != "" {
		if err := saveTruth(cfg.TruthOut, cfg.Config, truth); err != nil {
			return fmt.Errorf("save truth: %w", err)
		}
	}

	narrow := 0
	for _, s := range truth.Shapes {
		if s == ShapeNarrow {
			narrow++
		}
	}
	log.Info(ctx, "synthetic recording written",
		logger.String("out", cfg.Out),
		logger.Int("samples", rec.Len()),
		logger.Int("narrow", narrow),
		logger.Int("broad", len(truth.Shapes)-narrow),
		logger.Duration("took", time.Since(start)))
	return nil
}

func saveTruth(path string, cfg Config, truth Truth) error {
	shapes := make([]string, len(truth.Shapes))
	for i, s := range truth.Shapes {
		shapes[i] = s.String()
	}
	data, err := json.MarshalIndent(truthFile{
		Seed:       cfg.Seed,
		SampleRate: cfg.SampleRate,
		Times:      truth.Times,
		Indices:    truth.PeakIndices,
		Shapes:     shapes,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, truthFilePermission)
}

// ShowHelp prints usage information for the generator tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `spikecurator-synth
==================

Writes a synthetic recording with two spike shapes embedded in Gaussian
noise, ready for "spikecurator run".

Usage:
  go run ./cmd/synth -out FILE.csv [options]

Options:
  -out string
        Output CSV file (required)
  -truth string
        Optional JSON file listing the embedded spikes
  -seconds float
        Recording length in seconds (default 2)
  -rate float
        Sample rate in Hz (default 20000)
  -spikes int
        Number of embedded spikes (default 60)
  -seed uint
        Generator seed (default 1)
  -noise float
        Noise standard deviation (default 0.05)
  -help
        Show this help message

Examples:
  go run ./cmd/synth -out rec.csv
  go run ./cmd/synth -out rec.csv -seconds 10 -spikes 400 -seed 7 -truth rec.json
`)
}

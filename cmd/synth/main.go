package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/spikecurator/internal/synth"
	"github.com/okian/spikecurator/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	def := synth.DefaultConfig()
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		out     = fs.String("out", "", "Output CSV file")
		truth   = fs.String("truth", "", "Optional JSON file listing the embedded spikes")
		seconds = fs.Float64("seconds", def.Seconds, "Recording length in seconds")
		rate    = fs.Float64("rate", def.SampleRate, "Sample rate in Hz")
		spikes  = fs.Int("spikes", def.Spikes, "Number of embedded spikes")
		seed    = fs.Uint64("seed", def.Seed, "Generator seed")
		noise   = fs.Float64("noise", def.NoiseStd, "Noise standard deviation")
		help    = fs.Bool("help", false, "Show help")
	)
	fs.Usage = func() { synth.ShowHelp(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *help {
		synth.ShowHelp(stderr)
		return 0
	}
	if *out == "" {
		synth.ShowHelp(stderr)
		return 2
	}

	if err := logger.InitWithWriter(stderr); err != nil {
		fmt.Fprintf(stderr, "failed to initialize logging: %v\n", err)
		return 1
	}

	cfg := def
	cfg.Seconds, cfg.SampleRate, cfg.Spikes, cfg.Seed, cfg.NoiseStd = *seconds, *rate, *spikes, *seed, *noise
	if err := synth.Run(ctx, synth.RunConfig{Config: cfg, Out: *out, TruthOut: *truth}); err != nil {
		fmt.Fprintf(stderr, "synth failed: %v\n", err)
		return 1
	}
	return 0
}

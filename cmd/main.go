package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/spikecurator/internal/adapters/http/api"
	"github.com/okian/spikecurator/internal/adapters/http/swagger"
	"github.com/okian/spikecurator/internal/adapters/signalfile"
	app "github.com/okian/spikecurator/internal/app"
	"github.com/okian/spikecurator/internal/config"
	"github.com/okian/spikecurator/pkg/logger"
	"github.com/okian/spikecurator/pkg/metrics"
)

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	sessionMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
	logFilePermission         = 0o600
)

const usage = `spikecurator - interactive spike detection and curation

Usage:
  spikecurator run <signal-file> [flags]

Flags:
  --height-threshold F   peak height threshold (config height_threshold)
  --pre-ms F             waveform samples before the peak, in ms
  --post-ms F            waveform samples after the peak, in ms
  --refractory-ms F      minimum separation between peaks, in ms
  --addr A               HTTP listen address
  --policy P             feature projection policy: refit | fixed
  --log-level L          debug | info | warn | error
  --log-file PATH        write logs to PATH instead of stderr

Configuration is layered: defaults, then the YAML file named by SPIKE_CONFIG,
then SPIKE_* environment variables, then flags.
`

// errUsage marks command line mistakes.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// execute dispatches the subcommand and returns the process exit code.
func execute(ctx context.Context, args []string, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = io.WriteString(stderr, usage)
		return exitUsage
	}
	switch args[0] {
	case "run":
		return runCommand(ctx, args[1:], stderr)
	case "help", "-h", "-help", "--help":
		_, _ = io.WriteString(stderr, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}
}

// runFlags holds the flags given on the command line. Pointers stay nil
// for flags that were not set so config values survive.
type runFlags struct {
	path            string
	heightThreshold *float64
	preMS           *float64
	postMS          *float64
	refractoryMS    *float64
	addr            *string
	policy          *string
	logLevel        *string
	logFile         string
}

func parseRunFlags(args []string, stderr io.Writer) (runFlags, error) {
	var (
		rf       runFlags
		height   float64
		pre      float64
		post     float64
		refr     float64
		addr     string
		policy   string
		logLevel string
	)
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = io.WriteString(stderr, usage) }
	fs.Float64Var(&height, "height-threshold", 0, "peak height threshold")
	fs.Float64Var(&pre, "pre-ms", 0, "waveform pre-peak span in ms")
	fs.Float64Var(&post, "post-ms", 0, "waveform post-peak span in ms")
	fs.Float64Var(&refr, "refractory-ms", 0, "minimum peak separation in ms")
	fs.StringVar(&addr, "addr", "", "HTTP listen address")
	fs.StringVar(&policy, "policy", "", "projection policy: refit | fixed")
	fs.StringVar(&logLevel, "log-level", "", "log level")
	fs.StringVar(&rf.logFile, "log-file", "", "log file")

	// Accept flags on either side of the signal file.
	if err := fs.Parse(args); err != nil {
		return rf, fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() == 0 {
		return rf, fmt.Errorf("%w: missing signal file", errUsage)
	}
	rf.path = fs.Arg(0)
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return rf, fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 0 {
		return rf, fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "height-threshold":
			rf.heightThreshold = &height
		case "pre-ms":
			rf.preMS = &pre
		case "post-ms":
			rf.postMS = &post
		case "refractory-ms":
			rf.refractoryMS = &refr
		case "addr":
			rf.addr = &addr
		case "policy":
			rf.policy = &policy
		case "log-level":
			rf.logLevel = &logLevel
		}
	})
	return rf, nil
}

// apply overlays the set flags onto cfg and re-validates it.
func (rf runFlags) apply(cfg *config.Config) error {
	if rf.heightThreshold != nil {
		cfg.HeightThreshold = *rf.heightThreshold
	}
	if rf.preMS != nil {
		cfg.PreSpikeMS = *rf.preMS
	}
	if rf.postMS != nil {
		cfg.PostSpikeMS = *rf.postMS
	}
	if rf.refractoryMS != nil {
		cfg.RefractoryMS = *rf.refractoryMS
	}
	if rf.addr != nil {
		cfg.Addr = *rf.addr
	}
	if rf.policy != nil {
		cfg.ProjectionPolicy = *rf.policy
	}
	if rf.logLevel != nil {
		cfg.LogLevel = *rf.logLevel
	}
	return cfg.Validate()
}

func runCommand(ctx context.Context, args []string, stderr io.Writer) int {
	rf, err := parseRunFlags(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitUsage
	}

	// Load configuration (defaults -> optional file -> env -> flags)
	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitFailure
	}
	if err := rf.apply(cfg); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitUsage
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitUsage
	}

	logOut := stderr
	if rf.logFile != "" {
		f, err := os.OpenFile(rf.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			fmt.Fprintf(stderr, "failed to open log file: %v\n", err)
			return exitFailure
		}
		defer func() { _ = f.Close() }()
		logOut = f
	}
	if err := logger.Init(logger.WithWriter(logOut), logger.WithFormat(cfg.LogFormat), logger.WithLevel(level)); err != nil {
		fmt.Fprintf(stderr, "failed to initialize logging: %v\n", err)
		return exitFailure
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	rec, err := signalfile.Load(ctx, rf.path)
	if err != nil {
		log.Error(ctx, "failed to load recording", logger.String("path", rf.path), logger.Error(err))
		fmt.Fprintf(stderr, "failed to load recording: %v\n", err)
		return exitFailure
	}
	log.Info(ctx, "recording loaded",
		logger.String("path", rf.path),
		logger.Int("samples", rec.Len()),
		logger.Float64("sampleRate", rec.SampleRate),
		logger.Float64("seconds", rec.Duration()))

	pre, post, refractory := cfg.Seconds()
	sess, err := app.New(rec,
		app.WithLogger(log.Named("session")),
		app.WithHeightThreshold(cfg.HeightThreshold),
		app.WithWindowSeconds(pre, post),
		app.WithRefractorySeconds(refractory),
		app.WithProjectionPolicy(cfg.Policy()),
		app.WithQueueSize(cfg.CommandQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
	)
	if err != nil {
		fmt.Fprintf(stderr, "failed to create session: %v\n", err)
		return exitFailure
	}
	if err := sess.Start(ctx); err != nil {
		log.Error(ctx, "failed to start session", logger.Error(err))
		fmt.Fprintf(stderr, "failed to start session: %v\n", err)
		return exitFailure
	}
	defer sess.Stop(context.Background())

	go startSystemMetricsUpdater(ctx)
	go startSessionMetricsUpdater(ctx, sess)

	srv, err := newHTTPServer(ctx, cfg, sess, log)
	if err != nil {
		log.Error(ctx, "failed to build HTTP server", logger.Error(err))
		fmt.Fprintf(stderr, "%v\n", err)
		return exitFailure
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	code := exitOK
	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down server...")
	case err, ok := <-errCh:
		if ok {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			fmt.Fprintf(stderr, "HTTP server failed: %v\n", err)
			code = exitFailure
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return code
}

// newHTTPServer mounts the API docs and the curation API on one mux.
func newHTTPServer(ctx context.Context, cfg *config.Config, sess *app.Session, log logger.Logger) (*http.Server, error) {
	docs, err := swagger.New()
	if err != nil {
		return nil, fmt.Errorf("api docs: %w", err)
	}
	mux := http.NewServeMux()
	docs.Register(ctx, mux)
	api.NewServer(sess,
		api.WithISIDefaults(cfg.ISIBins, cfg.ISILogScale),
		api.WithLogger(log.Named("api")),
	).Register(ctx, mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startSessionMetricsUpdater samples session stats into gauges.
func startSessionMetricsUpdater(ctx context.Context, sess *app.Session) {
	ticker := time.NewTicker(sessionMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSessionMetrics(sess)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func updateSessionMetrics(sess *app.Session) {
	stats := sess.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if live, ok := stats["live"].(int); ok {
		metrics.UpdateSpikesLive(live)
	}
	if depth, ok := stats["undoDepth"].(int); ok {
		metrics.UpdateUndoDepth(depth)
	}
}

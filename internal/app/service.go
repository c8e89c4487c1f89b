// Package service wires detection, extraction and the curation engine into
// one session and serializes commands through a single dispatcher.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/spikecurator/internal/adapters/mq/queue"
	"github.com/okian/spikecurator/internal/adapters/mq/worker"
	"github.com/okian/spikecurator/internal/domain/curation"
	"github.com/okian/spikecurator/internal/domain/dedupe"
	"github.com/okian/spikecurator/internal/domain/detect"
	"github.com/okian/spikecurator/internal/domain/extract"
	"github.com/okian/spikecurator/internal/domain/isi"
	"github.com/okian/spikecurator/internal/domain/model"
	"github.com/okian/spikecurator/internal/domain/project"
	"github.com/okian/spikecurator/pkg/logger"
	"github.com/okian/spikecurator/pkg/metrics"
)

// KindResetSession re-runs detection with a new height threshold and
// starts the curation over with an empty undo stack.
const KindResetSession curation.Kind = "reset_session"

// Default session configuration.
const (
	defaultPreSeconds  = 0.5e-3
	defaultPostSeconds = 1.5e-3
	defaultRefractory  = 1e-3
	defaultQueueSize   = 64
	defaultDedupeSize  = 1024
	stopTimeout        = 5 * time.Second
)

// request is what travels through the command queue.
type request struct {
	cmd       curation.Command
	threshold float64 // reset_session only
	reply     chan curation.Response
}

// Result is the outcome of Submit.
type Result struct {
	curation.Response
	// Duplicate is set when the command id was seen before; Response then
	// repeats the first outcome.
	Duplicate bool `json:"duplicate"`
	// Pending is set for a duplicate whose first submission has not
	// finished yet.
	Pending bool `json:"pending,omitempty"`
}

// Session owns one recording and the engine curating its spikes.
type Session struct {
	mu sync.RWMutex

	id        uuid.UUID
	recording model.Recording
	window    model.Window
	detector  *detect.Detector

	// Settings
	heightThreshold float64
	preSeconds      float64
	postSeconds     float64
	refractory      float64
	policy          project.Policy
	queueSize       int
	dedupeSize      int

	// Owned by the dispatcher goroutine once started.
	engine   *curation.Engine
	detected int

	deduper dedupe.Deduper[curation.Response]
	queue   *queue.InMemoryQueue[request]
	worker  *worker.InMemoryWorker[request]
	// stopWorker ends the dispatcher's context. Only Stop calls it.
	stopWorker context.CancelFunc

	viewMu sync.RWMutex
	view   *View

	started bool

	logger logger.Logger
}

// New prepares a session over rec. Detection runs in Start.
func New(rec model.Recording, opts ...Option) (*Session, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		id:          uuid.New(),
		recording:   rec,
		preSeconds:  defaultPreSeconds,
		postSeconds: defaultPostSeconds,
		refractory:  defaultRefractory,
		policy:      project.PolicyRefit,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := project.ParsePolicy(string(s.policy)); err != nil {
		return nil, err
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("session")
	}

	s.window = model.WindowFromSeconds(s.preSeconds, s.postSeconds, rec.SampleRate)
	s.detector = detect.New(detect.WithWindow(s.window))
	return s, nil
}

// ID identifies the session in logs and stats.
func (s *Session) ID() uuid.UUID { return s.id }

// Start detects the initial spike set, builds the engine and launches the
// dispatcher. The dispatcher runs until Stop; cancelling ctx after Start
// returns does not stop it.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting curation session",
		logger.String("session", s.id.String()),
		logger.Int("samples", s.recording.Len()),
		logger.Float64("sampleRate", s.recording.SampleRate),
		logger.Float64("heightThreshold", s.heightThreshold),
		logger.Int("waveformWidth", s.window.Width()),
		logger.String("policy", string(s.policy)),
	)

	set, err := s.detectSpikes(ctx, s.heightThreshold)
	if err != nil {
		return err
	}
	projector := &timedProjector{Projector: project.NewPCA(project.WithPolicy(s.policy))}
	eng, err := curation.New(set, extract.TimeAxis(s.window, s.recording.SampleRate), projector,
		curation.WithLogger(s.logger.Named("engine")))
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	s.engine = eng
	s.detected = set.Len()

	s.deduper = dedupe.NewInMemoryDeduper[curation.Response](dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue[request](queue.WithCapacity(s.queueSize))
	s.worker = worker.NewInMemoryWorker[request](s.queue, worker.HandlerFunc[request](s.handle),
		worker.WithName("dispatcher"), worker.WithLogger(s.logger))

	kinds := []string{string(KindResetSession)}
	for _, k := range curation.Kinds() {
		kinds = append(kinds, string(k))
	}
	metrics.RegisterCommandKinds(kinds...)

	s.publish()
	wctx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	s.stopWorker = stopWorker
	go s.worker.Run(wctx)

	s.started = true
	s.logger.Info(ctx, "curation session started",
		logger.Int("spikes", set.Len()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop closes the command queue, lets the dispatcher finish what is
// already queued and waits for it to exit.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping curation session...")

	_ = s.queue.Close()
	select {
	case <-s.worker.Done():
	case <-time.After(stopTimeout):
		s.logger.Warn(ctx, "dispatcher did not drain in time")
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	_ = s.worker.Shutdown(sctx)
	s.stopWorker()

	s.started = false
	s.logger.Info(ctx, "curation session stopped")
}

// Submit queues cmd and waits for its response. A command without an id
// gets a fresh one. Replaying an id returns the first outcome.
func (s *Session) Submit(ctx context.Context, cmd curation.Command) (Result, error) {
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}
	return s.submit(ctx, request{cmd: cmd})
}

// ResetSession re-detects spikes at threshold and clears the undo stack.
func (s *Session) ResetSession(ctx context.Context, id uuid.UUID, threshold float64) (Result, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	return s.submit(ctx, request{cmd: curation.Command{ID: id, Kind: KindResetSession}, threshold: threshold})
}

func (s *Session) submit(ctx context.Context, req request) (Result, error) {
	s.mu.RLock()
	started, q, d, w := s.started, s.queue, s.deduper, s.worker
	s.mu.RUnlock()
	if !started {
		return Result{}, ErrNotStarted
	}

	id := req.cmd.ID
	if d.SeenAndRecord(ctx, id) {
		metrics.RecordCommandDuplicate()
		resp, done := d.Outcome(ctx, id)
		if !done {
			resp = curation.Response{CommandID: id, Kind: req.cmd.Kind}
		}
		s.logger.Debug(ctx, "duplicate command", logger.String("id", id.String()), logger.Bool("pending", !done))
		return Result{Response: resp, Duplicate: true, Pending: !done}, nil
	}

	req.reply = make(chan curation.Response, 1)
	if err := q.Enqueue(ctx, req); err != nil {
		d.Unrecord(ctx, id)
		metrics.RecordCommandRejected(string(req.cmd.Kind), "queue")
		switch {
		case errors.Is(err, queue.ErrFull):
			return Result{}, fmt.Errorf("%w: %w", ErrBusy, err)
		case errors.Is(err, queue.ErrClosed):
			return Result{}, ErrStopped
		default:
			return Result{}, err
		}
	}

	select {
	case resp := <-req.reply:
		return Result{Response: resp}, nil
	case <-w.Done():
		// handle replies before Run can return, so an empty reply means the
		// command never ran.
		select {
		case resp := <-req.reply:
			return Result{Response: resp}, nil
		default:
		}
		d.Unrecord(ctx, id)
		return Result{}, ErrStopped
	case <-ctx.Done():
		// The command still runs; replaying its id later returns the outcome.
		return Result{}, ctx.Err()
	}
}

// handle runs on the dispatcher goroutine only.
func (s *Session) handle(ctx context.Context, req request) error {
	start := time.Now()

	var resp curation.Response
	if req.cmd.Kind == KindResetSession {
		resp = s.reset(ctx, req)
	} else {
		resp = s.engine.Apply(ctx, req.cmd)
	}

	s.publish()
	s.record(resp, time.Since(start))
	s.deduper.Complete(ctx, req.cmd.ID, resp)
	req.reply <- resp

	if resp.Fatal {
		return fmt.Errorf("command %s (%s): %w", req.cmd.ID, req.cmd.Kind, resp.Err)
	}
	return nil
}

func (s *Session) reset(ctx context.Context, req request) curation.Response {
	resp := curation.Response{CommandID: req.cmd.ID, Kind: req.cmd.Kind}

	set, err := s.detectSpikes(ctx, req.threshold)
	if err == nil {
		err = s.engine.Reset(set)
	}
	if err != nil {
		resp.Err, resp.Error = err, err.Error()
		resp.Fatal = errors.Is(err, model.ErrConsistencyViolation)
	} else {
		s.heightThreshold = req.threshold
		s.detected = set.Len()
		resp.Applied = true
		s.logger.Info(ctx, "session reset", logger.Float64("heightThreshold", req.threshold), logger.Int("spikes", set.Len()))
	}

	resp.Mode = s.engine.Mode()
	resp.Live = s.engine.Spikes().Len()
	resp.UndoDepth = s.engine.UndoDepth()
	return resp
}

func (s *Session) detectSpikes(ctx context.Context, threshold float64) (model.SpikeSet, error) {
	start := time.Now()
	rec := s.recording
	indices, heights, err := s.detector.Detect(rec.Samples, rec.SampleRate, threshold, s.refractory)
	if err != nil {
		return model.SpikeSet{}, fmt.Errorf("detect: %w", err)
	}
	set, err := extract.SpikeSet(rec, indices, heights, s.window)
	if err != nil {
		return model.SpikeSet{}, fmt.Errorf("extract: %w", err)
	}

	latency := time.Since(start)
	metrics.RecordDetectionLatency(float64(latency.Microseconds()) / 1000)
	metrics.UpdateSpikesDetected(set.Len())
	s.logger.Info(ctx, "spikes detected",
		logger.Int("count", set.Len()),
		logger.Float64("heightThreshold", threshold),
		logger.Duration("latency", latency))
	return set, nil
}

func (s *Session) record(resp curation.Response, latency time.Duration) {
	kind := string(resp.Kind)
	switch {
	case resp.Applied:
		metrics.RecordCommandApplied(kind)
	case resp.Err != nil:
		metrics.RecordCommandRejected(kind, rejectReason(resp.Err))
		if resp.Fatal {
			metrics.RecordErrorByComponent("engine", rejectReason(resp.Err))
			metrics.RecordErrorByType(rejectReason(resp.Err), "critical")
		}
	}
	if resp.Kind.Mutating() || resp.Kind == KindResetSession {
		metrics.RecordEditLatency(float64(latency.Microseconds()) / 1000)
	}
	metrics.RecordSpikesRemoved(resp.Removed)
	metrics.RecordSpikesRestored(resp.Restored)
	metrics.UpdateSpikesLive(resp.Live)
	metrics.UpdateUndoDepth(resp.UndoDepth)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, curation.ErrInvalidCommand):
		return "invalid_mode"
	case errors.Is(err, curation.ErrEmptyUndoStack):
		return "empty_undo"
	case errors.Is(err, curation.ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, model.ErrConsistencyViolation):
		return "consistency_violation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}

// timedProjector records projection latency around any Projector.
type timedProjector struct {
	project.Projector
}

func (p *timedProjector) Fresh() project.Projector {
	return &timedProjector{Projector: p.Projector.Fresh()}
}

func (p *timedProjector) Project(waveforms [][]float64) (project.Projection, error) {
	start := time.Now()
	out, err := p.Projector.Project(waveforms)
	metrics.RecordProjectionLatency(float64(time.Since(start).Microseconds()) / 1000)
	return out, err
}

// GetStats returns session statistics for monitoring.
func (s *Session) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"session":    s.id.String(),
		"started":    s.started,
		"samples":    s.recording.Len(),
		"sampleRate": s.recording.SampleRate,
		"duration":   s.recording.Duration(),
		"queueSize":  s.queueSize,
		"dedupeSize": s.dedupeSize,
		"policy":     string(s.policy),
	}
	if !s.started {
		return stats
	}

	v := s.View()
	stats["detected"] = v.Detected
	stats["live"] = v.Snapshot.Spikes.Len()
	stats["undoDepth"] = v.Snapshot.UndoDepth
	stats["mode"] = v.Snapshot.Mode.String()
	stats["heightThreshold"] = v.HeightThreshold
	stats["commands"] = len(v.History)
	stats["queueLength"] = s.queue.Len(context.Background())
	stats["processed"] = s.worker.Processed()
	stats["seenCommands"] = s.deduper.Size()
	return stats
}

// Intervals is a convenience for the current ISI sequence in milliseconds.
func (s *Session) Intervals() []float64 {
	v := s.View()
	if v == nil {
		return []float64{}
	}
	return v.Intervals()
}

// ISI returns the interval histogram over the current spike times.
func (s *Session) ISI(bins int, logScale bool) ISIView {
	intervals := s.Intervals()
	out := ISIView{IntervalsMS: intervals, Log: logScale, Summary: isi.Summarize(intervals)}
	if logScale {
		out.Bins = isi.LogHistogram(intervals, bins)
	} else {
		out.Bins = isi.Histogram(intervals, bins)
	}
	return out
}

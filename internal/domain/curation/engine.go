package curation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/okian/spikecurator/internal/domain/isi"
	"github.com/okian/spikecurator/internal/domain/model"
	"github.com/okian/spikecurator/internal/domain/project"
	"github.com/okian/spikecurator/pkg/logger"
)

// ThresholdMark is the last threshold cut, kept for the overlay view.
type ThresholdMark struct {
	Kind   Kind    `json:"kind"`
	Time   float64 `json:"time"`
	Column int     `json:"column"`
	Value  float64 `json:"value"`
}

// HistoryEntry is one applied mutating command.
type HistoryEntry struct {
	Kind     Kind `json:"kind"`
	Removed  int  `json:"removed"`
	Restored int  `json:"restored"`
	Live     int  `json:"live"`
}

// Snapshot is a consistent copy of everything the presentation layer reads.
type Snapshot struct {
	Spikes      model.SpikeSet
	TimeAxis    []float64
	Features    project.Projection
	FeaturesErr error
	Mode        Mode
	UndoDepth   int
	Threshold   *ThresholdMark
}

// Engine owns the live spike set, its feature view and the undo stack.
//
// It is not safe for concurrent use; callers serialize commands.
type Engine struct {
	set       model.SpikeSet
	axis      []float64
	projector project.Projector

	features    project.Projection
	featuresErr error

	undo      []model.EditRecord
	mode      Mode
	threshold *ThresholdMark
	history   []HistoryEntry

	intervals      []float64
	intervalsValid bool

	logger logger.Logger
}

// New builds an engine over an initial spike set. axis is the waveform time
// axis and must have one entry per waveform sample.
func New(set model.SpikeSet, axis []float64, projector project.Projector, opts ...Option) (*Engine, error) {
	if projector == nil {
		return nil, fmt.Errorf("%w: nil projector", ErrInvalidCommand)
	}
	if len(axis) != set.Width() {
		return nil, fmt.Errorf("%w: time axis has %d entries, waveforms have %d",
			model.ErrConsistencyViolation, len(axis), set.Width())
	}

	e := &Engine{
		axis:      append([]float64(nil), axis...),
		projector: projector,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.commit(set); err != nil {
		return nil, err
	}
	return e, nil
}

// Reset replaces the spike set and starts a fresh session: the undo stack,
// history and any retained projection basis are discarded. The new set is
// projected by a fresh projector, which replaces the current one only if
// the set commits.
func (e *Engine) Reset(set model.SpikeSet) error {
	if set.Width() != len(e.axis) {
		return fmt.Errorf("%w: reset set width %d, time axis %d",
			model.ErrConsistencyViolation, set.Width(), len(e.axis))
	}
	fresh := e.projector.Fresh()
	if err := e.commitWith(fresh, set); err != nil {
		return err
	}
	e.projector = fresh
	e.undo = nil
	e.history = nil
	e.threshold = nil
	e.mode = ModeIdle
	return nil
}

// Apply runs one command to completion. Errors are reported in the
// response; a Fatal response means the edit was refused and the previous
// state is unchanged.
func (e *Engine) Apply(ctx context.Context, cmd Command) Response {
	resp := Response{CommandID: cmd.ID, Kind: cmd.Kind}
	defer func() {
		resp.Mode = e.mode
		resp.Live = e.set.Len()
		resp.UndoDepth = len(e.undo)
	}()

	if err := ctx.Err(); err != nil {
		e.reject(ctx, &resp, err, false)
		return resp
	}

	switch cmd.Kind {
	case KindToggleThreshold:
		switch e.mode {
		case ModeIdle:
			e.mode = ModeAwaitingThreshold
		case ModeAwaitingThreshold:
			e.mode = ModeIdle
		default:
			e.reject(ctx, &resp, e.invalid(cmd), false)
			return resp
		}
		resp.Applied = true

	case KindEnterRegion:
		if e.mode != ModeIdle {
			e.reject(ctx, &resp, e.invalid(cmd), false)
			return resp
		}
		e.mode = ModeAwaitingRegion
		resp.Applied = true

	case KindCancelRegion:
		if e.mode != ModeAwaitingRegion {
			e.reject(ctx, &resp, e.invalid(cmd), false)
			return resp
		}
		e.mode = ModeIdle
		resp.Applied = true

	case KindPointerPrimary, KindPointerSecondary:
		if e.mode != ModeAwaitingThreshold {
			e.reject(ctx, &resp, e.invalid(cmd), false)
			return resp
		}
		removed, err := e.thresholdCut(cmd)
		if err != nil {
			e.reject(ctx, &resp, err, true)
			return resp
		}
		e.mode = ModeIdle
		resp.Applied, resp.Removed = true, removed

	case KindRegionConfirmed:
		if e.mode != ModeAwaitingRegion {
			e.reject(ctx, &resp, e.invalid(cmd), false)
			return resp
		}
		removed, err := e.regionCut(cmd)
		if err != nil {
			e.reject(ctx, &resp, err, true)
			return resp
		}
		e.mode = ModeIdle
		resp.Applied, resp.Removed = true, removed

	case KindUndo:
		restored, err := e.popUndo()
		if err != nil {
			e.reject(ctx, &resp, err, !errors.Is(err, ErrEmptyUndoStack))
			return resp
		}
		resp.Applied, resp.Restored = true, restored

	default:
		e.reject(ctx, &resp, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind), false)
		return resp
	}

	if cmd.Kind.Mutating() {
		e.history = append(e.history, HistoryEntry{
			Kind: cmd.Kind, Removed: resp.Removed, Restored: resp.Restored, Live: e.set.Len(),
		})
	}
	e.logger.Debug(ctx, "command applied",
		logger.String("kind", string(cmd.Kind)),
		logger.String("mode", e.mode.String()),
		logger.Int("removed", resp.Removed),
		logger.Int("restored", resp.Restored),
		logger.Int("live", e.set.Len()))
	return resp
}

func (e *Engine) reject(ctx context.Context, resp *Response, err error, fatal bool) {
	resp.fail(err, fatal)
	if fatal {
		e.logger.Error(ctx, "edit refused", logger.String("kind", string(resp.Kind)), logger.Error(err))
		return
	}
	e.logger.Warn(ctx, "command rejected", logger.String("kind", string(resp.Kind)), logger.Error(err))
}

func (e *Engine) invalid(cmd Command) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidCommand, cmd.Kind, e.mode)
}

// thresholdCut removes spikes whose sample at the column nearest cmd.X is
// at or below (primary) or at or above (secondary) cmd.Y.
func (e *Engine) thresholdCut(cmd Command) (int, error) {
	col := e.NearestColumn(cmd.X)
	if col < 0 {
		return 0, e.push(model.EditRecord{Kind: string(cmd.Kind)}, e.set)
	}
	below := cmd.Kind == KindPointerPrimary
	next, rec := e.set.Split(string(cmd.Kind), func(k int) bool {
		v := e.set.Sample(col, k)
		if below {
			return v <= cmd.Y
		}
		return v >= cmd.Y
	})
	if err := e.push(rec, next); err != nil {
		return 0, err
	}
	e.threshold = &ThresholdMark{Kind: cmd.Kind, Time: e.axis[col], Column: col, Value: cmd.Y}
	return rec.Len(), nil
}

// regionCut removes spikes whose feature point lies in the closed rectangle.
func (e *Engine) regionCut(cmd Command) (int, error) {
	x0, x1 := math.Min(cmd.X, cmd.X2), math.Max(cmd.X, cmd.X2)
	y0, y1 := math.Min(cmd.Y, cmd.Y2), math.Max(cmd.Y, cmd.Y2)

	f := e.features
	if f.Len() != e.set.Len() {
		// no feature view (fewer than two spikes): nothing can be selected
		f = project.Projection{}
	}
	next, rec := e.set.Split(string(cmd.Kind), func(k int) bool {
		if k >= f.Len() {
			return false
		}
		x, y := f.X[k], f.Y[k]
		return x >= x0 && x <= x1 && y >= y0 && y <= y1
	})
	if err := e.push(rec, next); err != nil {
		return 0, err
	}
	return rec.Len(), nil
}

func (e *Engine) push(rec model.EditRecord, next model.SpikeSet) error {
	if err := e.set.Validate(); err != nil {
		return err
	}
	if err := e.commit(next); err != nil {
		return err
	}
	e.undo = append(e.undo, rec)
	return nil
}

func (e *Engine) popUndo() (int, error) {
	if len(e.undo) == 0 {
		return 0, ErrEmptyUndoStack
	}
	if err := e.set.Validate(); err != nil {
		return 0, err
	}
	rec := e.undo[len(e.undo)-1]
	if err := e.commit(e.set.Append(rec).SortByTime()); err != nil {
		return 0, err
	}
	e.undo = e.undo[:len(e.undo)-1]
	return rec.Len(), nil
}

// commit validates next, recomputes its feature view and only then
// installs both. On error nothing changes.
func (e *Engine) commit(next model.SpikeSet) error {
	return e.commitWith(e.projector, next)
}

func (e *Engine) commitWith(p project.Projector, next model.SpikeSet) error {
	if err := next.Validate(); err != nil {
		return err
	}
	features, ferr := p.Project(next.Waveforms())
	switch {
	case ferr == nil:
		if features.Len() != next.Len() {
			return fmt.Errorf("%w: projection has %d points for %d spikes",
				model.ErrConsistencyViolation, features.Len(), next.Len())
		}
	case errors.Is(ferr, project.ErrInsufficientSamples):
		features = project.Projection{X: []float64{}, Y: []float64{}}
	default:
		return ferr
	}
	e.set = next
	e.features = features
	e.featuresErr = ferr
	e.intervalsValid = false
	return nil
}

// NearestColumn maps a waveform time to the closest time-axis column.
// Equidistant times resolve to the lower column. It returns -1 for an
// empty axis.
func (e *Engine) NearestColumn(t float64) int {
	n := len(e.axis)
	if n == 0 {
		return -1
	}
	i := sort.SearchFloat64s(e.axis, t)
	switch {
	case i == 0:
		return 0
	case i == n:
		return n - 1
	case t-e.axis[i-1] <= e.axis[i]-t:
		return i - 1
	default:
		return i
	}
}

// Mode returns the current interaction state.
func (e *Engine) Mode() Mode { return e.mode }

// Spikes returns the live spike set.
func (e *Engine) Spikes() model.SpikeSet { return e.set }

// TimeAxis returns a copy of the waveform time axis in seconds.
func (e *Engine) TimeAxis() []float64 { return append([]float64(nil), e.axis...) }

// Features returns the current feature view. The error is
// project.ErrInsufficientSamples when fewer than two spikes are live.
func (e *Engine) Features() (project.Projection, error) {
	return project.Projection{
		X: append([]float64{}, e.features.X...),
		Y: append([]float64{}, e.features.Y...),
	}, e.featuresErr
}

// Intervals returns the inter-spike intervals in milliseconds, recomputed
// after the first read following a mutation.
func (e *Engine) Intervals() []float64 {
	if !e.intervalsValid {
		e.intervals = isi.Intervals(e.set.Times())
		e.intervalsValid = true
	}
	return append([]float64{}, e.intervals...)
}

// Threshold returns the most recent threshold cut, or nil.
func (e *Engine) Threshold() *ThresholdMark {
	if e.threshold == nil {
		return nil
	}
	t := *e.threshold
	return &t
}

// History returns the applied mutating commands, oldest first.
func (e *Engine) History() []HistoryEntry { return append([]HistoryEntry(nil), e.history...) }

// UndoDepth returns the number of edits that can be undone.
func (e *Engine) UndoDepth() int { return len(e.undo) }

// Snapshot copies the state read by the presentation layer.
func (e *Engine) Snapshot() Snapshot {
	f, ferr := e.Features()
	return Snapshot{
		Spikes:      e.set,
		TimeAxis:    e.TimeAxis(),
		Features:    f,
		FeaturesErr: ferr,
		Mode:        e.mode,
		UndoDepth:   len(e.undo),
		Threshold:   e.Threshold(),
	}
}

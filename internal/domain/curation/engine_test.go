package curation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/spikecurator/internal/domain/curation"
	"github.com/okian/spikecurator/internal/domain/model"
	"github.com/okian/spikecurator/internal/domain/project"
	. "github.com/smartystreets/goconvey/convey"
)

// firstTwo projects each waveform onto its first two samples.
type firstTwo struct {
	failWith error
	// dropLast loses the last point, as a broken projector would.
	dropLast bool
	// next is handed out by Fresh when set.
	next *firstTwo
}

func (p *firstTwo) Project(waveforms [][]float64) (project.Projection, error) {
	if p.failWith != nil {
		return project.Projection{}, p.failWith
	}
	if len(waveforms) < 2 {
		return project.Projection{}, project.ErrInsufficientSamples
	}
	out := project.Projection{X: make([]float64, len(waveforms)), Y: make([]float64, len(waveforms))}
	for i, w := range waveforms {
		out.X[i], out.Y[i] = w[0], w[1]
	}
	if p.dropLast {
		out.X, out.Y = out.X[:len(out.X)-1], out.Y[:len(out.Y)-1]
	}
	return out, nil
}

func (p *firstTwo) Fresh() project.Projector {
	if p.next != nil {
		return p.next
	}
	return &firstTwo{}
}

var axis = []float64{-1e-3, 0, 1e-3}

func mustSet(times, heights []float64, waveforms [][]float64) model.SpikeSet {
	s, err := model.NewSpikeSet(3, times, heights, waveforms)
	if err != nil {
		panic(err)
	}
	return s
}

// columnSet has values [5, -5, 3] at the middle column.
func columnSet() model.SpikeSet {
	return mustSet(
		[]float64{0.1, 0.2, 0.3},
		[]float64{5, -5, 3},
		[][]float64{{1, 5, 0}, {2, -5, 0}, {3, 3, 0}},
	)
}

// regionSet has feature points (0,0), (1,1) and (5,5) under firstTwo.
func regionSet() model.SpikeSet {
	return mustSet(
		[]float64{0.1, 0.2, 0.3},
		[]float64{1, 2, 3},
		[][]float64{{0, 0, 9}, {1, 1, 9}, {5, 5, 9}},
	)
}

func newEngine(set model.SpikeSet, p project.Projector) *curation.Engine {
	e, err := curation.New(set, axis, p)
	if err != nil {
		panic(err)
	}
	return e
}

func assertColumns(e *curation.Engine) {
	s := e.Spikes()
	So(s.Validate(), ShouldBeNil)
	So(len(s.Times()), ShouldEqual, s.Len())
	So(len(s.Heights()), ShouldEqual, s.Len())
	So(len(s.Waveforms()), ShouldEqual, s.Len())
	f, err := e.Features()
	if err == nil {
		So(f.Len(), ShouldEqual, s.Len())
	} else {
		So(errors.Is(err, project.ErrInsufficientSamples), ShouldBeTrue)
		So(f.Len(), ShouldEqual, 0)
	}
}

func TestEngine_ThresholdCut(t *testing.T) {
	ctx := context.Background()

	Convey("Given spikes with [5, -5, 3] at the middle column", t, func() {
		e := newEngine(columnSet(), project.NewPCA())

		Convey("When a primary cut at y=0 is applied", func() {
			So(e.Apply(ctx, curation.ToggleThresholdMode()).Applied, ShouldBeTrue)
			So(e.Mode(), ShouldEqual, curation.ModeAwaitingThreshold)
			resp := e.Apply(ctx, curation.PointerPrimary(0.1e-3, 0))

			Convey("Then only the spike at or below zero is removed", func() {
				So(resp.Err, ShouldBeNil)
				So(resp.Removed, ShouldEqual, 1)
				So(e.Spikes().Heights(), ShouldResemble, []float64{5, 3})
				So(e.Mode(), ShouldEqual, curation.ModeIdle)
				So(e.UndoDepth(), ShouldEqual, 1)
				assertColumns(e)
			})

			Convey("And the cut is recorded for the overlay", func() {
				mark := e.Threshold()
				So(mark, ShouldNotBeNil)
				So(mark.Column, ShouldEqual, 1)
				So(mark.Value, ShouldEqual, 0.0)
				So(mark.Kind, ShouldEqual, curation.KindPointerPrimary)
			})
		})

		Convey("When a secondary cut at y=0 is applied", func() {
			e.Apply(ctx, curation.ToggleThresholdMode())
			resp := e.Apply(ctx, curation.PointerSecondary(0, 0))

			Convey("Then the spikes at or above zero are removed", func() {
				So(resp.Removed, ShouldEqual, 2)
				So(e.Spikes().Heights(), ShouldResemble, []float64{-5})
				assertColumns(e)
			})

			Convey("And the single survivor has an empty feature view", func() {
				_, err := e.Features()
				So(errors.Is(err, project.ErrInsufficientSamples), ShouldBeTrue)
				So(e.Intervals(), ShouldBeEmpty)
			})
		})

		Convey("When a pointer arrives outside threshold mode", func() {
			resp := e.Apply(ctx, curation.PointerPrimary(0, 0))

			Convey("Then it is rejected without touching the set", func() {
				So(errors.Is(resp.Err, curation.ErrInvalidCommand), ShouldBeTrue)
				So(resp.Fatal, ShouldBeFalse)
				So(e.Spikes().Len(), ShouldEqual, 3)
				So(e.UndoDepth(), ShouldEqual, 0)
			})
		})

		Convey("When threshold mode is toggled twice", func() {
			e.Apply(ctx, curation.ToggleThresholdMode())
			e.Apply(ctx, curation.ToggleThresholdMode())

			Convey("Then the engine is idle again", func() {
				So(e.Mode(), ShouldEqual, curation.ModeIdle)
			})
		})
	})
}

func TestEngine_RegionCut(t *testing.T) {
	ctx := context.Background()

	Convey("Given feature points (0,0), (1,1), (5,5)", t, func() {
		e := newEngine(regionSet(), &firstTwo{})

		Convey("When the region [-1,2]x[-1,2] is confirmed", func() {
			So(e.Apply(ctx, curation.EnterRegionMode()).Applied, ShouldBeTrue)
			resp := e.Apply(ctx, curation.RegionConfirmed(2, 2, -1, -1))

			Convey("Then exactly the first two points are removed", func() {
				So(resp.Removed, ShouldEqual, 2)
				So(e.Spikes().Times(), ShouldResemble, []float64{0.3})
				So(e.Mode(), ShouldEqual, curation.ModeIdle)
				assertColumns(e)
			})
		})

		Convey("When a point sits on the rectangle edge", func() {
			e.Apply(ctx, curation.EnterRegionMode())
			resp := e.Apply(ctx, curation.RegionConfirmed(1, 1, 5, 5))

			Convey("Then it is inside the closed rectangle", func() {
				So(resp.Removed, ShouldEqual, 2)
				So(e.Spikes().Times(), ShouldResemble, []float64{0.1})
			})
		})

		Convey("When the region is cancelled", func() {
			e.Apply(ctx, curation.EnterRegionMode())
			resp := e.Apply(ctx, curation.CancelRegion())

			Convey("Then nothing is removed and the engine is idle", func() {
				So(resp.Applied, ShouldBeTrue)
				So(e.Mode(), ShouldEqual, curation.ModeIdle)
				So(e.Spikes().Len(), ShouldEqual, 3)
				So(e.UndoDepth(), ShouldEqual, 0)
			})
		})

		Convey("When threshold mode is requested during a region selection", func() {
			e.Apply(ctx, curation.EnterRegionMode())
			resp := e.Apply(ctx, curation.ToggleThresholdMode())

			Convey("Then it is rejected", func() {
				So(errors.Is(resp.Err, curation.ErrInvalidCommand), ShouldBeTrue)
				So(e.Mode(), ShouldEqual, curation.ModeAwaitingRegion)
			})
		})
	})
}

func TestEngine_Undo(t *testing.T) {
	ctx := context.Background()

	Convey("Given an engine with no edits", t, func() {
		e := newEngine(columnSet(), project.NewPCA())

		Convey("When undo is requested", func() {
			resp := e.Apply(ctx, curation.Undo())

			Convey("Then it reports an empty stack and is not fatal", func() {
				So(errors.Is(resp.Err, curation.ErrEmptyUndoStack), ShouldBeTrue)
				So(resp.Fatal, ShouldBeFalse)
				So(resp.Applied, ShouldBeFalse)
				So(e.Spikes().Len(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given a sequence of cuts", t, func() {
		set := mustSet(
			[]float64{0.01, 0.02, 0.03, 0.04, 0.05},
			[]float64{1, 2, 3, 4, 5},
			[][]float64{{0, 1, 0}, {0, -4, 1}, {0, 7, 2}, {0, -2, 3}, {0, 3, 4}},
		)
		e := newEngine(set, project.NewPCA())
		before := e.Spikes()

		e.Apply(ctx, curation.ToggleThresholdMode())
		e.Apply(ctx, curation.PointerPrimary(0, -3))
		assertColumns(e)
		e.Apply(ctx, curation.ToggleThresholdMode())
		e.Apply(ctx, curation.PointerSecondary(0, 5))
		assertColumns(e)
		So(e.Spikes().Times(), ShouldResemble, []float64{0.01, 0.04, 0.05})
		So(e.UndoDepth(), ShouldEqual, 2)

		Convey("When the last edit is undone", func() {
			resp := e.Apply(ctx, curation.Undo())

			Convey("Then the restored spike is back in time order", func() {
				So(resp.Restored, ShouldEqual, 1)
				So(e.Spikes().Times(), ShouldResemble, []float64{0.01, 0.03, 0.04, 0.05})
				assertColumns(e)
			})
		})

		Convey("When every edit is undone", func() {
			e.Apply(ctx, curation.Undo())
			e.Apply(ctx, curation.Undo())

			Convey("Then the set equals the original", func() {
				after := e.Spikes()
				So(after.Times(), ShouldResemble, before.Times())
				So(after.Heights(), ShouldResemble, before.Heights())
				So(after.Waveforms(), ShouldResemble, before.Waveforms())
				So(e.UndoDepth(), ShouldEqual, 0)
				So(e.Intervals(), ShouldHaveLength, 4)
			})

			Convey("And the history lists every mutation", func() {
				h := e.History()
				So(h, ShouldHaveLength, 4)
				So(h[0].Kind, ShouldEqual, curation.KindPointerPrimary)
				So(h[3].Kind, ShouldEqual, curation.KindUndo)
				So(h[3].Live, ShouldEqual, 5)
			})
		})

		Convey("When undo is requested while awaiting a threshold", func() {
			e.Apply(ctx, curation.ToggleThresholdMode())
			resp := e.Apply(ctx, curation.Undo())

			Convey("Then it applies and the mode is unchanged", func() {
				So(resp.Applied, ShouldBeTrue)
				So(e.Mode(), ShouldEqual, curation.ModeAwaitingThreshold)
			})
		})

		Convey("When the engine is reset", func() {
			So(e.Reset(before), ShouldBeNil)

			Convey("Then the undo stack and history are cleared", func() {
				So(e.UndoDepth(), ShouldEqual, 0)
				So(e.History(), ShouldBeEmpty)
				So(e.Threshold(), ShouldBeNil)
				So(e.Spikes().Len(), ShouldEqual, 5)
			})
		})
	})
}

func TestEngine_FailedProjectionLeavesStateIntact(t *testing.T) {
	ctx := context.Background()

	Convey("Given a projector that starts failing after construction", t, func() {
		p := &firstTwo{}
		e := newEngine(regionSet(), p)
		p.failWith = project.ErrDecomposition

		Convey("When a region cut is confirmed", func() {
			e.Apply(ctx, curation.EnterRegionMode())
			resp := e.Apply(ctx, curation.RegionConfirmed(-1, -1, 2, 2))

			Convey("Then the edit is refused as fatal and nothing changes", func() {
				So(resp.Fatal, ShouldBeTrue)
				So(errors.Is(resp.Err, project.ErrDecomposition), ShouldBeTrue)
				So(e.Spikes().Len(), ShouldEqual, 3)
				So(e.UndoDepth(), ShouldEqual, 0)
				So(e.Mode(), ShouldEqual, curation.ModeAwaitingRegion)
				f, err := e.Features()
				So(err, ShouldBeNil)
				So(f.Len(), ShouldEqual, 3)
			})
		})
	})
}

func TestEngine_ShortProjectionIsAConsistencyViolation(t *testing.T) {
	ctx := context.Background()

	Convey("Given a projector that loses a point after construction", t, func() {
		p := &firstTwo{}
		e := newEngine(regionSet(), p)
		p.dropLast = true

		Convey("When a region cut is confirmed", func() {
			e.Apply(ctx, curation.EnterRegionMode())
			resp := e.Apply(ctx, curation.RegionConfirmed(-1, -1, 0.5, 0.5))

			Convey("Then the edit is refused as fatal and nothing changes", func() {
				So(resp.Fatal, ShouldBeTrue)
				So(resp.Applied, ShouldBeFalse)
				So(errors.Is(resp.Err, model.ErrConsistencyViolation), ShouldBeTrue)
				So(e.Spikes().Len(), ShouldEqual, 3)
				So(e.UndoDepth(), ShouldEqual, 0)
				So(e.History(), ShouldBeEmpty)
				So(e.Mode(), ShouldEqual, curation.ModeAwaitingRegion)
				f, err := e.Features()
				So(err, ShouldBeNil)
				So(f.Len(), ShouldEqual, 3)
			})
		})
	})
}

func TestEngine_ResetKeepsProjectorUntilCommit(t *testing.T) {
	ctx := context.Background()

	Convey("Given an engine with one undoable cut", t, func() {
		p := &firstTwo{}
		e := newEngine(regionSet(), p)
		e.Apply(ctx, curation.EnterRegionMode())
		So(e.Apply(ctx, curation.RegionConfirmed(-1, -1, 0.5, 0.5)).Applied, ShouldBeTrue)

		Convey("When the fresh projector fails during a reset", func() {
			p.next = &firstTwo{failWith: project.ErrDecomposition}
			err := e.Reset(regionSet())

			Convey("Then the reset is refused and the old projector stays", func() {
				So(errors.Is(err, project.ErrDecomposition), ShouldBeTrue)
				So(e.Spikes().Len(), ShouldEqual, 2)
				So(e.UndoDepth(), ShouldEqual, 1)
				resp := e.Apply(ctx, curation.Undo())
				So(resp.Err, ShouldBeNil)
				So(e.Spikes().Len(), ShouldEqual, 3)
			})
		})

		Convey("When the reset commits", func() {
			fresh := &firstTwo{}
			p.next = fresh
			So(e.Reset(regionSet()), ShouldBeNil)
			fresh.failWith = project.ErrDecomposition
			e.Apply(ctx, curation.EnterRegionMode())
			resp := e.Apply(ctx, curation.RegionConfirmed(-1, -1, 0.5, 0.5))

			Convey("Then later edits go through the fresh projector", func() {
				So(resp.Fatal, ShouldBeTrue)
				So(errors.Is(resp.Err, project.ErrDecomposition), ShouldBeTrue)
				So(e.Spikes().Len(), ShouldEqual, 3)
			})
		})
	})
}

func TestEngine_New(t *testing.T) {
	Convey("Given a time axis that does not match the waveform width", t, func() {
		_, err := curation.New(columnSet(), []float64{0, 1}, project.NewPCA())

		Convey("Then a consistency violation is reported", func() {
			So(errors.Is(err, model.ErrConsistencyViolation), ShouldBeTrue)
		})
	})

	Convey("Given an unknown command kind", t, func() {
		e := newEngine(columnSet(), project.NewPCA())
		resp := e.Apply(context.Background(), curation.Command{Kind: "jump"})

		Convey("Then it is reported as unknown", func() {
			So(errors.Is(resp.Err, curation.ErrUnknownCommand), ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		e := newEngine(columnSet(), project.NewPCA())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		resp := e.Apply(ctx, curation.EnterRegionMode())

		Convey("Then the command is not applied", func() {
			So(resp.Applied, ShouldBeFalse)
			So(errors.Is(resp.Err, context.Canceled), ShouldBeTrue)
			So(e.Mode(), ShouldEqual, curation.ModeIdle)
		})
	})
}

func TestEngine_NearestColumn(t *testing.T) {
	e := newEngine(columnSet(), project.NewPCA())
	cases := map[float64]int{
		-5:      0,
		-1e-3:   0,
		-0.5e-3: 0, // equidistant resolves low
		-0.4e-3: 1,
		0.6e-3:  2,
		1:       2,
	}
	for in, want := range cases {
		if got := e.NearestColumn(in); got != want {
			t.Errorf("NearestColumn(%v): expected %d, got %d", in, want, got)
		}
	}
}

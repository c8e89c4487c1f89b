package extract_test

import (
	"errors"
	"testing"

	"github.com/okian/spikecurator/internal/domain/extract"
	"github.com/okian/spikecurator/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestExtract(t *testing.T) {
	Convey("Given a ramp trace", t, func() {
		samples := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		times := []float64{0, .1, .2, .3, .4, .5, .6, .7, .8, .9}
		w := model.Window{PreSamples: 2, PostSamples: 1}

		Convey("When extracting two interior peaks", func() {
			waveforms, spikeTimes := extract.Extract(samples, times, []int{2, 8}, w)

			Convey("Then each waveform spans pre..post inclusive", func() {
				So(waveforms, ShouldResemble, [][]float64{{0, 1, 2, 3}, {6, 7, 8, 9}})
				So(spikeTimes, ShouldResemble, []float64{.2, .8})
			})
		})

		Convey("When the waveform is modified", func() {
			waveforms, _ := extract.Extract(samples, times, []int{5}, w)
			waveforms[0][0] = 100

			Convey("Then the trace is untouched", func() {
				So(samples[3], ShouldEqual, 3.0)
			})
		})

		Convey("When an index does not fit", func() {
			Convey("Then extraction panics with ErrWindowOutOfBounds", func() {
				var got error
				func() {
					defer func() {
						if r := recover(); r != nil {
							got, _ = r.(error)
						}
					}()
					extract.Extract(samples, times, []int{1}, w)
				}()
				So(errors.Is(got, extract.ErrWindowOutOfBounds), ShouldBeTrue)
			})
		})

		Convey("When packing into a spike set", func() {
			rec := model.Recording{Samples: samples, SampleTimes: times, SampleRate: 10}
			set, err := extract.SpikeSet(rec, []int{4, 6}, []float64{4, 6}, w)

			Convey("Then the columns agree", func() {
				So(err, ShouldBeNil)
				So(set.Len(), ShouldEqual, 2)
				So(set.Width(), ShouldEqual, 4)
				So(set.Heights(), ShouldResemble, []float64{4, 6})
			})
		})
	})

	Convey("Given a window and a sample rate", t, func() {
		axis := extract.TimeAxis(model.Window{PreSamples: 1, PostSamples: 2}, 4)

		Convey("Then the time axis starts at zero in sample steps", func() {
			So(axis, ShouldResemble, []float64{0, 0.25, 0.5, 0.75})
		})
	})
}

package synth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/spikecurator/internal/domain/detect"
	"github.com/okian/spikecurator/internal/domain/model"
	"github.com/okian/spikecurator/internal/synth"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerate(t *testing.T) {
	Convey("Given the default generator settings with little noise", t, func() {
		cfg := synth.DefaultConfig()
		cfg.NoiseStd = 0.01
		rec, truth, err := synth.Generate(cfg)
		So(err, ShouldBeNil)

		Convey("Then the recording is well formed", func() {
			So(rec.Validate(), ShouldBeNil)
			So(rec.Len(), ShouldEqual, 40000)
			So(truth.Times, ShouldHaveLength, cfg.Spikes)
			for k := 1; k < len(truth.Times); k++ {
				So(truth.Times[k]-truth.Times[k-1], ShouldBeGreaterThanOrEqualTo, cfg.MinGap.Seconds()-1e-12)
			}
		})

		Convey("Then the same seed reproduces the same signal", func() {
			again, _, err := synth.Generate(cfg)
			So(err, ShouldBeNil)
			So(again.Samples, ShouldResemble, rec.Samples)
		})

		Convey("Then both shapes are present", func() {
			counts := map[synth.Shape]int{}
			for _, s := range truth.Shapes {
				counts[s]++
			}
			So(counts[synth.ShapeNarrow], ShouldBeGreaterThan, 0)
			So(counts[synth.ShapeBroad], ShouldBeGreaterThan, 0)
		})

		Convey("When the detector runs over it", func() {
			w := model.WindowFromSeconds(0.5e-3, 1.5e-3, rec.SampleRate)
			indices, _, err := detect.New(detect.WithWindow(w)).Detect(rec.Samples, rec.SampleRate, 0.4, 1e-3)

			Convey("Then every embedded spike is found once", func() {
				So(err, ShouldBeNil)
				So(indices, ShouldHaveLength, len(truth.PeakIndices))
				for k, p := range truth.PeakIndices {
					So(indices[k], ShouldBeBetweenOrEqual, p-2, p+2)
				}
			})
		})
	})

	Convey("Given settings that cannot fit the spikes", t, func() {
		cfg := synth.DefaultConfig()
		cfg.Seconds = 0.01
		cfg.MinGap = 5 * time.Millisecond

		_, _, err := synth.Generate(cfg)

		Convey("Then ErrInvalidConfig is returned", func() {
			So(errors.Is(err, synth.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

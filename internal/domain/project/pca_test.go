package project_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/spikecurator/internal/domain/project"
	. "github.com/smartystreets/goconvey/convey"
)

// planar builds waveforms a*u + b*v for orthonormal u, v in 4 dimensions.
func planar(coeffs [][2]float64) [][]float64 {
	u := []float64{0.5, 0.5, 0.5, 0.5}
	v := []float64{0.5, -0.5, 0.5, -0.5}
	out := make([][]float64, len(coeffs))
	for i, c := range coeffs {
		w := make([]float64, 4)
		for j := range w {
			w[j] = c[0]*u[j] + c[1]*v[j] + 1 // constant offset is removed by centring
		}
		out[i] = w
	}
	return out
}

func dist(ax, ay, bx, by float64) float64 { return math.Hypot(ax-bx, ay-by) }

func TestPCA_Project(t *testing.T) {
	coeffs := [][2]float64{{-10, 1}, {-5, -1}, {0, 0}, {5, -1}, {10, 1}}
	waveforms := planar(coeffs)

	Convey("Given waveforms lying in a plane", t, func() {
		p := project.NewPCA()

		Convey("When projecting", func() {
			proj, err := p.Project(waveforms)

			Convey("Then there is one point per waveform", func() {
				So(err, ShouldBeNil)
				So(proj.Len(), ShouldEqual, len(waveforms))
				So(len(proj.Points()), ShouldEqual, len(waveforms))
				r, c := proj.Matrix().Dims()
				So(r, ShouldEqual, 2)
				So(c, ShouldEqual, len(waveforms))
			})

			Convey("And pairwise distances are preserved", func() {
				for i := range coeffs {
					for j := range coeffs {
						want := dist(coeffs[i][0], coeffs[i][1], coeffs[j][0], coeffs[j][1])
						got := dist(proj.X[i], proj.Y[i], proj.X[j], proj.Y[j])
						So(got, ShouldAlmostEqual, want, 1e-9)
					}
				}
			})

			Convey("And the first axis carries the larger spread", func() {
				So(math.Abs(proj.X[0]-proj.X[4]), ShouldAlmostEqual, 20, 1e-9)
			})

			Convey("And the result is deterministic", func() {
				again, err := project.NewPCA().Project(waveforms)
				So(err, ShouldBeNil)
				So(again.X, ShouldResemble, proj.X)
				So(again.Y, ShouldResemble, proj.Y)
			})
		})

		Convey("When fewer than two waveforms are given", func() {
			_, err := p.Project(waveforms[:1])

			Convey("Then ErrInsufficientSamples is returned", func() {
				So(errors.Is(err, project.ErrInsufficientSamples), ShouldBeTrue)
			})
		})

		Convey("When waveforms differ in length", func() {
			_, err := p.Project([][]float64{{1, 2, 3}, {1, 2}})

			Convey("Then ErrShape is returned", func() {
				So(errors.Is(err, project.ErrShape), ShouldBeTrue)
			})
		})
	})

	Convey("Given a fixed-basis projector", t, func() {
		p := project.NewPCA(project.WithPolicy(project.PolicyFixed))
		full, err := p.Project(waveforms)
		So(err, ShouldBeNil)
		So(p.Policy(), ShouldEqual, project.PolicyFixed)

		Convey("When projecting a subset", func() {
			sub, err := p.Project(waveforms[:3])

			Convey("Then the kept points do not move", func() {
				So(err, ShouldBeNil)
				for i := 0; i < 3; i++ {
					So(sub.X[i], ShouldAlmostEqual, full.X[i], 1e-12)
					So(sub.Y[i], ShouldAlmostEqual, full.Y[i], 1e-12)
				}
			})
		})

		Convey("When a fresh projector projects a subset", func() {
			fresh := p.Fresh()
			sub, err := fresh.Project(waveforms[:3])
			again, _ := p.Project(waveforms[:3])

			Convey("Then it refits while the original keeps its basis", func() {
				So(err, ShouldBeNil)
				So(fresh.(*project.PCA).Policy(), ShouldEqual, project.PolicyFixed)
				So(math.Abs(sub.X[0]-full.X[0])+math.Abs(sub.Y[0]-full.Y[0]), ShouldBeGreaterThan, 1e-6)
				So(again.X[0], ShouldAlmostEqual, full.X[0], 1e-12)
				So(again.Y[0], ShouldAlmostEqual, full.Y[0], 1e-12)
			})
		})

		Convey("When reset and projecting a subset", func() {
			p.Reset()
			sub, err := p.Project(waveforms[:3])

			Convey("Then the basis is refitted and points shift", func() {
				So(err, ShouldBeNil)
				So(math.Abs(sub.X[0]-full.X[0])+math.Abs(sub.Y[0]-full.Y[0]), ShouldBeGreaterThan, 1e-6)
			})
		})
	})

	Convey("Given a refitting projector", t, func() {
		p := project.NewPCA(project.WithPolicy(project.PolicyRefit))
		full, _ := p.Project(waveforms)

		Convey("When projecting a subset", func() {
			sub, err := p.Project(waveforms[:3])

			Convey("Then coordinates are relative to the subset's own mean", func() {
				So(err, ShouldBeNil)
				So(math.Abs(sub.X[0]-full.X[0])+math.Abs(sub.Y[0]-full.Y[0]), ShouldBeGreaterThan, 1e-6)
				sumX := sub.X[0] + sub.X[1] + sub.X[2]
				So(sumX, ShouldAlmostEqual, 0, 1e-9)
			})
		})
	})

	Convey("Given policy strings", t, func() {
		for in, want := range map[string]project.Policy{"": project.PolicyRefit, "refit": project.PolicyRefit, "fixed": project.PolicyFixed} {
			got, err := project.ParsePolicy(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}
		_, err := project.ParsePolicy("sometimes")
		So(err, ShouldNotBeNil)
	})
}

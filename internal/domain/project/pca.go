// Package project reduces spike waveforms to a two-dimensional feature space.
//
// The PCA projector centres the waveforms, takes the two leading principal
// directions from gonum's SVD-based stat.PC and projects onto them. The SVD
// is deterministic, and each direction's sign is fixed so that its largest
// absolute loading is positive, so identical input always maps to identical
// coordinates.
package project

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Components is the fixed output dimensionality.
const Components = 2

// Projector maps a waveform set onto feature coordinates.
type Projector interface {
	// Project returns one point per waveform, in input order.
	Project(waveforms [][]float64) (Projection, error)
	// Fresh returns a projector with the same settings and no retained
	// basis. The receiver is left as it was.
	Fresh() Projector
}

// Projection is the 2×N feature view.
type Projection struct {
	X []float64
	Y []float64
}

// Len returns N.
func (p Projection) Len() int { return len(p.X) }

// Points returns the projection as (x, y) pairs.
func (p Projection) Points() [][2]float64 {
	out := make([][2]float64, len(p.X))
	for i := range p.X {
		out[i] = [2]float64{p.X[i], p.Y[i]}
	}
	return out
}

// Matrix returns the projection as a 2×N dense matrix, nil when empty.
func (p Projection) Matrix() *mat.Dense {
	if len(p.X) == 0 {
		return nil
	}
	m := mat.NewDense(Components, len(p.X), nil)
	m.SetRow(0, p.X)
	m.SetRow(1, p.Y)
	return m
}

// basis is a fitted mean and a d×2 direction matrix.
type basis struct {
	mean []float64
	dirs *mat.Dense
}

// PCA is a principal component projector. It is not safe for concurrent
// use under PolicyFixed.
type PCA struct {
	policy Policy
	fixed  *basis
}

// NewPCA creates a PCA projector, refitting on every call by default.
func NewPCA(opts ...Option) *PCA {
	p := &PCA{policy: PolicyRefit}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy returns the configured basis policy.
func (p *PCA) Policy() Policy { return p.policy }

// Reset drops a retained basis.
func (p *PCA) Reset() { p.fixed = nil }

// Fresh implements Projector.
func (p *PCA) Fresh() Projector { return &PCA{policy: p.policy} }

// Project implements Projector.
func (p *PCA) Project(waveforms [][]float64) (Projection, error) {
	n := len(waveforms)
	if n < Components {
		return Projection{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientSamples, n, Components)
	}
	data, err := toDense(waveforms)
	if err != nil {
		return Projection{}, err
	}

	b := p.fixed
	if b == nil || p.policy == PolicyRefit {
		b, err = fit(data)
		if err != nil {
			return Projection{}, err
		}
		if p.policy == PolicyFixed {
			p.fixed = b
		}
	}
	if _, d := data.Dims(); d != len(b.mean) {
		return Projection{}, fmt.Errorf("%w: basis fitted on %d samples, got %d", ErrShape, len(b.mean), d)
	}
	return apply(data, b), nil
}

func toDense(waveforms [][]float64) (*mat.Dense, error) {
	d := len(waveforms[0])
	if d == 0 {
		return nil, fmt.Errorf("%w: empty waveform", ErrShape)
	}
	data := mat.NewDense(len(waveforms), d, nil)
	for i, w := range waveforms {
		if len(w) != d {
			return nil, fmt.Errorf("%w: waveform %d has %d samples, want %d", ErrShape, i, len(w), d)
		}
		data.SetRow(i, w)
	}
	return data, nil
}

func fit(data *mat.Dense) (*basis, error) {
	n, d := data.Dims()
	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, ErrDecomposition
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, k := vecs.Dims()

	dirs := mat.NewDense(d, Components, nil)
	for c := 0; c < Components && c < k; c++ {
		col := mat.Col(nil, c, &vecs)
		orientSign(col)
		dirs.SetCol(c, col)
	}

	mean := make([]float64, d)
	col := make([]float64, n)
	for j := range mean {
		mat.Col(col, j, data)
		mean[j] = stat.Mean(col, nil)
	}
	return &basis{mean: mean, dirs: dirs}, nil
}

// orientSign flips v so that its largest absolute entry is positive.
func orientSign(v []float64) {
	best := 0
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[best]) {
			best = i
		}
	}
	if v[best] < 0 {
		for i := range v {
			v[i] = -v[i]
		}
	}
}

func apply(data *mat.Dense, b *basis) Projection {
	n, d := data.Dims()
	centred := mat.NewDense(n, d, nil)
	centred.Apply(func(_, j int, v float64) float64 { return v - b.mean[j] }, data)

	var out mat.Dense
	out.Mul(centred, b.dirs)
	return Projection{
		X: mat.Col(nil, 0, &out),
		Y: mat.Col(nil, 1, &out),
	}
}

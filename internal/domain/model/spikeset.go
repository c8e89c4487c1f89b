package model

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// SpikeSet is the struct-of-arrays holding the live spike events.
//
// The three columns always have identical length N; every waveform has
// length W. A SpikeSet is treated as a value: Split, Append and SortByTime
// return new sets and never touch the receiver's backing arrays.
type SpikeSet struct {
	width     int
	times     []float64
	heights   []float64
	waveforms [][]float64
}

// EditRecord captures exactly the columns removed by one edit.
type EditRecord struct {
	ID        uuid.UUID
	Kind      string
	Times     []float64
	Heights   []float64
	Waveforms [][]float64
}

// Len returns the number of removed spikes.
func (r EditRecord) Len() int { return len(r.Times) }

// NewSpikeSet builds a set from parallel columns, copying them.
func NewSpikeSet(width int, times, heights []float64, waveforms [][]float64) (SpikeSet, error) {
	s := SpikeSet{
		width:     width,
		times:     append([]float64(nil), times...),
		heights:   append([]float64(nil), heights...),
		waveforms: cloneRows(waveforms),
	}
	if err := s.Validate(); err != nil {
		return SpikeSet{}, err
	}
	return s, nil
}

// EmptySpikeSet returns a set with no spikes and the given waveform width.
func EmptySpikeSet(width int) SpikeSet {
	return SpikeSet{width: width}
}

// Validate checks the column-length invariant.
func (s SpikeSet) Validate() error {
	n := len(s.times)
	if len(s.heights) != n || len(s.waveforms) != n {
		return fmt.Errorf("%w: times=%d heights=%d waveforms=%d",
			ErrConsistencyViolation, n, len(s.heights), len(s.waveforms))
	}
	for k, w := range s.waveforms {
		if len(w) != s.width {
			return fmt.Errorf("%w: waveform %d has %d samples, want %d",
				ErrConsistencyViolation, k, len(w), s.width)
		}
	}
	return nil
}

// Len returns N.
func (s SpikeSet) Len() int { return len(s.times) }

// Width returns W.
func (s SpikeSet) Width() int { return s.width }

// Times returns a copy of the spike times.
func (s SpikeSet) Times() []float64 { return append([]float64(nil), s.times...) }

// Heights returns a copy of the peak heights.
func (s SpikeSet) Heights() []float64 { return append([]float64(nil), s.heights...) }

// Waveforms returns a copy of the waveforms, one row per spike.
func (s SpikeSet) Waveforms() [][]float64 { return cloneRows(s.waveforms) }

// Sample returns waveform value at time column col for spike k.
func (s SpikeSet) Sample(col, k int) float64 { return s.waveforms[k][col] }

// WaveformMatrix exports the waveforms as a W×N dense matrix, one column per
// spike. It returns nil for an empty set.
func (s SpikeSet) WaveformMatrix() *mat.Dense {
	n := len(s.waveforms)
	if n == 0 || s.width == 0 {
		return nil
	}
	m := mat.NewDense(s.width, n, nil)
	for k, w := range s.waveforms {
		m.SetCol(k, w)
	}
	return m
}

// Split partitions the set. Spikes for which remove returns true go to the
// returned EditRecord, the rest stay in the returned SpikeSet in their
// original order.
func (s SpikeSet) Split(kind string, remove func(k int) bool) (SpikeSet, EditRecord) {
	kept := SpikeSet{width: s.width}
	rec := EditRecord{ID: uuid.New(), Kind: kind}
	for k := range s.times {
		w := append([]float64(nil), s.waveforms[k]...)
		if remove(k) {
			rec.Times = append(rec.Times, s.times[k])
			rec.Heights = append(rec.Heights, s.heights[k])
			rec.Waveforms = append(rec.Waveforms, w)
			continue
		}
		kept.times = append(kept.times, s.times[k])
		kept.heights = append(kept.heights, s.heights[k])
		kept.waveforms = append(kept.waveforms, w)
	}
	return kept, rec
}

// Append concatenates the record's columns after the live ones. Order is not
// restored; call SortByTime afterwards.
func (s SpikeSet) Append(rec EditRecord) SpikeSet {
	out := SpikeSet{
		width:     s.width,
		times:     make([]float64, 0, len(s.times)+len(rec.Times)),
		heights:   make([]float64, 0, len(s.heights)+len(rec.Heights)),
		waveforms: make([][]float64, 0, len(s.waveforms)+len(rec.Waveforms)),
	}
	out.times = append(append(out.times, s.times...), rec.Times...)
	out.heights = append(append(out.heights, s.heights...), rec.Heights...)
	out.waveforms = append(append(out.waveforms, cloneRows(s.waveforms)...), cloneRows(rec.Waveforms)...)
	return out
}

// SortByTime returns the set ordered by ascending time with heights and
// waveforms permuted to match. Equal times keep their relative order.
func (s SpikeSet) SortByTime() SpikeSet {
	perm := make([]int, len(s.times))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool { return s.times[perm[a]] < s.times[perm[b]] })

	out := SpikeSet{
		width:     s.width,
		times:     make([]float64, len(perm)),
		heights:   make([]float64, len(perm)),
		waveforms: make([][]float64, len(perm)),
	}
	for i, p := range perm {
		out.times[i] = s.times[p]
		out.heights[i] = s.heights[p]
		out.waveforms[i] = append([]float64(nil), s.waveforms[p]...)
	}
	return out
}

func cloneRows(rows [][]float64) [][]float64 {
	if rows == nil {
		return nil
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}

// Package isi derives inter-spike-interval statistics from spike times.
package isi

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const msPerSecond = 1000.0

// Intervals returns consecutive differences of sorted spike times in
// milliseconds. Fewer than two spikes yield an empty, non-nil slice.
func Intervals(sortedTimes []float64) []float64 {
	if len(sortedTimes) < 2 {
		return []float64{}
	}
	out := make([]float64, len(sortedTimes)-1)
	for i := 1; i < len(sortedTimes); i++ {
		out[i-1] = (sortedTimes[i] - sortedTimes[i-1]) * msPerSecond
	}
	return out
}

// Bin is one histogram bar over [Lo, Hi).
type Bin struct {
	Lo     float64 `json:"lo"`
	Hi     float64 `json:"hi"`
	Center float64 `json:"center"`
	Count  int     `json:"count"`
}

// Histogram counts intervals into n equal-width bins between the smallest
// and largest value. The largest value lands in the last bin. All-equal
// input collapses into a single bin.
func Histogram(intervals []float64, n int) []Bin {
	if len(intervals) == 0 || n < 1 {
		return []Bin{}
	}
	lo, hi := floats.Min(intervals), floats.Max(intervals)
	if hi == lo {
		return []Bin{{Lo: lo, Hi: hi, Center: lo, Count: len(intervals)}}
	}
	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lo = lo + float64(i)*width
		bins[i].Hi = lo + float64(i+1)*width
		bins[i].Center = lo + (float64(i)+0.5)*width
	}
	bins[n-1].Hi = hi
	for _, v := range intervals {
		idx := int(math.Floor((v - lo) / width))
		if idx >= n {
			idx = n - 1
		}
		bins[idx].Count++
	}
	return bins
}

// LogHistogram counts intervals into n bins whose edges are evenly spaced
// on a log scale between the smallest and largest positive value.
// Non-positive intervals cannot be placed on a log axis and are skipped.
func LogHistogram(intervals []float64, n int) []Bin {
	positive := make([]float64, 0, len(intervals))
	for _, v := range intervals {
		if v > 0 {
			positive = append(positive, v)
		}
	}
	if len(positive) == 0 || n < 1 {
		return []Bin{}
	}
	lo, hi := floats.Min(positive), floats.Max(positive)
	if hi == lo {
		return []Bin{{Lo: lo, Hi: hi, Center: lo, Count: len(positive)}}
	}
	edges := floats.LogSpan(make([]float64, n+1), lo, hi)
	edges[0], edges[n] = lo, hi

	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lo = edges[i]
		bins[i].Hi = edges[i+1]
		bins[i].Center = math.Sqrt(edges[i] * edges[i+1])
	}
	for _, v := range positive {
		idx := floats.Within(edges, v)
		if idx < 0 {
			idx = n - 1 // v == hi
		}
		bins[idx].Count++
	}
	return bins
}

// Summary describes an interval distribution.
type Summary struct {
	Count  int     `json:"count"`
	MinMS  float64 `json:"min_ms"`
	MaxMS  float64 `json:"max_ms"`
	MeanMS float64 `json:"mean_ms"`
	StdMS  float64 `json:"std_ms"`
	// CV is the coefficient of variation, a firing regularity measure.
	CV float64 `json:"cv"`
}

// Summarize computes Summary; an empty input gives the zero value.
func Summarize(intervals []float64) Summary {
	if len(intervals) == 0 {
		return Summary{}
	}
	s := Summary{
		Count: len(intervals),
		MinMS: floats.Min(intervals),
		MaxMS: floats.Max(intervals),
	}
	if len(intervals) == 1 {
		s.MeanMS = intervals[0]
	} else {
		s.MeanMS, s.StdMS = stat.MeanStdDev(intervals, nil)
	}
	if s.MeanMS != 0 {
		s.CV = s.StdMS / s.MeanMS
	}
	return s
}

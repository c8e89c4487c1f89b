package service

import (
	"sync"

	"github.com/okian/spikecurator/internal/domain/curation"
	"github.com/okian/spikecurator/internal/domain/isi"
)

// View is an immutable copy of the session state taken after each
// command. Readers never touch the engine directly.
type View struct {
	Seq             uint64
	Snapshot        curation.Snapshot
	History         []curation.HistoryEntry
	HeightThreshold float64
	Detected        int

	intervalsOnce sync.Once
	intervals     []float64
}

// Intervals returns the inter-spike intervals in milliseconds, computed
// on first use.
func (v *View) Intervals() []float64 {
	v.intervalsOnce.Do(func() {
		v.intervals = isi.Intervals(v.Snapshot.Spikes.Times())
	})
	return append([]float64{}, v.intervals...)
}

// ISIView is the interval histogram payload.
type ISIView struct {
	IntervalsMS []float64   `json:"intervals_ms"`
	Bins        []isi.Bin   `json:"bins"`
	Log         bool        `json:"log"`
	Summary     isi.Summary `json:"summary"`
}

// Overlay is the waveform overlay payload: every live waveform against
// the shared time axis plus the last threshold mark.
type Overlay struct {
	TimeAxis        []float64               `json:"time_axis"`
	Waveforms       [][]float64             `json:"waveforms"`
	SpikeTimes      []float64               `json:"spike_times"`
	SpikeHeights    []float64               `json:"spike_heights"`
	Threshold       *curation.ThresholdMark `json:"threshold,omitempty"`
	HeightThreshold float64                 `json:"height_threshold"`
	Mode            curation.Mode           `json:"mode"`
}

// publish replaces the shared view. Called by the dispatcher, or by Start
// before the dispatcher exists.
func (s *Session) publish() {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()

	var seq uint64
	if s.view != nil {
		seq = s.view.Seq + 1
	}
	s.view = &View{
		Seq:             seq,
		Snapshot:        s.engine.Snapshot(),
		History:         s.engine.History(),
		HeightThreshold: s.heightThreshold,
		Detected:        s.detected,
	}
}

// View returns the latest published view, or nil before Start.
func (s *Session) View() *View {
	s.viewMu.RLock()
	defer s.viewMu.RUnlock()
	return s.view
}

// Mode returns the current interaction state.
func (s *Session) Mode() curation.Mode {
	if v := s.View(); v != nil {
		return v.Snapshot.Mode
	}
	return curation.ModeIdle
}

// History returns the applied mutating commands since the last reset.
func (s *Session) History() []curation.HistoryEntry {
	if v := s.View(); v != nil {
		return append([]curation.HistoryEntry(nil), v.History...)
	}
	return nil
}

// Overlay returns the waveform overlay for the current spike set.
func (s *Session) Overlay() Overlay {
	v := s.View()
	if v == nil {
		return Overlay{}
	}
	set := v.Snapshot.Spikes
	return Overlay{
		TimeAxis:        v.Snapshot.TimeAxis,
		Waveforms:       set.Waveforms(),
		SpikeTimes:      set.Times(),
		SpikeHeights:    set.Heights(),
		Threshold:       v.Snapshot.Threshold,
		HeightThreshold: v.HeightThreshold,
		Mode:            v.Snapshot.Mode,
	}
}

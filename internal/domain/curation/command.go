// Package curation owns the live spike set and applies interactive edits
// to it: threshold cuts on waveforms, region cuts in feature space and
// a LIFO undo of both.
package curation

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Mode is the engine's interaction state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeAwaitingThreshold
	ModeAwaitingRegion
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeAwaitingThreshold:
		return "awaiting_threshold"
	case ModeAwaitingRegion:
		return "awaiting_region"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalJSON encodes the mode by name.
func (m Mode) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

// Kind names a command.
type Kind string

const (
	KindToggleThreshold  Kind = "toggle_threshold"
	KindEnterRegion      Kind = "enter_region"
	KindCancelRegion     Kind = "cancel_region"
	KindPointerPrimary   Kind = "pointer_primary"
	KindPointerSecondary Kind = "pointer_secondary"
	KindRegionConfirmed  Kind = "region_confirmed"
	KindUndo             Kind = "undo"
)

// Kinds lists every command kind the engine accepts.
func Kinds() []Kind {
	return []Kind{
		KindToggleThreshold, KindEnterRegion, KindCancelRegion,
		KindPointerPrimary, KindPointerSecondary, KindRegionConfirmed, KindUndo,
	}
}

// Mutating reports whether the kind may change the spike set.
func (k Kind) Mutating() bool {
	switch k {
	case KindPointerPrimary, KindPointerSecondary, KindRegionConfirmed, KindUndo:
		return true
	}
	return false
}

// Command is one translated input event. X/Y carry the pointer position;
// X2/Y2 the opposite rectangle corner for region commands.
type Command struct {
	ID   uuid.UUID
	Kind Kind
	X, Y float64
	X2   float64
	Y2   float64
}

func newCommand(k Kind) Command { return Command{ID: uuid.New(), Kind: k} }

// ToggleThresholdMode switches between idle and awaiting a threshold.
func ToggleThresholdMode() Command { return newCommand(KindToggleThreshold) }

// EnterRegionMode starts a single-shot region selection.
func EnterRegionMode() Command { return newCommand(KindEnterRegion) }

// CancelRegion abandons a pending region selection.
func CancelRegion() Command { return newCommand(KindCancelRegion) }

// PointerPrimary is a lower-bound cut at waveform time x and voltage y.
func PointerPrimary(x, y float64) Command {
	c := newCommand(KindPointerPrimary)
	c.X, c.Y = x, y
	return c
}

// PointerSecondary is an upper-bound cut at waveform time x and voltage y.
func PointerSecondary(x, y float64) Command {
	c := newCommand(KindPointerSecondary)
	c.X, c.Y = x, y
	return c
}

// RegionConfirmed removes the feature points inside the closed rectangle
// spanned by the two corners.
func RegionConfirmed(x1, y1, x2, y2 float64) Command {
	c := newCommand(KindRegionConfirmed)
	c.X, c.Y, c.X2, c.Y2 = x1, y1, x2, y2
	return c
}

// Undo reverses the most recent edit.
func Undo() Command { return newCommand(KindUndo) }

// Response reports the outcome of one command.
type Response struct {
	CommandID uuid.UUID `json:"command_id"`
	Kind      Kind      `json:"kind"`
	Mode      Mode      `json:"mode"`
	Applied   bool      `json:"applied"`
	Removed   int       `json:"removed"`
	Restored  int       `json:"restored"`
	Live      int       `json:"live"`
	UndoDepth int       `json:"undo_depth"`
	// Fatal marks an internal consistency failure; the edit was refused
	// and the previous state kept.
	Fatal bool   `json:"fatal"`
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func (r *Response) fail(err error, fatal bool) {
	r.Err = err
	r.Error = err.Error()
	r.Fatal = fatal
}

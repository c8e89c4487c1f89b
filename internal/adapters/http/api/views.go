package api

import (
	"net/http"
	"strconv"

	"github.com/okian/spikecurator/internal/domain/curation"
)

// ViewsHandler serves the read side of a session.
type ViewsHandler struct {
	deps       ViewDependencies
	isiBins    int
	isiLog     bool
	maxISIBins int
}

// NewViewsHandler creates a new views handler.
func NewViewsHandler(deps ViewDependencies, isiBins int, isiLog bool, maxBins int) *ViewsHandler {
	return &ViewsHandler{deps: deps, isiBins: isiBins, isiLog: isiLog, maxISIBins: maxBins}
}

type spikesResponse struct {
	Seq      uint64    `json:"seq"`
	Count    int       `json:"count"`
	Detected int       `json:"detected"`
	Width    int       `json:"width"`
	Times    []float64 `json:"times"`
	Heights  []float64 `json:"heights"`
}

type featuresResponse struct {
	Seq   uint64    `json:"seq"`
	Count int       `json:"count"`
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
	Note  string    `json:"note,omitempty"`
}

type modeResponse struct {
	Seq       uint64                  `json:"seq"`
	Mode      curation.Mode           `json:"mode"`
	UndoDepth int                     `json:"undo_depth"`
	Live      int                     `json:"live"`
	Threshold *curation.ThresholdMark `json:"threshold,omitempty"`
}

// view returns the current view or writes 503 when the session has not
// published one yet.
func (h *ViewsHandler) view(w http.ResponseWriter, r *http.Request, op string) (ok bool, seq uint64, snap curation.Snapshot, detected int) {
	if !allowMethods(w, r, http.MethodGet) {
		return false, 0, curation.Snapshot{}, 0
	}
	v := h.deps.View()
	if v == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", NewKind(op, ErrUnavailable))
		return false, 0, curation.Snapshot{}, 0
	}
	return true, v.Seq, v.Snapshot, v.Detected
}

// HandleSpikes handles GET /spikes requests.
func (h *ViewsHandler) HandleSpikes(w http.ResponseWriter, r *http.Request) {
	ok, seq, snap, detected := h.view(w, r, "api.get_spikes")
	if !ok {
		return
	}
	set := snap.Spikes
	writeJSON(w, http.StatusOK, spikesResponse{
		Seq:      seq,
		Count:    set.Len(),
		Detected: detected,
		Width:    set.Width(),
		Times:    set.Times(),
		Heights:  set.Heights(),
	})
}

// HandleFeatures handles GET /features requests. Fewer than two live
// spikes give an empty view with a note rather than an error.
func (h *ViewsHandler) HandleFeatures(w http.ResponseWriter, r *http.Request) {
	ok, seq, snap, _ := h.view(w, r, "api.get_features")
	if !ok {
		return
	}
	resp := featuresResponse{Seq: seq, Count: snap.Features.Len(), X: snap.Features.X, Y: snap.Features.Y}
	if resp.X == nil {
		resp.X, resp.Y = []float64{}, []float64{}
	}
	if snap.FeaturesErr != nil {
		resp.Note = snap.FeaturesErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleISI handles GET /isi?bins=N&log=bool requests.
func (h *ViewsHandler) HandleISI(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_isi"
	if ok, _, _, _ := h.view(w, r, op); !ok {
		return
	}
	q := r.URL.Query()
	bins, logScale := h.isiBins, h.isiLog
	if s := q.Get("bins"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > h.maxISIBins {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		bins = n
	}
	if s := q.Get("log"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		logScale = b
	}
	writeJSON(w, http.StatusOK, h.deps.ISI(bins, logScale))
}

// HandleMode handles GET /mode requests.
func (h *ViewsHandler) HandleMode(w http.ResponseWriter, r *http.Request) {
	ok, seq, snap, _ := h.view(w, r, "api.get_mode")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, modeResponse{
		Seq:       seq,
		Mode:      snap.Mode,
		UndoDepth: snap.UndoDepth,
		Live:      snap.Spikes.Len(),
		Threshold: snap.Threshold,
	})
}

// HandleOverlay handles GET /overlay requests.
func (h *ViewsHandler) HandleOverlay(w http.ResponseWriter, r *http.Request) {
	if ok, _, _, _ := h.view(w, r, "api.get_overlay"); !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Overlay())
}

// HandleHistory handles GET /history requests.
func (h *ViewsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	v := h.deps.View()
	if v == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", NewKind("api.get_history", ErrUnavailable))
		return
	}
	history := v.History
	if history == nil {
		history = []curation.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, history)
}

// Package api declares the HTTP command channel and read views of a
// curation session.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	service "github.com/okian/spikecurator/internal/app"
	"github.com/okian/spikecurator/internal/domain/curation"
	"github.com/okian/spikecurator/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the session implementation.
type Dependencies interface {
	CommandDependencies
	ViewDependencies
	StatsProvider
}

// CommandDependencies submits commands to the single-writer session.
type CommandDependencies interface {
	Submit(ctx context.Context, cmd curation.Command) (service.Result, error)
	ResetSession(ctx context.Context, id uuid.UUID, threshold float64) (service.Result, error)
}

// ViewDependencies reads the latest published session state.
type ViewDependencies interface {
	View() *service.View
	ISI(bins int, logScale bool) service.ISIView
	Overlay() service.Overlay
}

// Server wires HTTP routes for the curation API.
type Server struct {
	opsHandler      *OpsHandler
	commandsHandler *CommandsHandler
	viewsHandler    *ViewsHandler
	logger          logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		opsHandler:      NewOpsHandler(deps),
		commandsHandler: NewCommandsHandler(deps, o.logger),
		viewsHandler:    NewViewsHandler(deps, o.isiBins, o.isiLog, o.maxISIBins),
		logger:          o.logger,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	route := func(path, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(path, RequestIDMiddleware(MetricsMiddleware(h, endpoint)))
	}
	route("/healthz", "healthz", s.opsHandler.HandleHealth)
	route("/stats", "stats", s.opsHandler.HandleStats)
	route("/commands", "commands", s.commandsHandler.HandlePostCommand)
	route("/spikes", "spikes", s.viewsHandler.HandleSpikes)
	route("/features", "features", s.viewsHandler.HandleFeatures)
	route("/isi", "isi", s.viewsHandler.HandleISI)
	route("/mode", "mode", s.viewsHandler.HandleMode)
	route("/overlay", "overlay", s.viewsHandler.HandleOverlay)
	route("/history", "history", s.viewsHandler.HandleHistory)

	s.logger.Debug(ctx, "api routes registered")
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	service "github.com/okian/spikecurator/internal/app"
	"github.com/okian/spikecurator/internal/domain/curation"
	"github.com/okian/spikecurator/internal/domain/model"
	"github.com/okian/spikecurator/pkg/logger"
)

// commandRequest is the body of POST /commands.
type commandRequest struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	X2        float64  `json:"x2"`
	Y2        float64  `json:"y2"`
	Threshold *float64 `json:"threshold"`
}

func (c commandRequest) validate() error {
	switch {
	case strings.TrimSpace(c.Kind) == "":
		return errors.New("missing kind")
	case curation.Kind(c.Kind) == service.KindResetSession && c.Threshold == nil:
		return errors.New("reset_session requires threshold")
	}
	if c.ID != "" {
		if _, err := uuid.Parse(c.ID); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
	}
	return nil
}

func (c commandRequest) command() curation.Command {
	var id uuid.UUID
	if c.ID != "" {
		id = uuid.MustParse(c.ID)
	}
	return curation.Command{ID: id, Kind: curation.Kind(c.Kind), X: c.X, Y: c.Y, X2: c.X2, Y2: c.Y2}
}

// CommandsHandler handles command requests.
type CommandsHandler struct {
	deps   CommandDependencies
	logger logger.Logger
}

// NewCommandsHandler creates a new commands handler.
func NewCommandsHandler(deps CommandDependencies, l logger.Logger) *CommandsHandler {
	if l == nil {
		l = logger.Nop()
	}
	return &CommandsHandler{deps: deps, logger: l}
}

// HandlePostCommand handles POST /commands requests.
func (h *CommandsHandler) HandlePostCommand(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_command"
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	cmd := req.command()
	var (
		res service.Result
		err error
	)
	if cmd.Kind == service.KindResetSession {
		res, err = h.deps.ResetSession(r.Context(), cmd.ID, *req.Threshold)
	} else {
		res, err = h.deps.Submit(r.Context(), cmd)
	}
	if err != nil {
		h.writeSubmitError(r.Context(), w, op, err)
		return
	}

	status := commandStatus(res)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "command failed",
			logger.String("id", res.CommandID.String()),
			logger.String("kind", string(res.Kind)),
			logger.String("error", res.Error))
	}
	writeJSON(w, status, res)
}

func (h *CommandsHandler) writeSubmitError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrBusy):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, service.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "timeout", Wrap(op, err))
	default:
		h.logger.Error(ctx, "command submit failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// commandStatus maps an engine response onto an HTTP status. Replays and
// no-ops such as an empty undo stack are successful requests.
func commandStatus(res service.Result) int {
	switch {
	case res.Duplicate, res.Err == nil:
		return http.StatusOK
	case res.Fatal, errors.Is(res.Err, model.ErrConsistencyViolation):
		return http.StatusInternalServerError
	case errors.Is(res.Err, curation.ErrInvalidCommand):
		return http.StatusConflict
	case errors.Is(res.Err, curation.ErrUnknownCommand):
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}

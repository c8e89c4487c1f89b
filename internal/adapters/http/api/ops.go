package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/spikecurator/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider reports a session summary for GET /stats.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// OpsHandler serves the operational endpoints: liveness plus Prometheus
// exposition on /healthz and the session summary on /stats.
type OpsHandler struct {
	stats   StatsProvider
	metrics http.Handler
	started time.Time
	now     func() time.Time
}

// NewOpsHandler builds the handler over the global metrics registry.
func NewOpsHandler(stats StatsProvider) *OpsHandler {
	return &OpsHandler{
		stats:   stats,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
		started: time.Now(),
		now:     time.Now,
	}
}

// HandleHealth answers GET /healthz. Clients asking for application/json
// get a liveness document; everyone else gets the Prometheus exposition.
func (h *OpsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	h.metrics.ServeHTTP(w, r)
}

// HandleStats answers GET /stats with the session summary and the API uptime.
func (h *OpsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	src := h.stats.GetStats()
	out := make(map[string]interface{}, len(src)+1)
	for k, v := range src {
		out[k] = v
	}
	out["uptimeSeconds"] = h.now().Sub(h.started).Seconds()
	writeJSON(w, http.StatusOK, out)
}

// allowMethods answers 405 with an Allow header unless r uses one of methods.
func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	return false
}

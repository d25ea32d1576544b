package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/Strob0t/mfi-api/internal/service"
)

// DefaultBodyLimit caps request bodies when Handlers.BodyLimit is unset.
const DefaultBodyLimit = 5 << 20

// Probe reports whether a backing dependency is reachable.
type Probe func(ctx context.Context) error

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	MFIs      *service.MFIService
	Branches  *service.BranchService
	BodyLimit int64
	// Probes are checked by /health/ready, keyed by dependency name.
	Probes map[string]Probe
}

func (h *Handlers) bodyLimit() int64 {
	if h.BodyLimit <= 0 {
		return DefaultBodyLimit
	}
	return h.BodyLimit
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health answers liveness checks.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthStatus{Status: "ok"})
}

// Ready runs every probe and answers 503 when any of them fails.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.Probes))
	for name := range h.Probes {
		names = append(names, name)
	}
	sort.Strings(names)

	res := healthStatus{Status: "ok", Checks: make(map[string]string, len(names))}
	code := http.StatusOK
	for _, name := range names {
		if err := h.Probes[name](ctx); err != nil {
			res.Checks[name] = err.Error()
			res.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		res.Checks[name] = "ok"
	}
	writeJSON(w, code, res)
}

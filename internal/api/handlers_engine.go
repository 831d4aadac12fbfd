package api

import (
	"net/http"

	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/pkg/httputil"
)

// GetEngineStatus handles GET /api/engine
func (h *Handlers) GetEngineStatus(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.engine.Status())
}

// StartEngine handles POST /api/engine/start. Starting a running engine
// is a no-op.
func (h *Handlers) StartEngine(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Start(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, h.engine.Status())
}

// StopEngine handles POST /api/engine/stop
func (h *Handlers) StopEngine(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Stop(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, h.engine.Status())
}

type evasionRequest struct {
	Mode string `json:"mode"`
}

// SetEvasionMode handles PUT /api/engine/evasion
func (h *Handlers) SetEvasionMode(w http.ResponseWriter, r *http.Request) {
	var req evasionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.engine.SetEvasionMode(domain.EvasionMode(req.Mode)); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, h.engine.Status())
}

// GetLogs handles GET /api/logs?limit=N, newest first.
func (h *Handlers) GetLogs(w http.ResponseWriter, r *http.Request) {
	log := h.engine.Log()
	entries := log.Recent(queryLimit(r, 50, 1000))
	httputil.OK(w, map[string]interface{}{
		"entries":  entries,
		"retained": log.Len(),
	})
}

// GetEvents handles GET /api/events?limit=N, newest first.
func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	buf := h.engine.Events()
	httputil.OK(w, map[string]interface{}{
		"events":   buf.Recent(queryLimit(r, 50, 1000)),
		"retained": buf.Len(),
	})
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ignite/traffic-engine/internal/activity"
	"github.com/ignite/traffic-engine/internal/behavior"
	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/pkg/httputil"
	"github.com/ignite/traffic-engine/internal/referrer"
	"github.com/ignite/traffic-engine/internal/service/campaign"
	"github.com/ignite/traffic-engine/internal/session"
	"github.com/ignite/traffic-engine/internal/worker"
)

// Engine is the operator-facing control surface of the traffic scheduler.
type Engine interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() domain.EngineStatus
	SetEvasionMode(mode domain.EvasionMode) error
	Log() *activity.Log
	Events() *activity.EventBuffer
}

// Handlers contains all HTTP handlers
type Handlers struct {
	campaigns *campaign.Service
	engine    Engine
	sessions  *session.Orchestrator
	referrers *referrer.Generator
	behaviors *behavior.Generator
}

// NewHandlers creates the handler set. sessions, referrers and behaviors
// back the session preview endpoints.
func NewHandlers(
	campaigns *campaign.Service,
	engine Engine,
	sessions *session.Orchestrator,
	referrers *referrer.Generator,
	behaviors *behavior.Generator,
) *Handlers {
	return &Handlers{
		campaigns: campaigns,
		engine:    engine,
		sessions:  sessions,
		referrers: referrers,
		behaviors: behaviors,
	}
}

// respondServiceError maps domain errors onto HTTP status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, campaign.ErrInvalid),
		errors.Is(err, campaign.ErrInvalidStatus),
		errors.Is(err, worker.ErrInvalidEvasionMode):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, campaign.ErrAlreadyExists):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, worker.ErrLockHeld):
		httputil.ServiceUnavailable(w, "lock_held", err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

// queryLimit parses ?limit= clamped to [1, max], defaulting to def.
func queryLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

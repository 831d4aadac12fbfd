package api

import (
	"net/http"
	"strconv"

	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/fingerprint"
	"github.com/ignite/traffic-engine/internal/pkg/httputil"
	"github.com/ignite/traffic-engine/internal/session"
)

// SessionPreview is a dry-run session plus its derived metrics.
type SessionPreview struct {
	Session    domain.SimulatedSession  `json:"session"`
	Engagement domain.EngagementMetrics `json:"engagement"`
	Success    domain.SuccessMetrics    `json:"success"`
}

// PreviewSession handles GET /api/sessions/preview. It builds one session
// without dispatching analytics or touching hit counters.
//
// Either ?campaign_id= or ad-hoc ?url=&keyword=&engine=&market=&os=&depth=.
// An empty engine with a market draws one from the market's weights.
func (h *Handlers) PreviewSession(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cfg := session.Config{
		TargetURL:    q.Get("url"),
		Keyword:      q.Get("keyword"),
		SearchEngine: q.Get("engine"),
		DeviceType:   fingerprint.DeviceClassForOS(q.Get("os")),
		Depth:        1,
	}
	if d, err := strconv.Atoi(q.Get("depth")); err == nil && d > 0 {
		cfg.Depth = d
	}

	if id := q.Get("campaign_id"); id != "" {
		c, err := h.campaigns.Get(r.Context(), id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		if len(c.URLs) > 0 {
			cfg.TargetURL = c.URLs[0]
		}
		cfg.Keyword = c.Keyword
		cfg.SearchEngine = c.SearchEngine
		cfg.DeviceType = fingerprint.DeviceClassForOS(c.TargetOS)
		cfg.Depth = max(c.Depth, 1)
	}

	if cfg.SearchEngine == "" {
		if market := q.Get("market"); market != "" {
			cfg.SearchEngine = h.referrers.RandomEngine(market)
		}
	}
	if cfg.TargetURL == "" {
		httputil.BadRequest(w, "url or campaign_id is required")
		return
	}

	s := h.sessions.StartSession(cfg)
	httputil.OK(w, SessionPreview{
		Session:    s,
		Engagement: h.behaviors.EngagementMetrics(s.Behavior),
		Success:    session.SuccessMetrics(),
	})
}

// GetSuccessMetrics handles GET /api/sessions/metrics
func (h *Handlers) GetSuccessMetrics(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, session.SuccessMetrics())
}

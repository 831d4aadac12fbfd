package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/pkg/httputil"
	"github.com/ignite/traffic-engine/internal/service/campaign"
)

// ListCampaigns handles GET /api/campaigns?status=&search=
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.campaigns.List(r.Context(), campaign.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	for i := range list {
		list[i].GA4APISecret = ""
	}
	httputil.OK(w, map[string]interface{}{
		"campaigns": list,
		"total":     len(list),
	})
}

// CreateCampaign handles POST /api/campaigns
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var in campaign.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.campaigns.Create(r.Context(), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, withoutSecret(c))
}

// GetCampaign handles GET /api/campaigns/{id}
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, withoutSecret(c))
}

// UpdateCampaign handles PUT /api/campaigns/{id}
func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var u campaign.UpdateFields
	if !httputil.Decode(w, r, &u) {
		return
	}
	c, err := h.campaigns.Update(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, withoutSecret(c))
}

// DeleteCampaign handles DELETE /api/campaigns/{id}
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// PauseCampaign handles POST /api/campaigns/{id}/pause
func (h *Handlers) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.Pause)
}

// ResumeCampaign handles POST /api/campaigns/{id}/resume
func (h *Handlers) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.Resume)
}

func (h *Handlers) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) error) {
	id := chi.URLParam(r, "id")
	if err := fn(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	c, err := h.campaigns.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, withoutSecret(c))
}

// ImportCampaigns handles POST /api/campaigns/import. Invalid records are
// reported per index; valid ones are still created.
func (h *Handlers) ImportCampaigns(w http.ResponseWriter, r *http.Request) {
	var in []campaign.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	res := h.campaigns.Import(r.Context(), in)
	status := http.StatusOK
	if len(res.Imported) == 0 && len(res.Errors) > 0 {
		status = http.StatusUnprocessableEntity
	}
	httputil.JSON(w, status, res)
}

// ExportCampaigns handles GET /api/campaigns/export
func (h *Handlers) ExportCampaigns(w http.ResponseWriter, r *http.Request) {
	out, err := h.campaigns.Export(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="campaigns.json"`)
	httputil.OK(w, out)
}

// withoutSecret hides the analytics API secret from responses.
func withoutSecret(c *domain.Campaign) domain.Campaign {
	out := c.Clone()
	out.GA4APISecret = ""
	return out
}

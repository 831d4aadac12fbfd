// Package memory provides an in-process campaign store. It backs the
// engine when no database is configured and doubles as a test fixture.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository on a guarded map.
type CampaignRepo struct {
	mu        sync.RWMutex
	campaigns map[string]*domain.Campaign
	now       func() time.Time
}

var _ campaign.Repository = (*CampaignRepo)(nil)

// NewCampaignRepo creates an empty store.
func NewCampaignRepo() *CampaignRepo {
	return &CampaignRepo{
		campaigns: make(map[string]*domain.Campaign),
		now:       time.Now,
	}
}

// Get returns a copy of the campaign.
func (r *CampaignRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := c.Clone()
	return &cp, nil
}

// List returns campaigns ordered by creation time.
func (r *CampaignRepo) List(_ context.Context, f campaign.ListFilter) ([]domain.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]domain.Campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) {
			continue
		}
		out = append(out, c.Clone())
	}
	sortByCreated(out)
	return out, nil
}

// ListActive returns active campaigns ordered by creation time.
func (r *CampaignRepo) ListActive(ctx context.Context) ([]domain.Campaign, error) {
	return r.List(ctx, campaign.ListFilter{Status: string(domain.CampaignActive)})
}

// Create stores a copy of c.
func (r *CampaignRepo) Create(_ context.Context, c *domain.Campaign) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.campaigns[c.ID]; exists {
		return "", campaign.ErrAlreadyExists
	}
	cp := c.Clone()
	now := r.now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.campaigns[cp.ID] = &cp
	c.CreatedAt, c.UpdatedAt = cp.CreatedAt, cp.UpdatedAt
	return cp.ID, nil
}

// Update overwrites editable fields; the stored hit count is preserved.
func (r *CampaignRepo) Update(_ context.Context, c *domain.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.campaigns[c.ID]
	if !ok {
		return campaign.ErrNotFound
	}
	cp := c.Clone()
	cp.Stats = existing.Stats
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = r.now()
	r.campaigns[cp.ID] = &cp
	return nil
}

// Delete removes a campaign.
func (r *CampaignRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[id]; !ok {
		return campaign.ErrNotFound
	}
	delete(r.campaigns, id)
	return nil
}

// UpdateStatus sets the status of a campaign.
func (r *CampaignRepo) UpdateStatus(_ context.Context, id string, status domain.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = r.now()
	return nil
}

// IncrementHits adds one hit under the write lock.
func (r *CampaignRepo) IncrementHits(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return 0, campaign.ErrNotFound
	}
	c.Stats.Hits++
	return c.Stats.Hits, nil
}

func sortByCreated(cs []domain.Campaign) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].ID < cs[j].ID
		}
		return cs[i].CreatedAt.Before(cs[j].CreatedAt)
	})
}

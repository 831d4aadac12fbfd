package campaign

import (
	"context"

	"github.com/ignite/traffic-engine/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the given filter, ordered by created_at.
	List(ctx context.Context, filter ListFilter) ([]domain.Campaign, error)

	// Create inserts a new campaign and returns its ID.
	Create(ctx context.Context, c *domain.Campaign) (string, error)

	// Update replaces the editable fields of a campaign. Hit counters are
	// never written through Update.
	Update(ctx context.Context, c *domain.Campaign) error

	// Delete removes a campaign.
	Delete(ctx context.Context, id string) error

	// UpdateStatus sets a campaign's status.
	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error

	// ListActive returns every campaign whose status is active.
	ListActive(ctx context.Context) ([]domain.Campaign, error)

	// IncrementHits adds exactly one hit and returns the new count.
	IncrementHits(ctx context.Context, id string) (int64, error)
}

// ListFilter controls filtering for campaign lists.
type ListFilter struct {
	Status string
	Search string
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Name           *string   `json:"name"`
	Region         *string   `json:"region"`
	CountryCode    *string   `json:"country_code"`
	URLs           *[]string `json:"urls"`
	TrafficPattern *string   `json:"traffic_pattern"`
	TargetOS       *string   `json:"target_os"`
	Keyword        *string   `json:"keyword"`
	SearchEngine   *string   `json:"search_engine"`
	Depth          *int      `json:"depth"`
	GA4ID          *string   `json:"ga4_id"`
	GA4APISecret   *string   `json:"ga4_api_secret"`
}

package domain

import (
	"strings"
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignActive CampaignStatus = "active"
	CampaignPaused CampaignStatus = "paused"
)

// Valid reports whether s is a known status.
func (s CampaignStatus) Valid() bool {
	return s == CampaignActive || s == CampaignPaused
}

// TrafficPattern is the temporal shape of inter-hit delays for a campaign.
type TrafficPattern string

const (
	PatternLinear TrafficPattern = "Linear"
	PatternPulse  TrafficPattern = "Pulse"
	PatternViral  TrafficPattern = "Viral"
)

// ParseTrafficPattern maps a label to a pattern, case-insensitively.
// Unset, empty, or unknown labels resolve to PatternLinear.
func ParseTrafficPattern(s string) TrafficPattern {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pulse":
		return PatternPulse
	case "viral":
		return PatternViral
	default:
		return PatternLinear
	}
}

// CampaignStats holds counters written by the scheduler.
type CampaignStats struct {
	Hits int64 `json:"hits" db:"hits"`
}

// Campaign is a targeting + behavior configuration unit.
type Campaign struct {
	ID          string         `json:"id" db:"id"`
	Name        string         `json:"name" db:"name"`
	Status      CampaignStatus `json:"status" db:"status"`
	Region      string         `json:"region" db:"region"`
	CountryCode string         `json:"country_code" db:"country_code"`
	URLs        []string       `json:"urls" db:"urls"`

	TrafficPattern TrafficPattern `json:"traffic_pattern" db:"traffic_pattern"`
	TargetOS       string         `json:"target_os" db:"target_os"`
	Keyword        string         `json:"keyword" db:"keyword"`
	SearchEngine   string         `json:"search_engine" db:"search_engine"`
	Depth          int            `json:"depth" db:"depth"`

	GA4ID        *string `json:"ga4_id" db:"ga4_id"`
	GA4APISecret string  `json:"ga4_api_secret,omitempty" db:"ga4_api_secret"`

	Stats CampaignStats `json:"stats"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EffectivePattern returns the pattern used for delay computation.
func (c *Campaign) EffectivePattern() TrafficPattern {
	return ParseTrafficPattern(string(c.TrafficPattern))
}

// IsActive returns true if the campaign is marked active.
func (c *Campaign) IsActive() bool {
	return c.Status == CampaignActive
}

// Eligible returns true if the scheduler may attribute a hit to the campaign.
// An active campaign without URLs is logically inactive.
func (c *Campaign) Eligible() bool {
	return c.IsActive() && len(c.URLs) > 0
}

// HasGA4 returns true if an analytics measurement id is linked.
func (c *Campaign) HasGA4() bool {
	return c.GA4ID != nil && strings.TrimSpace(*c.GA4ID) != ""
}

// Clone returns a deep copy safe to hand out of a store.
func (c Campaign) Clone() Campaign {
	out := c
	if c.URLs != nil {
		out.URLs = append([]string(nil), c.URLs...)
	}
	if c.GA4ID != nil {
		id := *c.GA4ID
		out.GA4ID = &id
	}
	return out
}

package domain

import "time"

// DeviceClass is the coarse device family a fingerprint is drawn for.
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
)

// Screen describes synthetic display geometry.
type Screen struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	ColorDepth int `json:"color_depth"`
}

// Hardware describes synthetic hardware hints.
type Hardware struct {
	Cores  int `json:"cores"`
	Memory int `json:"memory"` // GB
}

// Fingerprint is a synthetic browser/device identity bundle.
type Fingerprint struct {
	UserAgent string   `json:"user_agent"`
	Screen    Screen   `json:"screen"`
	Hardware  Hardware `json:"hardware"`
	Platform  string   `json:"platform"`
}

// SourceMedium is the analytics attribution tuple for a hit.
type SourceMedium struct {
	Source string `json:"source"`
	Medium string `json:"medium"`
}

// MediumOrganic is the only medium ever attributed to simulated search traffic.
const MediumOrganic = "organic"

// InteractionType enumerates simulated on-page events.
type InteractionType string

const (
	InteractionScroll InteractionType = "scroll"
	InteractionHover  InteractionType = "hover"
	InteractionClick  InteractionType = "click"
	InteractionCopy   InteractionType = "copy"
)

// Interaction is one simulated on-page event. Offsets are relative to
// session start.
type Interaction struct {
	Type     InteractionType `json:"type"`
	Page     int             `json:"page"`
	AtMs     int64           `json:"at_ms"`
	Duration int64           `json:"duration_ms,omitempty"`
	Target   string          `json:"target,omitempty"`
}

// SessionBehavior is a synthetic session behavior profile.
type SessionBehavior struct {
	PagesVisited int           `json:"pages_visited"`
	DurationMs   int64         `json:"duration_ms"`
	Events       []Interaction `json:"events"`
	BounceRate   float64       `json:"bounce_rate"`
}

// EngagementMetrics are derived from a SessionBehavior.
type EngagementMetrics struct {
	AvgTimeOnPageMs     int64   `json:"avg_time_on_page_ms"`
	InteractionsPerPage float64 `json:"interactions_per_page"`
	ScrollDepth         int     `json:"scroll_depth"`
	ReturnProbability   float64 `json:"return_probability"`
}

// Point is a 2D screen coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SuccessMetrics are fixed reference figures reported alongside sessions.
type SuccessMetrics struct {
	OrganicClassificationProbability float64 `json:"organic_classification_probability"`
	HumanBehaviorScore               int     `json:"human_behavior_score"`
	SEOImpactFactor                  float64 `json:"seo_impact_factor"`
}

// SimulatedSession is produced once per hit and never persisted.
type SimulatedSession struct {
	ID             string            `json:"id"`
	Fingerprint    Fingerprint       `json:"fingerprint"`
	Referrer       string            `json:"referrer"`
	Behavior       SessionBehavior   `json:"behavior"`
	SourceMedium   SourceMedium      `json:"source_medium"`
	NavigationPath []string          `json:"navigation_path"`
	Payload        *AnalyticsPayload `json:"payload,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

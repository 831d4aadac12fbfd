package domain

import "time"

// AnalyticsEventName enumerates the simulated analytics event names.
type AnalyticsEventName string

const (
	EventPageView       AnalyticsEventName = "page_view"
	EventSessionStart   AnalyticsEventName = "session_start"
	EventUserEngagement AnalyticsEventName = "user_engagement"
	EventScroll         AnalyticsEventName = "scroll"
)

// AnalyticsEventNames is the fixed catalog the scheduler draws from.
var AnalyticsEventNames = []AnalyticsEventName{
	EventPageView,
	EventSessionStart,
	EventUserEngagement,
	EventScroll,
}

// AnalyticsEvent is a simulated analytics record kept for the dashboard.
type AnalyticsEvent struct {
	ID         string             `json:"id"`
	Name       AnalyticsEventName `json:"name"`
	CampaignID string             `json:"campaign_id"`
	Timestamp  time.Time          `json:"timestamp"`
	Params     map[string]string  `json:"params"`
}

// PayloadEvent is a single event inside an AnalyticsPayload.
type PayloadEvent struct {
	Name   AnalyticsEventName `json:"name"`
	Params map[string]any     `json:"params"`
}

// AnalyticsPayload is the event body handed to an emitter.
type AnalyticsPayload struct {
	MeasurementID string         `json:"measurement_id"`
	ClientID      string         `json:"client_id"`
	Events        []PayloadEvent `json:"events"`
}

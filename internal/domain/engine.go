package domain

import (
	"strings"
	"time"
)

// EvasionMode controls the base inter-hit delay distribution.
type EvasionMode string

const (
	EvasionStandard EvasionMode = "Standard"
	EvasionStealth  EvasionMode = "Stealth"
	EvasionGhost    EvasionMode = "Ghost"
)

// ParseEvasionMode maps a label to a mode, case-insensitively.
func ParseEvasionMode(s string) (EvasionMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard":
		return EvasionStandard, true
	case "stealth":
		return EvasionStealth, true
	case "ghost":
		return EvasionGhost, true
	default:
		return "", false
	}
}

// EngineState enumerates the scheduler states.
type EngineState string

const (
	EngineStopped EngineState = "stopped"
	EngineRunning EngineState = "running"
)

// LogType distinguishes engine actions from failures.
type LogType string

const (
	LogWork  LogType = "work"
	LogError LogType = "error"
)

// LogEntry is an append-only record of one engine action or validation result.
type LogEntry struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Type      LogType   `json:"type"`
}

// CurrentJob is the "what is the engine doing right now" projection.
type CurrentJob struct {
	CampaignID   string    `json:"campaign_id"`
	CampaignName string    `json:"campaign_name"`
	URL          string    `json:"url"`
	CountryCode  string    `json:"country_code"`
	Flag         string    `json:"flag"`
	StartedAt    time.Time `json:"started_at"`
}

// EngineStatus is a point-in-time view of the scheduler.
type EngineStatus struct {
	State         EngineState `json:"state"`
	EvasionMode   EvasionMode `json:"evasion_mode"`
	CurrentJob    *CurrentJob `json:"current_job,omitempty"`
	NextDelay     int64       `json:"next_delay_ms"`
	TicksRun      int64       `json:"ticks_run"`
	HitsGenerated int64       `json:"hits_generated"`
	Errors        int64       `json:"errors"`
}

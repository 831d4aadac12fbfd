package activity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignite/traffic-engine/internal/domain"
)

const (
	// DefaultLogRetention is how many log entries are kept.
	DefaultLogRetention = 150
	// DefaultEventRetention is how many simulated analytics events are kept.
	DefaultEventRetention = 100
)

// Log is the engine's work/error log.
type Log struct {
	ring *Ring[domain.LogEntry]
	now  func() time.Time
}

// NewLog creates a log retaining at most limit entries.
func NewLog(limit int, now func() time.Time) *Log {
	if limit <= 0 {
		limit = DefaultLogRetention
	}
	if now == nil {
		now = time.Now
	}
	return &Log{ring: NewRing[domain.LogEntry](limit), now: now}
}

// Work appends a work entry.
func (l *Log) Work(msg string) domain.LogEntry {
	return l.add(domain.LogWork, msg)
}

// Error appends an error entry.
func (l *Log) Error(msg string) domain.LogEntry {
	return l.add(domain.LogError, msg)
}

func (l *Log) add(typ domain.LogType, msg string) domain.LogEntry {
	e := domain.LogEntry{
		ID:        uuid.New().String(),
		Message:   msg,
		Timestamp: l.now(),
		Type:      typ,
	}
	l.ring.Append(e)
	return e
}

// Entries returns retained entries, oldest first.
func (l *Log) Entries() []domain.LogEntry { return l.ring.Snapshot() }

// Recent returns up to n entries, newest first.
func (l *Log) Recent(n int) []domain.LogEntry { return l.ring.Recent(n) }

// Len returns the number of retained entries.
func (l *Log) Len() int { return l.ring.Len() }

// EventBuffer holds simulated analytics event records.
type EventBuffer struct {
	ring *Ring[domain.AnalyticsEvent]
}

// NewEventBuffer creates a buffer retaining at most limit events.
func NewEventBuffer(limit int) *EventBuffer {
	if limit <= 0 {
		limit = DefaultEventRetention
	}
	return &EventBuffer{ring: NewRing[domain.AnalyticsEvent](limit)}
}

// Append records an event.
func (b *EventBuffer) Append(e domain.AnalyticsEvent) { b.ring.Append(e) }

// Events returns retained events, oldest first.
func (b *EventBuffer) Events() []domain.AnalyticsEvent { return b.ring.Snapshot() }

// Recent returns up to n events, newest first.
func (b *EventBuffer) Recent(n int) []domain.AnalyticsEvent { return b.ring.Recent(n) }

// Len returns the number of retained events.
func (b *EventBuffer) Len() int { return b.ring.Len() }

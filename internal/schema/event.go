// Package schema defines the normalized security event consumed by the
// playbook engine. Events are produced by external detectors and ingested
// through the event source; the engine references them without copying.
package schema

import (
	"time"
)

// Event is a normalized security occurrence (alert, anomaly score,
// intel match, inventory change). Immutable once fetched.
type Event struct {
	ID        string         `json:"id" validate:"required,max=256"`
	EventType string         `json:"event_type" validate:"required,max=128"`
	Timestamp time.Time      `json:"timestamp"`
	Severity  string         `json:"severity,omitempty" validate:"omitempty,oneof=info low medium high critical"`
	Source    string         `json:"source,omitempty" validate:"max=256"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Severity levels recognized in events.
const (
	SeverityInfo     = "info"
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Tree returns the event as a document tree for dot-path resolution.
// Condition fields like "fields.confidence" or "event_type" resolve
// against this structure.
func (e *Event) Tree() map[string]any {
	return map[string]any{
		"id":         e.ID,
		"event_type": e.EventType,
		"severity":   e.Severity,
		"source":     e.Source,
		"fields":     e.Fields,
	}
}

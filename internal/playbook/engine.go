package playbook

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"orion-sentinel/internal/schema"
)

// Engine matches events against the playbook store and produces pending
// triggered actions. It performs no I/O and no side effects, only
// classification and template resolution.
type Engine struct {
	store  *Store
	logger *slog.Logger
}

// NewEngine creates an engine reading from the given store.
func NewEngine(store *Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger}
}

// Evaluate matches one event against all enabled playbooks in priority
// order. Every matching playbook fires, there is no first-match-wins
// short circuit. Actions are resolved and returned pending, with
// Executed false and Success unknown.
func (e *Engine) Evaluate(event *schema.Event) []*TriggeredAction {
	var triggered []*TriggeredAction

	for _, pb := range e.store.List(true) {
		if !e.matches(pb, event) {
			continue
		}

		e.logger.Debug("playbook matched",
			"playbook_id", pb.ID,
			"playbook_name", pb.Name,
			"event_id", event.ID,
			"actions", len(pb.Actions))

		for _, action := range pb.Actions {
			triggered = append(triggered, &TriggeredAction{
				ID:           uuid.New(),
				PlaybookID:   pb.ID,
				PlaybookName: pb.Name,
				Event:        event,
				Action:       ResolveAction(action, event),
				Timestamp:    time.Now().UTC(),
				DryRun:       pb.DryRun,
			})
		}
	}

	return triggered
}

// matches applies the event type filter and the playbook's conditions
// with short-circuit AND. An empty condition list matches on event type
// alone.
func (e *Engine) matches(pb *Playbook, event *schema.Event) bool {
	if pb.MatchEventType != MatchAllEventTypes && pb.MatchEventType != event.EventType {
		return false
	}

	for _, cond := range pb.Conditions {
		if !EvaluateCondition(cond, event) {
			return false
		}
	}
	return true
}

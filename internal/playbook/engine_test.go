package playbook

import (
	"testing"

	"orion-sentinel/internal/schema"
)

func newTestEngine(t *testing.T, doc string) *Engine {
	t.Helper()
	store := NewStore("unused")
	if _, err := store.LoadBytes([]byte(doc)); err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	return NewEngine(store, nil)
}

func TestEngine_EndToEndMatch(t *testing.T) {
	engine := newTestEngine(t, validPlaybooks)

	event := &schema.Event{
		ID:        "evt-1",
		EventType: "intel_match",
		Fields: map[string]any{
			"confidence": 0.95,
			"ioc_value":  "malicious.example.com",
		},
	}

	triggered := engine.Evaluate(event)
	if len(triggered) != 2 {
		t.Fatalf("Evaluate() produced %d actions, want 2", len(triggered))
	}

	first := triggered[0]
	if first.PlaybookID != "block-high-confidence" {
		t.Errorf("playbook_id = %s", first.PlaybookID)
	}
	if first.Action.Type != ActionBlockDomain {
		t.Errorf("first action type = %s, want block_domain", first.Action.Type)
	}
	if got := first.Action.Parameters["domain"]; got != "malicious.example.com" {
		t.Errorf("resolved domain = %v", got)
	}
	if !first.DryRun {
		t.Error("triggered action should carry the playbook dry_run flag")
	}
	if first.Executed || first.Success != nil {
		t.Error("pending action must have executed=false and unknown success")
	}

	if triggered[1].Action.Type != ActionSendNotification {
		t.Errorf("second action type = %s, want send_notification", triggered[1].Action.Type)
	}
}

func TestEngine_BelowThresholdNoMatch(t *testing.T) {
	engine := newTestEngine(t, validPlaybooks)

	event := &schema.Event{
		ID:        "evt-2",
		EventType: "intel_match",
		Fields:    map[string]any{"confidence": 0.5},
	}

	if triggered := engine.Evaluate(event); len(triggered) != 0 {
		t.Errorf("Evaluate() produced %d actions, want 0", len(triggered))
	}
}

func TestEngine_DisabledNeverFires(t *testing.T) {
	engine := newTestEngine(t, validPlaybooks)

	// log-everything matches "*" but is disabled.
	event := &schema.Event{ID: "evt-3", EventType: "heartbeat"}
	for _, ta := range engine.Evaluate(event) {
		if ta.PlaybookID == "log-everything" {
			t.Error("disabled playbook produced a triggered action")
		}
	}
}

func TestEngine_EventTypeFilter(t *testing.T) {
	doc := `
playbooks:
  - id: intel-only
    name: Intel Only
    enabled: true
    match_event_type: intel_match
    actions:
      - action_type: log_event
`
	engine := newTestEngine(t, doc)

	match := &schema.Event{ID: "e1", EventType: "intel_match"}
	if got := engine.Evaluate(match); len(got) != 1 {
		t.Errorf("matching type produced %d actions, want 1", len(got))
	}

	other := &schema.Event{ID: "e2", EventType: "anomaly"}
	if got := engine.Evaluate(other); len(got) != 0 {
		t.Errorf("other type produced %d actions, want 0", len(got))
	}
}

func TestEngine_MultiMatchPriorityOrder(t *testing.T) {
	doc := `
playbooks:
  - id: low-priority
    name: Low
    enabled: true
    match_event_type: "*"
    actions:
      - action_type: log_event
    priority: 10
  - id: high-priority
    name: High
    enabled: true
    match_event_type: "*"
    actions:
      - action_type: log_event
    priority: 90
`
	engine := newTestEngine(t, doc)

	triggered := engine.Evaluate(&schema.Event{ID: "e1", EventType: "anything"})
	if len(triggered) != 2 {
		t.Fatalf("Evaluate() produced %d actions, want 2", len(triggered))
	}
	if triggered[0].PlaybookID != "high-priority" || triggered[1].PlaybookID != "low-priority" {
		t.Errorf("dispatch order = [%s, %s], want priority order",
			triggered[0].PlaybookID, triggered[1].PlaybookID)
	}
}

func TestEngine_ShortCircuitConditions(t *testing.T) {
	doc := `
playbooks:
  - id: two-conditions
    name: Two Conditions
    enabled: true
    match_event_type: "*"
    conditions:
      - field: fields.a
        operator: "=="
        value: 1
      - field: fields.b
        operator: "=="
        value: 2
    actions:
      - action_type: log_event
`
	engine := newTestEngine(t, doc)

	both := &schema.Event{ID: "e1", EventType: "x", Fields: map[string]any{"a": 1, "b": 2}}
	if got := engine.Evaluate(both); len(got) != 1 {
		t.Errorf("both conditions true produced %d actions, want 1", len(got))
	}

	onlyFirst := &schema.Event{ID: "e2", EventType: "x", Fields: map[string]any{"a": 1, "b": 3}}
	if got := engine.Evaluate(onlyFirst); len(got) != 0 {
		t.Errorf("one false condition produced %d actions, want 0", len(got))
	}
}

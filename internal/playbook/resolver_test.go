package playbook

import (
	"testing"
)

func TestResolveAction(t *testing.T) {
	event := intelEvent()

	action := Action{
		Type: ActionBlockDomain,
		Parameters: map[string]any{
			"domain":  "{{fields.ioc_value}}",
			"comment": "blocked by {{id}} with confidence {{fields.confidence}}",
			"ttl":     3600,
		},
	}

	resolved := ResolveAction(action, event)

	if got := resolved.Parameters["domain"]; got != "malicious.example.com" {
		t.Errorf("domain = %v, want malicious.example.com", got)
	}
	if got := resolved.Parameters["comment"]; got != "blocked by evt-1 with confidence 0.95" {
		t.Errorf("comment = %v", got)
	}
	if got := resolved.Parameters["ttl"]; got != 3600 {
		t.Errorf("non-string parameter changed: %v", got)
	}
}

func TestResolveAction_UnresolvedTokenPassesThrough(t *testing.T) {
	event := intelEvent()

	action := Action{
		Type: ActionBlockDomain,
		Parameters: map[string]any{
			"domain": "{{fields.no_such_field}}",
		},
	}

	resolved := ResolveAction(action, event)

	// The literal token stays in place so a downstream failure is
	// visible in the audit record instead of blocking an empty domain.
	if got := resolved.Parameters["domain"]; got != "{{fields.no_such_field}}" {
		t.Errorf("unresolved token = %v, want literal pass-through", got)
	}
}

func TestResolveAction_DoesNotMutateOriginal(t *testing.T) {
	event := intelEvent()

	action := Action{
		Type:       ActionSendNotification,
		Parameters: map[string]any{"subject": "{{fields.ioc_value}}"},
	}

	ResolveAction(action, event)

	if action.Parameters["subject"] != "{{fields.ioc_value}}" {
		t.Error("source action parameters were mutated")
	}
}

func TestResolveAction_WhitespaceInToken(t *testing.T) {
	event := intelEvent()

	action := Action{
		Type:       ActionSendNotification,
		Parameters: map[string]any{"subject": "{{ fields.ioc_value }}"},
	}

	resolved := ResolveAction(action, event)
	if got := resolved.Parameters["subject"]; got != "malicious.example.com" {
		t.Errorf("subject = %v, want malicious.example.com", got)
	}
}

func TestResolveAction_NoParameters(t *testing.T) {
	event := intelEvent()

	action := Action{Type: ActionLogEvent}
	resolved := ResolveAction(action, event)

	if resolved.Parameters != nil {
		t.Errorf("expected nil parameters, got %v", resolved.Parameters)
	}
}

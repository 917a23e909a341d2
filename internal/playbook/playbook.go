// Package playbook implements declarative response playbooks: prioritized
// rules that match normalized security events and emit typed, parameterized
// actions for the dispatcher.
package playbook

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"orion-sentinel/internal/schema"
)

// Operator is a condition comparison token.
type Operator string

const (
	OpEQ          Operator = "=="
	OpNE          Operator = "!="
	OpGT          Operator = ">"
	OpGE          Operator = ">="
	OpLT          Operator = "<"
	OpLE          Operator = "<="
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
)

// IsValid checks if the operator is a recognized token.
func (o Operator) IsValid() bool {
	switch o {
	case OpEQ, OpNE, OpGT, OpGE, OpLT, OpLE, OpContains, OpNotContains, OpIn, OpNotIn:
		return true
	}
	return false
}

// ActionType identifies the kind of response an action performs.
type ActionType string

const (
	ActionBlockDomain      ActionType = "block_domain"
	ActionTagDevice        ActionType = "tag_device"
	ActionSendNotification ActionType = "send_notification"
	ActionSimulateOnly     ActionType = "simulate_only"
	ActionLogEvent         ActionType = "log_event"
)

// UnmarshalYAML accepts action type tokens case-insensitively, so
// documents written with BLOCK_DOMAIN style tokens load unchanged.
func (a *ActionType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	*a = ActionType(strings.ToLower(s))
	return nil
}

// IsValid checks if the action type is a recognized value.
func (a ActionType) IsValid() bool {
	switch a {
	case ActionBlockDomain, ActionTagDevice, ActionSendNotification, ActionSimulateOnly, ActionLogEvent:
		return true
	}
	return false
}

// Mutating reports whether the action type has an external side effect.
// Non-mutating types ignore dry-run flags.
func (a ActionType) Mutating() bool {
	switch a {
	case ActionSimulateOnly, ActionLogEvent:
		return false
	}
	return true
}

// Condition is a single field comparison against an event. Field is a
// dot-separated path into the event document tree, e.g. "fields.confidence".
type Condition struct {
	Field    string   `yaml:"field" json:"field" validate:"required,max=256"`
	Operator Operator `yaml:"operator" json:"operator" validate:"required,operator_token"`
	Value    any      `yaml:"value" json:"value"`
	Negate   bool     `yaml:"negate" json:"negate"`
}

// Action is a typed, parameterized operation a playbook may trigger.
// String parameter values may contain {{path}} tokens resolved against
// the triggering event.
type Action struct {
	Type        ActionType     `yaml:"action_type" json:"action_type" validate:"required,soar_action_type"`
	Parameters  map[string]any `yaml:"parameters" json:"parameters"`
	Description string         `yaml:"description" json:"description,omitempty" validate:"max=1024"`
}

// Playbook is a named, prioritized rule combining match criteria and
// resulting actions. Conditions are ANDed with short-circuit; an empty
// list matches on event type alone.
type Playbook struct {
	ID             string      `yaml:"id" json:"id" validate:"required,max=128"`
	Name           string      `yaml:"name" json:"name" validate:"required,max=256"`
	Description    string      `yaml:"description" json:"description,omitempty" validate:"max=1024"`
	Enabled        bool        `yaml:"enabled" json:"enabled"`
	MatchEventType string      `yaml:"match_event_type" json:"match_event_type" validate:"required,max=128"`
	Conditions     []Condition `yaml:"conditions" json:"conditions" validate:"dive"`
	Actions        []Action    `yaml:"actions" json:"actions" validate:"min=1,dive"`
	DryRun         bool        `yaml:"dry_run" json:"dry_run"`
	Priority       int         `yaml:"priority" json:"priority"`
}

// MatchAllEventTypes is the wildcard for MatchEventType.
const MatchAllEventTypes = "*"

// TriggeredAction records one action instance produced by matching one
// event against one playbook. Created by the engine with Executed false
// and Success unknown, mutated exactly once by the dispatcher, then
// treated as an append-only audit record.
type TriggeredAction struct {
	ID           uuid.UUID      `json:"id"`
	PlaybookID   string         `json:"playbook_id"`
	PlaybookName string         `json:"playbook_name"`
	Event        *schema.Event  `json:"event"`
	Action       Action         `json:"action"`
	Timestamp    time.Time      `json:"timestamp"`
	DryRun       bool           `json:"dry_run"`
	Executed     bool           `json:"executed"`
	Success      *bool          `json:"success,omitempty"`
	Error        string         `json:"error,omitempty"`
	Result       map[string]any `json:"result,omitempty"`
}

// Succeeded reports whether the action completed with a known successful
// outcome.
func (t *TriggeredAction) Succeeded() bool {
	return t.Success != nil && *t.Success
}

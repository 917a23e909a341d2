// Package dispatch executes triggered actions against capability
// collaborators, enforcing dry-run semantics and recording per-action
// outcomes. A collaborator failure is recorded on the specific triggered
// action and never aborts the rest of the batch.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"orion-sentinel/internal/notify"
	"orion-sentinel/internal/playbook"
)

// DomainBlocker adds domains to the blocklist enforcer.
type DomainBlocker interface {
	Block(ctx context.Context, domain, comment string) error
}

// DeviceTagger tags devices in the inventory store.
type DeviceTagger interface {
	Tag(ctx context.Context, deviceID, tag string) error
}

// Notifier delivers notifications. Fan-out across channels is the
// notifier's concern; the dispatcher sees a single outcome.
type Notifier interface {
	Send(ctx context.Context, n *notify.Notification) error
}

// Config holds dispatcher settings. GlobalDryRun is explicit state, not
// read from the environment.
type Config struct {
	GlobalDryRun  bool
	ActionTimeout time.Duration
}

// DefaultConfig returns default dispatcher settings.
func DefaultConfig() Config {
	return Config{
		GlobalDryRun:  false,
		ActionTimeout: 15 * time.Second,
	}
}

type handlerFunc func(ctx context.Context, ta *playbook.TriggeredAction) (map[string]any, error)

// Dispatcher routes each action type to its handler through a lookup
// table, so adding a type is a localized change.
type Dispatcher struct {
	config   Config
	blocker  DomainBlocker
	tagger   DeviceTagger
	notifier Notifier
	logger   *slog.Logger
	handlers map[playbook.ActionType]handlerFunc

	// Metrics
	executed  atomic.Uint64
	simulated atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher creates a dispatcher wired to its collaborators.
func NewDispatcher(cfg Config, blocker DomainBlocker, tagger DeviceTagger, notifier Notifier, logger *slog.Logger) *Dispatcher {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultConfig().ActionTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		config:   cfg,
		blocker:  blocker,
		tagger:   tagger,
		notifier: notifier,
		logger:   logger,
	}
	d.handlers = map[playbook.ActionType]handlerFunc{
		playbook.ActionBlockDomain:      d.handleBlockDomain,
		playbook.ActionTagDevice:        d.handleTagDevice,
		playbook.ActionSendNotification: d.handleSendNotification,
		playbook.ActionSimulateOnly:     d.handleSimulateOnly,
		playbook.ActionLogEvent:         d.handleLogEvent,
	}
	return d
}

// Execute runs or simulates one triggered action, mutating it exactly
// once with the outcome. Effective dry-run is globalDryRun OR the
// playbook's dry_run, except that simulate_only is always dry and
// log_event always runs.
func (d *Dispatcher) Execute(ctx context.Context, ta *playbook.TriggeredAction) *playbook.TriggeredAction {
	actionType := ta.Action.Type

	handler, ok := d.handlers[actionType]
	if !ok {
		d.failed.Add(1)
		ta.Executed = false
		ta.Success = boolPtr(false)
		ta.Error = fmt.Sprintf("no handler for action type: %s", actionType)
		return ta
	}

	dryRun := d.effectiveDryRun(ta)
	if dryRun && actionType.Mutating() {
		d.simulated.Add(1)
		ta.Executed = false
		ta.Success = boolPtr(true)
		ta.Result = map[string]any{"dry_run": true}
		d.logger.Info("dry-run: skipped action",
			"action_type", actionType,
			"playbook_id", ta.PlaybookID,
			"event_id", ta.Event.ID,
			"parameters", ta.Action.Parameters)
		return ta
	}

	execCtx, cancel := context.WithTimeout(ctx, d.config.ActionTimeout)
	defer cancel()

	result, err := handler(execCtx, ta)
	if actionType == playbook.ActionSimulateOnly {
		// Simulation is reported but never counts as executed.
		ta.Executed = false
	} else {
		ta.Executed = true
	}
	ta.Result = result

	if err != nil {
		d.failed.Add(1)
		ta.Success = boolPtr(false)
		ta.Error = err.Error()
		d.logger.Error("action failed",
			"action_type", actionType,
			"playbook_id", ta.PlaybookID,
			"event_id", ta.Event.ID,
			"error", err)
		return ta
	}

	d.executed.Add(1)
	ta.Success = boolPtr(true)
	d.logger.Info("action completed",
		"action_type", actionType,
		"playbook_id", ta.PlaybookID,
		"event_id", ta.Event.ID,
		"executed", ta.Executed)
	return ta
}

func (d *Dispatcher) effectiveDryRun(ta *playbook.TriggeredAction) bool {
	switch ta.Action.Type {
	case playbook.ActionSimulateOnly:
		return true
	case playbook.ActionLogEvent:
		return false
	}
	return d.config.GlobalDryRun || ta.DryRun
}

func (d *Dispatcher) handleBlockDomain(ctx context.Context, ta *playbook.TriggeredAction) (map[string]any, error) {
	if d.blocker == nil {
		return nil, fmt.Errorf("no domain blocker configured")
	}

	domain := stringParam(ta.Action.Parameters, "domain")
	if domain == "" {
		return nil, fmt.Errorf("block_domain requires a domain parameter")
	}
	comment := stringParam(ta.Action.Parameters, "reason")
	if comment == "" {
		comment = fmt.Sprintf("soar playbook %s (event %s)", ta.PlaybookID, ta.Event.ID)
	}

	if err := d.blocker.Block(ctx, domain, comment); err != nil {
		return nil, err
	}
	return map[string]any{"domain": domain}, nil
}

func (d *Dispatcher) handleTagDevice(ctx context.Context, ta *playbook.TriggeredAction) (map[string]any, error) {
	if d.tagger == nil {
		return nil, fmt.Errorf("no device tagger configured")
	}

	deviceID := stringParam(ta.Action.Parameters, "device_id")
	tag := stringParam(ta.Action.Parameters, "tag")
	if deviceID == "" || tag == "" {
		return nil, fmt.Errorf("tag_device requires device_id and tag parameters")
	}

	if err := d.tagger.Tag(ctx, deviceID, tag); err != nil {
		return nil, err
	}
	return map[string]any{"device_id": deviceID, "tag": tag}, nil
}

func (d *Dispatcher) handleSendNotification(ctx context.Context, ta *playbook.TriggeredAction) (map[string]any, error) {
	if d.notifier == nil {
		return nil, fmt.Errorf("no notifier configured")
	}

	subject := stringParam(ta.Action.Parameters, "subject")
	if subject == "" {
		subject = fmt.Sprintf("Playbook triggered: %s", ta.PlaybookName)
	}
	severity := stringParam(ta.Action.Parameters, "severity")
	if severity == "" {
		severity = ta.Event.Severity
	}

	n := &notify.Notification{
		Subject:  subject,
		Message:  stringParam(ta.Action.Parameters, "message"),
		Severity: severity,
		Tags:     []string{"soar", ta.PlaybookID},
	}

	if err := d.notifier.Send(ctx, n); err != nil {
		return nil, err
	}
	return map[string]any{"subject": subject}, nil
}

func (d *Dispatcher) handleSimulateOnly(_ context.Context, ta *playbook.TriggeredAction) (map[string]any, error) {
	d.logger.Info("simulate only",
		"playbook_id", ta.PlaybookID,
		"event_id", ta.Event.ID,
		"parameters", ta.Action.Parameters)
	return map[string]any{"simulated": true}, nil
}

func (d *Dispatcher) handleLogEvent(_ context.Context, ta *playbook.TriggeredAction) (map[string]any, error) {
	d.logger.Info("playbook log event",
		"playbook_id", ta.PlaybookID,
		"playbook_name", ta.PlaybookName,
		"event_id", ta.Event.ID,
		"event_type", ta.Event.EventType,
		"severity", ta.Event.Severity,
		"parameters", ta.Action.Parameters)
	return map[string]any{"logged": true}, nil
}

// Metrics returns dispatcher counters.
func (d *Dispatcher) Metrics() Metrics {
	return Metrics{
		Executed:  d.executed.Load(),
		Simulated: d.simulated.Load(),
		Failed:    d.failed.Load(),
	}
}

// Metrics holds dispatcher counters.
type Metrics struct {
	Executed  uint64 `json:"executed"`
	Simulated uint64 `json:"simulated"`
	Failed    uint64 `json:"failed"`
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if s, ok := params[key].(string); ok {
		return s
	}
	return ""
}

func boolPtr(b bool) *bool {
	return &b
}

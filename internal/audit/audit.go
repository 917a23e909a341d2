// Package audit records triggered actions so every dry-run and live
// execution can be reconstructed later. Sinks are best-effort: a sink
// failure is logged and never fails the cycle.
package audit

import (
	"context"
	"log/slog"

	"orion-sentinel/internal/logging"
	"orion-sentinel/internal/playbook"
)

// Sink records triggered actions.
type Sink interface {
	Record(ctx context.Context, ta *playbook.TriggeredAction) error
}

// LogSink writes triggered actions to the structured log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Record logs the triggered action.
func (s *LogSink) Record(_ context.Context, ta *playbook.TriggeredAction) error {
	s.logger.Info("triggered action",
		"action_id", ta.ID,
		"playbook_id", ta.PlaybookID,
		"playbook_name", ta.PlaybookName,
		"event_id", ta.Event.ID,
		"action_type", ta.Action.Type,
		"dry_run", ta.DryRun,
		"executed", ta.Executed,
		"success", ta.Succeeded(),
		"error", ta.Error,
		"parameters", logging.MaskParameters(ta.Action.Parameters))
	return nil
}

// MultiSink fans records out to several sinks. Each sink failure is
// logged; Record itself never fails.
type MultiSink struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewMultiSink creates a fan-out sink.
func NewMultiSink(logger *slog.Logger, sinks ...Sink) *MultiSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiSink{sinks: sinks, logger: logger}
}

// Add registers another sink.
func (m *MultiSink) Add(s Sink) {
	m.sinks = append(m.sinks, s)
}

// Record delivers the triggered action to every sink.
func (m *MultiSink) Record(ctx context.Context, ta *playbook.TriggeredAction) error {
	for _, s := range m.sinks {
		if err := s.Record(ctx, ta); err != nil {
			m.logger.Warn("audit sink failed",
				"action_id", ta.ID,
				"error", err)
		}
	}
	return nil
}

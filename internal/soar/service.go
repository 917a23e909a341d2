// Package soar drives the poll loop: fetch events, filter already
// processed IDs, evaluate playbooks, dispatch actions, and record the
// results. One service instance runs one sequential loop; evaluation
// and dispatch within a cycle stay ordered by playbook priority.
package soar

import (
	"context"
	"log/slog"
	"time"

	"orion-sentinel/internal/audit"
	"orion-sentinel/internal/dedup"
	"orion-sentinel/internal/dispatch"
	"orion-sentinel/internal/eventsource"
	"orion-sentinel/internal/playbook"
	"orion-sentinel/internal/schema"
)

// Config holds scheduler settings.
type Config struct {
	PollInterval time.Duration
	Lookback     time.Duration
}

// DefaultConfig returns default scheduler settings.
func DefaultConfig() Config {
	return Config{
		PollInterval: 30 * time.Second,
		Lookback:     5 * time.Minute,
	}
}

// Service orchestrates the engine, dispatcher, dedup window, event
// source, and audit sink.
type Service struct {
	config     Config
	source     eventsource.Source
	engine     *playbook.Engine
	dispatcher *dispatch.Dispatcher
	window     dedup.Window
	sink       audit.Sink
	logger     *slog.Logger

	// lastFetch is the start of the next fetch window. Overlap with
	// the lookback is expected; the dedup window absorbs repeats.
	lastFetch time.Time
}

// NewService creates a service. The audit sink may be nil, in which
// case triggered actions are only logged by the dispatcher.
func NewService(cfg Config, source eventsource.Source, engine *playbook.Engine, dispatcher *dispatch.Dispatcher, window dedup.Window, sink audit.Sink, logger *slog.Logger) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultConfig().Lookback
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config:     cfg,
		source:     source,
		engine:     engine,
		dispatcher: dispatcher,
		window:     window,
		sink:       sink,
		logger:     logger,
	}
}

// RunOnce executes one cycle and returns the number of actions that
// completed successfully. A source failure yields zero events and a nil
// error count change; it is logged and retried next interval. A single
// event's or action's failure never stops the cycle.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	end := time.Now().UTC()
	start := end.Add(-s.config.Lookback)
	if !s.lastFetch.IsZero() && s.lastFetch.Before(start) {
		start = s.lastFetch
	}

	events, err := s.source.Fetch(ctx, start, end)
	if err != nil {
		s.logger.Warn("event fetch failed, retrying next interval", "error", err)
		return 0, nil
	}
	s.lastFetch = end

	succeeded := 0
	for _, event := range events {
		// Interruptible between events, not mid-action.
		select {
		case <-ctx.Done():
			s.logger.Info("cycle interrupted", "processed_until", event.ID)
			return succeeded, ctx.Err()
		default:
		}

		seen, err := s.window.Seen(ctx, event.ID)
		if err != nil {
			s.logger.Warn("dedup lookup failed, skipping event",
				"event_id", event.ID,
				"error", err)
			continue
		}
		if seen {
			continue
		}

		succeeded += s.processEvent(ctx, event)

		if err := s.window.Add(ctx, event.ID); err != nil {
			s.logger.Warn("dedup record failed",
				"event_id", event.ID,
				"error", err)
		}
	}

	s.logger.Debug("cycle complete",
		"events", len(events),
		"actions_succeeded", succeeded)
	return succeeded, nil
}

func (s *Service) processEvent(ctx context.Context, event *schema.Event) int {
	succeeded := 0

	for _, ta := range s.engine.Evaluate(event) {
		done := s.dispatcher.Execute(ctx, ta)

		if s.sink != nil {
			if err := s.sink.Record(ctx, done); err != nil {
				s.logger.Warn("audit record failed",
					"action_id", done.ID,
					"error", err)
			}
		}

		if done.Succeeded() {
			succeeded++
		}
	}
	return succeeded
}

// RunLoop runs cycles at the configured interval until the context is
// canceled.
func (s *Service) RunLoop(ctx context.Context) {
	s.logger.Info("soar loop started",
		"poll_interval", s.config.PollInterval,
		"lookback", s.config.Lookback)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Info("soar loop stopping", "reason", err)
			return
		}

		select {
		case <-ctx.Done():
			s.logger.Info("soar loop stopped")
			return
		case <-ticker.C:
		}
	}
}

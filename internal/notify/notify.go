// Package notify delivers playbook notifications through one or more
// channels. Delivery fans out sequentially; the caller sees a single
// boolean outcome that succeeds if any channel delivered.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Notification is a message produced by a send_notification action.
type Notification struct {
	Subject  string   `json:"subject"`
	Message  string   `json:"message"`
	Severity string   `json:"severity,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Channel delivers notifications to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Dispatcher fans a notification out to all registered channels.
type Dispatcher struct {
	channels []Channel
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher with the given channels.
func NewDispatcher(logger *slog.Logger, channels ...Channel) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{channels: channels, logger: logger}
}

// Register adds a channel.
func (d *Dispatcher) Register(ch Channel) {
	d.channels = append(d.channels, ch)
}

// Channels returns the names of registered channels.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}

// Send delivers the notification to every channel. It returns nil if at
// least one channel delivered, and an aggregate error only when all
// channels failed.
func (d *Dispatcher) Send(ctx context.Context, n *Notification) error {
	if len(d.channels) == 0 {
		return fmt.Errorf("no notification channels configured")
	}

	var failures []string
	delivered := 0

	for _, ch := range d.channels {
		if err := ch.Send(ctx, n); err != nil {
			d.logger.Warn("notification delivery failed",
				"channel", ch.Name(),
				"subject", n.Subject,
				"error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", ch.Name(), err))
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return fmt.Errorf("all channels failed: %s", strings.Join(failures, "; "))
	}
	return nil
}

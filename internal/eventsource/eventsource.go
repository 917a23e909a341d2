// Package eventsource fetches normalized events from the event log
// store. The engine treats the store as an external collaborator; a
// fetch failure yields zero events and is retried on the next cycle.
package eventsource

import (
	"context"
	"errors"
	"time"

	"orion-sentinel/internal/schema"
)

// ErrUnavailable indicates the event store could not be reached. The
// scheduler treats it as transient.
var ErrUnavailable = errors.New("event source unavailable")

// Source fetches events for a time window.
type Source interface {
	Fetch(ctx context.Context, start, end time.Time) ([]*schema.Event, error)
}

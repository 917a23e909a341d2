package eventsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"orion-sentinel/internal/schema"
)

// LokiConfig holds settings for the Loki-style event store client.
type LokiConfig struct {
	URL     string        `yaml:"url"`
	Query   string        `yaml:"query"`
	Limit   int           `yaml:"limit"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultLokiConfig returns default event source settings.
func DefaultLokiConfig() LokiConfig {
	return LokiConfig{
		URL:     "http://localhost:3100",
		Query:   `{stream="events"}`,
		Limit:   1000,
		Timeout: 10 * time.Second,
	}
}

// LokiSource fetches events from a Loki-compatible query_range API.
// Each log line is expected to be one JSON-encoded event; malformed
// lines are skipped with a warning rather than failing the fetch.
type LokiSource struct {
	config    LokiConfig
	client    *http.Client
	validator *schema.Validator
	logger    *slog.Logger
}

// NewLokiSource creates a Loki event source.
func NewLokiSource(cfg LokiConfig, validator *schema.Validator, logger *slog.Logger) *LokiSource {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLokiConfig().Limit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLokiConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LokiSource{
		config:    cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		validator: validator,
		logger:    logger,
	}
}

// queryRangeResponse is the subset of the query_range payload we read.
type queryRangeResponse struct {
	Status string `json:"status"`
	Data   struct {
		Result []struct {
			Values [][2]string `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// Fetch queries the store for events in [start, end). Order is the
// order returned by the store, not re-sorted.
func (s *LokiSource) Fetch(ctx context.Context, start, end time.Time) ([]*schema.Event, error) {
	params := url.Values{}
	params.Set("query", s.config.Query)
	params.Set("start", strconv.FormatInt(start.UnixNano(), 10))
	params.Set("end", strconv.FormatInt(end.UnixNano(), 10))
	params.Set("limit", strconv.Itoa(s.config.Limit))
	params.Set("direction", "forward")

	endpoint := fmt.Sprintf("%s/loki/api/v1/query_range?%s",
		strings.TrimRight(s.config.URL, "/"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: query_range returned %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var payload queryRangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
	}

	var events []*schema.Event
	for _, stream := range payload.Data.Result {
		for _, value := range stream.Values {
			line := value[1]

			var event schema.Event
			if err := json.Unmarshal([]byte(line), &event); err != nil {
				s.logger.Warn("skipping malformed event line", "error", err)
				continue
			}

			if s.validator != nil {
				if err := s.validator.Validate(&event); err != nil {
					s.logger.Warn("skipping invalid event",
						"event_id", event.ID,
						"error", err)
					continue
				}
			}

			events = append(events, &event)
		}
	}

	s.logger.Debug("events fetched",
		"count", len(events),
		"start", start,
		"end", end)
	return events, nil
}

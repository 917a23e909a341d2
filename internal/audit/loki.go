package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"orion-sentinel/internal/playbook"
)

// LokiSink pushes triggered action records back into the event log
// store as a dedicated stream, alongside the events that caused them.
type LokiSink struct {
	url    string
	stream map[string]string
	client *http.Client
}

// NewLokiSink creates a sink pushing to a Loki-compatible push API.
func NewLokiSink(baseURL string) *LokiSink {
	return &LokiSink{
		url:    strings.TrimRight(baseURL, "/") + "/loki/api/v1/push",
		stream: map[string]string{"stream": "soar_actions"},
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Record pushes one triggered action as a single log line.
func (s *LokiSink) Record(ctx context.Context, ta *playbook.TriggeredAction) error {
	line, err := json.Marshal(ta)
	if err != nil {
		return fmt.Errorf("failed to marshal triggered action: %w", err)
	}

	payload := map[string]any{
		"streams": []map[string]any{
			{
				"stream": s.stream,
				"values": [][2]string{
					{strconv.FormatInt(time.Now().UnixNano(), 10), string(line)},
				},
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("push returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

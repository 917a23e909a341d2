// Package inventory provides the device inventory client used by
// tag_device actions.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client tags devices in the inventory store over its HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates an inventory client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Tag attaches a tag to a device.
func (c *Client) Tag(ctx context.Context, deviceID, tag string) error {
	if deviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if tag == "" {
		return fmt.Errorf("tag is required")
	}

	payload, err := json.Marshal(map[string]string{"tag": tag})
	if err != nil {
		return fmt.Errorf("failed to marshal tag request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/devices/%s/tags", c.baseURL, deviceID)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("inventory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("inventory returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Package blocklist provides the domain blocklist enforcer client used
// by block_domain actions. The enforcer speaks a Pi-hole style admin API.
package blocklist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client adds domains to a Pi-hole style blocklist.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a blocklist client. baseURL points at the admin API
// root, e.g. "http://pihole.lan".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Block adds a domain to the blacklist with an audit comment.
func (c *Client) Block(ctx context.Context, domain, comment string) error {
	if domain == "" {
		return fmt.Errorf("domain is required")
	}

	params := url.Values{}
	params.Set("list", "black")
	params.Set("add", domain)
	params.Set("comment", comment)
	params.Set("auth", c.apiKey)

	endpoint := fmt.Sprintf("%s/admin/api.php?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("blocklist request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("blocklist returned %d: %s", resp.StatusCode, string(body))
	}

	// The admin API reports failures in the body with a 200 status.
	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode blocklist response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("blocklist rejected %s: %s", domain, result.Message)
	}

	return nil
}

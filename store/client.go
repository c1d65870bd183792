package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/formagent/formagent/profile"
)

// maxClientBody caps profile responses read from the store (1 MiB).
const maxClientBody int64 = 1 << 20

// Client talks to a remote store's HTTP surface. All failures (network,
// decode, non-2xx) surface as errors; the cache layer turns them into its
// fallback chain.
type Client struct {
	base   string
	client *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a Client for the store at baseURL. Default timeout: 10s.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetProfile fetches the full profile from GET /data.
func (c *Client) GetProfile(ctx context.Context) (*profile.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/data", nil)
	if err != nil {
		return nil, fmt.Errorf("store client: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store client: get /data: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxClientBody))
	if err != nil {
		return nil, fmt.Errorf("store client: read /data: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("store client: get /data: status %d: %s", resp.StatusCode, body)
	}

	var p profile.Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("store client: decode profile: %w", err)
	}
	return &p, nil
}

// PutProfile replaces the stored profile via POST /data.
func (c *Client) PutProfile(ctx context.Context, p *profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("store client: encode profile: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/data", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("store client: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("store client: post /data: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxClientBody))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("store client: post /data: status %d", resp.StatusCode)
	}
	return nil
}

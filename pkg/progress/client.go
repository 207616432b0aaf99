package progress

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

// Path is where the status endpoint is served
const Path = "/api/progress"

// NormalizeURL makes sure base points at the status endpoint
func NormalizeURL(base string) string {
	u := strings.TrimRight(strings.TrimSpace(base), "/")
	if u == "" {
		return ""
	}
	if !strings.HasSuffix(u, Path) {
		u += Path
	}
	return u
}

// Client reads and writes the status record over HTTP
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// PostResponse is the body returned by POST /api/progress
type PostResponse struct {
	Success bool   `json:"success"`
	State   Record `json:"state"`
	Error   string `json:"error,omitempty"`
}

// NewClient creates a client for the dashboard at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   NormalizeURL(baseURL),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the full status URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Get fetches the current record
func (c *Client) Get(ctx context.Context) (Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return Record{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("get status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Record{}, fmt.Errorf("get status: unexpected status %d", resp.StatusCode)
	}

	var r Record
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Record{}, fmt.Errorf("get status: decode: %w", err)
	}
	return r, nil
}

// Post replaces the current record and returns what the server stored
func (c *Client) Post(ctx context.Context, u Update) (Record, error) {
	body, err := json.Marshal(u)
	if err != nil {
		return Record{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Record{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("post status: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Record{}, fmt.Errorf("post status: read: %w", err)
	}

	var out PostResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return Record{}, fmt.Errorf("post status: status %d: decode: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return Record{}, fmt.Errorf("post status: status %d: %s", resp.StatusCode, out.Error)
	}
	return out.State, nil
}

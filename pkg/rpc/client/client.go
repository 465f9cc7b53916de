package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/inertialabsxyz/movement/pkg/rpc/server"
)

// HealthStatus represents the health status of a node
type HealthStatus int32

const (
	// HealthStatus_UNKNOWN represents an unknown health status
	HealthStatus_UNKNOWN HealthStatus = 0
	// HealthStatus_PASS represents a healthy node
	HealthStatus_PASS HealthStatus = 1
	// HealthStatus_FAIL represents a failed node
	HealthStatus_FAIL HealthStatus = 3
)

func (h HealthStatus) String() string {
	switch h {
	case HealthStatus_PASS:
		return "PASS"
	case HealthStatus_FAIL:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Client is the client of the node REST surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A nil client is ignored.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient creates a new RPC client
func NewClient(baseURL string, opts ...Option) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetHealth calls the /health/live HTTP endpoint and returns the HealthStatus
func (c *Client) GetHealth(ctx context.Context) (HealthStatus, error) {
	status, _, err := c.getText(ctx, "/health/live")
	if err != nil {
		return HealthStatus_UNKNOWN, fmt.Errorf("failed to get health: %w", err)
	}
	if status == http.StatusOK {
		return HealthStatus_PASS, nil
	}
	return HealthStatus_FAIL, nil
}

// IsReady calls the /health/ready HTTP endpoint. A node that is not ready reports why.
func (c *Client) IsReady(ctx context.Context) (bool, string, error) {
	status, body, err := c.getText(ctx, "/health/ready")
	if err != nil {
		return false, "", fmt.Errorf("failed to get readiness: %w", err)
	}
	return status == http.StatusOK, body, nil
}

// GetSync returns the execution height and state root of the node.
func (c *Client) GetSync(ctx context.Context) (*server.SyncResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/sync", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request to %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("node returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sync server.SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&sync); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &sync, nil
}

func (c *Client) getText(ctx context.Context, path string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, strings.TrimSpace(string(body)), nil
}

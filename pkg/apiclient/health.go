package apiclient

import (
	"context"
	"time"
)

// HealthResponse is the envelope of the health endpoints.
type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Healthy reports whether the server said so.
func (h *HealthResponse) Healthy() bool {
	return h.Status == "healthy"
}

// Health calls the liveness probe.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var h HealthResponse
	if err := c.get(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Ready calls the readiness probe, which reports the realm and its users
// count.
func (c *Client) Ready(ctx context.Context) (*HealthResponse, error) {
	var h HealthResponse
	if err := c.get(ctx, "/health/ready", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Package jobapi is the HTTP client for the remote enhancement job API.
//
// The orchestrator consumes exactly three operations: Submit, Status, and
// HealthCheck. Failures surface as *domain.APIError when the server
// responded, or as the raw transport error when it did not; the classifier
// downstream tells the two apart.
package jobapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lekhoa/enhanceq/internal/core/domain"
)

// Client talks to the enhancement API over HTTP.
type Client struct {
	endpoint      string
	httpClient    *http.Client
	healthTimeout time.Duration
}

// NewClient creates a client for the given base endpoint.
func NewClient(endpoint string, timeout, healthTimeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if healthTimeout == 0 {
		healthTimeout = 5 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		healthTimeout: healthTimeout,
	}
}

// Submit starts a new enhancement job.
func (c *Client) Submit(ctx context.Context, req domain.Request) (*domain.JobHandle, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.endpoint+"/v1/jobs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp)
	}

	var handle domain.JobHandle
	if err := json.NewDecoder(resp.Body).Decode(&handle); err != nil {
		return nil, fmt.Errorf("parse submit response: %w", err)
	}
	return &handle, nil
}

// Status fetches the current snapshot for a job.
func (c *Client) Status(ctx context.Context, jobID string) (*domain.JobSnapshot, error) {
	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.endpoint+"/v1/jobs/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp)
	}

	var snap domain.JobSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("parse status response: %w", err)
	}
	return &snap, nil
}

// HealthCheck probes the service with a short timeout. Used only to validate
// breaker state, never for primary submission.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.endpoint+"/healthz", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// apiError converts a non-2xx response into a typed error. The body is
// best-effort: an unparseable body still yields the status code.
func apiError(resp *http.Response) error {
	apiErr := &domain.APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}

	var payload domain.ErrorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Message = string(body)
		return apiErr
	}

	apiErr.DomainCode = payload.DomainCode
	apiErr.Message = payload.Message
	return apiErr
}

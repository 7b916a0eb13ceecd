// Package backend implements the BackendClient port over net/http.
package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ericfisherdev/concourse-proxy/internal/domain/model"
	"github.com/ericfisherdev/concourse-proxy/internal/domain/port/driven"
	"github.com/ericfisherdev/concourse-proxy/internal/metrics"
)

// Compile-time interface satisfaction check.
var _ driven.BackendClient = (*Client)(nil)

// Client issues GET requests to CI backends and reads the full body.
type Client struct {
	http *http.Client
}

// NewClient creates a Client. A zero timeout leaves requests unbounded.
func NewClient(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// NewClientWithHTTPClient creates a Client around an existing http.Client.
// This constructor is intended for testing.
func NewClientWithHTTPClient(httpClient *http.Client) *Client {
	return &Client{http: httpClient}
}

// Get sends a GET with the given headers. Any HTTP status is returned as a
// response; only transport failures are errors.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstream(err, time.Since(start))
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.RecordUpstream(err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read body of GET %s: %w", url, err)
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

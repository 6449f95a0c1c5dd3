// Package upstream implements the single request-forwarding helper every
// proxy route goes through: it issues JSON requests against the configured
// backend origin, applies the client deadline, and decodes the upstream
// envelope for relay.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/tradegate/domain"
	"github.com/you/tradegate/internal/metrics"
)

// Client implements domain.UpstreamForwarder against a fixed base URL.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a forwarder for the given backend origin. The timeout is
// the per-request deadline; a hung upstream surfaces as
// domain.ErrUpstreamUnavailable instead of stalling the caller.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Post forwards a JSON body to the upstream path. A non-2xx answer is not an
// error; the result carries the status and payload for verbatim relay.
func (c *Client) Post(ctx context.Context, path string, body map[string]any) (*domain.ForwardResult, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path)
}

// Get forwards a read request, relaying the bearer token when present.
func (c *Client) Get(ctx context.Context, path, bearer string) (*domain.ForwardResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	return c.do(req, path)
}

func (c *Client) do(req *http.Request, path string) (*domain.ForwardResult, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(path, "unreachable").Inc()
		c.log.Warn().Err(err).Str("path", path).Msg("upstream unreachable")
		return nil, fmt.Errorf("%w: %s", domain.ErrUpstreamUnavailable, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(path, "unreachable").Inc()
		return nil, fmt.Errorf("%w: reading response", domain.ErrUpstreamUnavailable)
	}

	result := &domain.ForwardResult{
		StatusCode: resp.StatusCode,
		Body:       raw,
	}

	// The upstream envelope is {success, message, data}. Payloads that do
	// not follow it are still relayed; Success then mirrors the status code.
	var envelope struct {
		Success *bool           `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &envelope) == nil {
		if envelope.Success != nil {
			result.Success = *envelope.Success
		} else {
			result.Success = resp.StatusCode < 400
		}
		result.Message = envelope.Message
		result.Data = envelope.Data
	} else {
		result.Success = resp.StatusCode < 400
	}

	outcome := "relayed"
	if result.Rejected() {
		outcome = "rejected"
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(path, outcome).Inc()

	return result, nil
}

// Unavailable reports whether the forwarder error is the unreachable class
// (dial failure, deadline, context cancellation all map here).
func Unavailable(err error) bool {
	return errors.Is(err, domain.ErrUpstreamUnavailable)
}

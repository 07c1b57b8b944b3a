// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jeranaias/aila/internal/logging"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// DefaultBaseURL is where the service listens in a local deployment.
const DefaultBaseURL = "http://localhost:8080"

// MaxResponseSize limits non-streaming response bodies (10MB).
const MaxResponseSize = 10 * 1024 * 1024

// Config holds configuration options for the service client.
type Config struct {
	// BaseURL is the service root (default: http://localhost:8080)
	BaseURL string

	// Timeout for non-streaming requests (default: 30s). Chat streams are
	// never cut off by a timeout; cancel their context instead.
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing calls; <= 0 disables throttling.
	RequestsPerSecond float64

	// Burst is the number of calls allowed back to back (default: 5)
	Burst int

	// MaxResponseBytes caps decoded bodies (default: MaxResponseSize)
	MaxResponseBytes int64

	// Jar carries the session cookie. Nil means a fresh in-memory jar.
	Jar http.CookieJar

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper

	// Logger receives request diagnostics. Nil uses the shared logger.
	Logger logrus.FieldLogger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          DefaultBaseURL,
		Timeout:          30 * time.Second,
		Burst:            5,
		MaxResponseBytes: MaxResponseSize,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the AILA service.
//
// The Client is thread-safe for concurrent use.
//
// Example:
//
//	client := api.NewClient(nil)
//	id, err := client.Login(ctx, "ana", "secret")
//	convs, err := client.ListConversations(ctx, id.Username)
type Client struct {
	config  *Config
	http    *http.Client
	stream  *http.Client
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// NewClient creates a client. A nil config uses DefaultConfig.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config

	// Fill in defaults for any zero values
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = MaxResponseSize
	}
	if cfg.Jar == nil {
		cfg.Jar = NewMemoryJar()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		config: &cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Jar:       cfg.Jar,
			Transport: cfg.Transport,
		},
		stream: &http.Client{
			Jar:       cfg.Jar,
			Transport: cfg.Transport,
		},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		log:     logging.Or(cfg.Logger),
	}
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Jar returns the cookie jar shared by all requests.
func (c *Client) Jar() http.CookieJar {
	return c.config.Jar
}

// newRequest builds a JSON request for path.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ClientError{Type: ErrTypeTimeout, Message: "rate limit wait aborted", Cause: err}
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
		rd = bytes.NewReader(data)
	}

	u := c.config.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do performs a request and decodes a 2xx JSON answer into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).WithField("path", path).Debug("api: request failed")
		return transportError(err)
	}
	defer drainAndClose(resp.Body)

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("api: request done")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}

	// SECURITY: Limit response size to prevent memory exhaustion
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes+1))
	if err != nil {
		return transportError(err)
	}
	if int64(len(data)) > c.config.MaxResponseBytes {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "response too large"}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// Helper to drain response body
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, 64*1024))
	r.Close()
}

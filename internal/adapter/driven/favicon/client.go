// Package favicon resolves site logos for stored credentials through a
// logo service that serves images at {base}/{host}.
package favicon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// DefaultBaseURL is the logo service used when none is configured.
const DefaultBaseURL = "https://logo.clearbit.com"

// Compile-time interface satisfaction check.
var _ driven.IconLookup = (*Client)(nil)

// Client probes the logo service for a per-host image.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates an icon client over an in-memory httpcache transport.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTPClient(&http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Timeout:   timeout,
	}, baseURL)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Lookup returns the logo URL for originURL's host, or "" when the service
// has no logo for it.
func (c *Client) Lookup(ctx context.Context, originURL string) (string, error) {
	host, err := Host(originURL)
	if err != nil {
		return "", err
	}

	iconURL := c.baseURL + "/" + host
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return "", fmt.Errorf("build icon request for %s: %w", host, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("icon lookup for %s: %w", host, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		return iconURL, nil
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	default:
		return "", fmt.Errorf("icon lookup for %s: status %d", host, resp.StatusCode)
	}
}

// Host extracts the lowercase hostname from an origin URL. Android-style
// realms and bare hostnames without a scheme are rejected.
func Host(originURL string) (string, error) {
	u, err := url.Parse(originURL)
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", originURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("origin %q is not a web URL", originURL)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("origin %q has no host", originURL)
	}
	return host, nil
}

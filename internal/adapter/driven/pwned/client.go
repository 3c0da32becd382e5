// Package pwned implements the BreachOracle port against the Pwned Passwords
// range API using k-anonymity: only the first five hex characters of the
// password's SHA-1 hash ever leave the process.
package pwned

import (
	"bufio"
	"context"
	"crypto/sha1" //nolint:gosec // SHA-1 is what the range API is keyed on
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// DefaultBaseURL is the public Pwned Passwords API.
const DefaultBaseURL = "https://api.pwnedpasswords.com"

const (
	prefixLen = 5
	suffixLen = 35
	userAgent = "credvault-breach-check"
)

// Compile-time interface satisfaction check.
var _ driven.BreachOracle = (*Client)(nil)

// Client queries the range endpoint for hash prefixes.
type Client struct {
	httpClient *http.Client
	baseURL    string
	padding    bool
	logger     *slog.Logger
}

// NewClient creates a breach client with the following transport stack:
//  1. httpcache (range responses are cacheable, so repeated prefixes skip the network)
//  2. net/http default transport, bounded by timeout
//
// With padding enabled the API pads every response with fake zero-count
// entries so response size does not leak the prefix's popularity.
func NewClient(baseURL string, timeout time.Duration, padding bool, logger *slog.Logger) *Client {
	httpClient := &http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Timeout:   timeout,
	}
	return NewClientWithHTTPClient(httpClient, baseURL, padding, logger)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, padding bool, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		padding:    padding,
		logger:     logger,
	}
}

// CheckBreached reports whether password appears in the breach corpus.
// The occurrence count is logged at debug level only.
func (c *Client) CheckBreached(ctx context.Context, password string) (model.BreachStatus, error) {
	prefix, suffix := HashRange(password)

	count, err := c.lookup(ctx, prefix, suffix)
	if err != nil {
		return model.BreachStatusUnknown, err
	}

	if count > 0 {
		c.logger.Debug("password found in breach corpus", "prefix", prefix, "occurrences", count)
		return model.BreachStatusBreached, nil
	}
	return model.BreachStatusClean, nil
}

// HashRange returns the uppercase SHA-1 hex digest of password split into
// the 5-character prefix that is sent and the 35-character suffix that is not.
func HashRange(password string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(password)) //nolint:gosec // see import
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	return digest[:prefixLen], digest[prefixLen:]
}

// lookup fetches the range for prefix and returns the occurrence count of
// suffix, or 0 when absent.
func (c *Client) lookup(ctx context.Context, prefix, suffix string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/range/"+prefix, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build range request: %v", driven.ErrOracleUnavailable, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.padding {
		req.Header.Set("Add-Padding", "true")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: range %s: %v", driven.ErrOracleUnavailable, prefix, err)
	}
	// The cache only stores a response once its body has been read to EOF.
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: range %s: status %d", driven.ErrOracleUnavailable, prefix, resp.StatusCode)
	}

	c.logger.Debug("breach range fetched",
		"prefix", prefix,
		"from_cache", resp.Header.Get(httpcache.XFromCache) == "1",
	)

	return matchSuffix(resp.Body, suffix)
}

// matchSuffix scans SUFFIX:COUNT lines. Any line that does not parse means
// the response cannot be trusted (for example a truncated body), which is
// reported as ErrOracleUnavailable rather than a clean result.
func matchSuffix(body io.Reader, suffix string) (int, error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		hashSuffix, rawCount, ok := strings.Cut(line, ":")
		if !ok || len(hashSuffix) != suffixLen {
			return 0, fmt.Errorf("%w: malformed range line %q", driven.ErrOracleUnavailable, line)
		}
		count, err := strconv.Atoi(strings.TrimSpace(rawCount))
		if err != nil || count < 0 {
			return 0, fmt.Errorf("%w: malformed count in line %q", driven.ErrOracleUnavailable, line)
		}

		// Padding entries carry a zero count and never match a real password.
		if strings.EqualFold(hashSuffix, suffix) {
			return count, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("%w: read range body: %v", driven.ErrOracleUnavailable, err)
	}
	return 0, nil
}

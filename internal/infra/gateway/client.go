// Package gateway implements the HTTP client used to fetch block JSON from
// gateways, optionally through an egress proxy.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/archiver/internal/core/domain"
)

// maxErrorBody caps how much of a failed response body ends up in an error.
const maxErrorBody = 256

// Options configures a Client.
type Options struct {
	Timeout       time.Duration
	FormatHeader  string
	FormatVersion string
}

// HealthStatus represents the request statistics of a client.
type HealthStatus struct {
	Proxy         string        `json:"proxy"`
	Requests      int           `json:"requests"`
	Failures      int           `json:"failures"`
	ErrorRate     float64       `json:"error_rate"`
	Latency       time.Duration `json:"latency"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
}

// Client issues block requests through a single proxy (or directly).
type Client struct {
	proxy         *domain.Proxy
	httpClient    *http.Client
	formatHeader  string
	formatVersion string

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int
	requestCount int
}

// NewClient creates a client whose transport egresses through proxy.
func NewClient(proxy *domain.Proxy, opts Options) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	if proxy != nil && proxy.Address != "" {
		proxyURL, err := ParseProxyURL(proxy.Address)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	return &Client{
		proxy: proxy,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		formatHeader:  opts.FormatHeader,
		formatVersion: opts.FormatVersion,
		health: HealthStatus{
			Proxy: domain.ProxyName(proxy),
		},
	}, nil
}

// ParseProxyURL parses a proxy address, defaulting to the http scheme.
func ParseProxyURL(address string) (*url.URL, error) {
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return nil, domain.ConfigErrorf("invalid proxy URL %q: %v", address, err)
	}
	if u.Host == "" {
		return nil, domain.ConfigErrorf("invalid proxy URL %q: missing host", address)
	}
	return u, nil
}

// FetchBlock downloads the JSON document for height from gw. The returned
// bytes are the response body, verified to be valid JSON.
func (c *Client) FetchBlock(ctx context.Context, gw domain.Gateway, height int64) ([]byte, error) {
	start := time.Now()

	body, err := c.get(ctx, gw.BlockURL(height))
	if err != nil {
		c.recordFailure()
		return nil, err
	}

	if !json.Valid(body) {
		c.recordFailure()
		return nil, fmt.Errorf("parse response: %w", domain.ErrInvalidPayload)
	}

	c.recordSuccess(time.Since(start))
	return body, nil
}

// FetchHeight reads the current network height from a gateway info endpoint.
func (c *Client) FetchHeight(ctx context.Context, infoURL string) (int64, error) {
	body, err := c.get(ctx, infoURL)
	if err != nil {
		return 0, err
	}

	var info struct {
		Height *int64 `json:"height"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return 0, fmt.Errorf("parse response: %w", err)
	}
	if info.Height == nil {
		return 0, fmt.Errorf("parse response: no height field")
	}
	return *info.Height, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.formatHeader != "" {
		req.Header.Set(c.formatHeader, c.formatVersion)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	// Rate limit detection
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429), retry after: %s", resp.Header.Get("Retry-After"))
	}

	// IP blocked detection
	if resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("ip blocked (403)")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(snippet))
	}

	return body, nil
}

// Proxy returns the proxy this client egresses through, nil for direct.
func (c *Client) Proxy() *domain.Proxy {
	return c.proxy
}

// GetHealth returns the client's request statistics.
func (c *Client) GetHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.health
}

// Close cleans up resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) recordSuccess(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.successCount++
	c.requestCount++
	c.totalLatency += latency
	c.health.LastSuccessAt = time.Now()
	c.health.Requests = c.requestCount

	if c.requestCount > 0 {
		c.health.ErrorRate = float64(c.failureCount) / float64(c.requestCount)
	}
	if c.successCount > 0 {
		c.health.Latency = c.totalLatency / time.Duration(c.successCount)
	}
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount++
	c.requestCount++
	c.health.LastFailureAt = time.Now()
	c.health.Requests = c.requestCount
	c.health.Failures = c.failureCount

	if c.requestCount > 0 {
		c.health.ErrorRate = float64(c.failureCount) / float64(c.requestCount)
	}
}

// Package clients provides the HTTP client the tap uses to talk to the
// Returnless API: bearer authentication, rate limiting, a circuit breaker
// and bounded retries of retryable failures.
package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/oauth2"

	"github.com/ajitpratap0/tap-returnless/pkg/errors"
	"github.com/ajitpratap0/tap-returnless/pkg/logger"
	"github.com/ajitpratap0/tap-returnless/pkg/metrics"
)

// maxBodyBytes caps how much of a single response body is read.
const maxBodyBytes = 64 << 20

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	BaseURL   string
	AuthToken string
	UserAgent string

	// Connection settings
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	RequestTimeout      time.Duration
	EnableHTTP2         bool

	// Rate limiting (0 = unlimited)
	RateLimit float64
	RateBurst int

	// Circuit breaker
	CircuitBreakerEnabled bool
	FailureThreshold      int
	ResetTimeout          time.Duration

	Retry *RetryPolicy
}

// DefaultHTTPConfig returns default configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		UserAgent:             "tap-returnless",
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		DialTimeout:           30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		RequestTimeout:        60 * time.Second,
		EnableHTTP2:           true,
		RateLimit:             5,
		RateBurst:             5,
		CircuitBreakerEnabled: true,
		FailureThreshold:      10,
		ResetTimeout:          30 * time.Second,
		Retry:                 DefaultRetryPolicy(),
	}
}

// HTTPClient fetches JSON documents from the API
type HTTPClient struct {
	config         *HTTPConfig
	baseURL        *url.URL
	logger         *zap.Logger
	httpClient     *http.Client
	transport      *http.Transport
	circuitBreaker *HTTPCircuitBreaker
	rateLimiter    RateLimiter

	totalRequests  int64
	failedRequests int64
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(config *HTTPConfig, log *zap.Logger) (*HTTPClient, error) {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}

	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid base url %q", config.BaseURL)
	}

	client := &HTTPClient{
		config:  config,
		baseURL: base,
		logger:  log.With(zap.String("component", "http_client")),
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	var rt http.RoundTripper = client.transport
	if config.AuthToken != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: config.AuthToken,
				TokenType:   "Bearer",
			}),
			Base: client.transport,
		}
	}

	client.httpClient = &http.Client{
		Transport: rt,
		Timeout:   config.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	if config.RateLimit > 0 {
		client.rateLimiter = NewTokenBucketRateLimiter(config.RateLimit, config.RateBurst)
	}

	if config.CircuitBreakerEnabled {
		client.circuitBreaker = NewHTTPCircuitBreaker(config.FailureThreshold, config.ResetTimeout, log)
	}

	return client, nil
}

// URL resolves path and params against the base URL
func (c *HTTPClient) URL(path string, params url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = params.Encode()
	return u.String()
}

// GetJSON fetches path with params and returns the response body. Retryable
// failures are retried within the configured budget.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, params url.Values) ([]byte, error) {
	collector := metrics.NewCollector(streamFromContext(ctx))
	target := c.URL(path, params)
	log := logger.FromContext(ctx, c.logger)

	attempt := 0
	body, err := Retry(ctx, c.config.Retry, func() ([]byte, error) {
		attempt++
		return c.get(ctx, target, collector)
	}, func(err error, wait time.Duration) {
		collector.Retried()
		log.Warn("retrying request",
			zap.String("url", target),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		var e *errors.Error
		if errors.As(err, &e) {
			return nil, e.WithDetail(errors.DetailPath, path)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "request failed").
			WithDetail(errors.DetailPath, path)
	}
	return body, nil
}

func (c *HTTPClient) get(ctx context.Context, target string, collector *metrics.Collector) ([]byte, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "rate limiter wait cancelled")
		}
	}

	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		return nil, errors.New(errors.ErrorTypeConnection, "circuit breaker open")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	atomic.AddInt64(&c.totalRequests, 1)
	timer := metrics.NewTimer()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		collector.RequestCompleted(metrics.StatusClass(0), timer.Stop())
		c.recordOutcome(true)
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	collector.RequestCompleted(metrics.StatusClass(resp.StatusCode), timer.Stop())
	if readErr != nil {
		c.recordOutcome(true)
		return nil, errors.Wrap(readErr, errors.ErrorTypeConnection, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := errors.FromHTTPStatus(resp.StatusCode, body)
		c.recordOutcome(resp.StatusCode >= 500)
		if apiErr.Type == errors.ErrorTypeRateLimit {
			apiErr = retryAfter(apiErr, parseRetryAfter(resp.Header.Get("Retry-After")))
		}
		return nil, apiErr
	}

	c.recordOutcome(false)
	return body, nil
}

// recordOutcome feeds the circuit breaker. Client errors prove the API is
// reachable and count as successes.
func (c *HTTPClient) recordOutcome(failed bool) {
	if c.circuitBreaker == nil {
		return
	}
	if failed {
		c.circuitBreaker.RecordFailure()
	} else {
		c.circuitBreaker.RecordSuccess()
	}
}

// Stats returns request counters
func (c *HTTPClient) Stats() (total, failed int64) {
	return atomic.LoadInt64(&c.totalRequests), atomic.LoadInt64(&c.failedRequests)
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func streamFromContext(ctx context.Context) string {
	stream, _ := ctx.Value(logger.StreamKey).(string)
	return stream
}

package channel

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/insights/internal/resilience"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

// ClientOptions tunes the ingestion client.
type ClientOptions struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit is in batches per second; zero means unlimited.
	RateLimit float64
	UserAgent string
}

// DefaultClientOptions returns the production settings.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 30 * time.Second,
		UserAgent:    "insights-go",
	}
}

// Result is the outcome of one transmission that reached the endpoint.
type Result struct {
	StatusCode int
	Response   telemetry.TrackResponse
}

// Client posts encoded batches to an ingestion endpoint, guarded by a rate
// limiter and a circuit breaker. Transient failures are retried by the
// underlying retryable transport.
type Client struct {
	Resty    *resty.Client
	Limiter  *rate.Limiter
	Breaker  *resilience.Breaker
	Endpoint string
	mu       sync.RWMutex
}

// NewClient creates a client for endpoint.
func NewClient(endpoint string, opts ClientOptions) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = nil
	// Hand the last response back instead of a generic "giving up" error.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.NewWithClient(retryClient.StandardClient())
	restyClient.
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Content-Type", telemetry.ContentType)
	restyClient.JSONMarshal = sonic.Marshal
	restyClient.JSONUnmarshal = sonic.Unmarshal

	breaker := resilience.New("ingestion", resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		Resty:    restyClient,
		Limiter:  limiter,
		Breaker:  breaker,
		Endpoint: endpoint,
	}
}

// SetHeader adds a default header to every batch.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resty.SetHeader(key, value)
}

// Send posts one gzip-encoded batch. A 5xx reply is returned together with
// an error so the breaker counts it.
func (c *Client) Send(ctx context.Context, body []byte) (*Result, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	return resilience.Execute(c.Breaker, func() (*Result, error) {
		c.mu.RLock()
		req := c.Resty.R().
			SetContext(ctx).
			SetHeader("Content-Encoding", "gzip").
			SetBody(body)
		c.mu.RUnlock()

		resp, err := req.Post(c.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("transmission failed: %w", err)
		}

		result := &Result{StatusCode: resp.StatusCode()}
		if raw := resp.Body(); len(raw) > 0 {
			// Unparseable replies still carry a usable status.
			_ = sonic.Unmarshal(raw, &result.Response)
		}
		if result.StatusCode >= http.StatusInternalServerError {
			return result, fmt.Errorf("ingestion endpoint returned %d", result.StatusCode)
		}
		return result, nil
	})
}

package chains

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/insight-wallet/internal/metrics"
)

type options struct {
	providerHost string
	retryMax     int
	rateLimit    float64
	rateBurst    int
	httpClient   *http.Client
	networks     []network

	breakerThreshold int
	breakerCooldown  time.Duration

	metrics *metrics.Metrics
}

func defaultOptions() options {
	return options{
		providerHost: "g.alchemy.com",
		retryMax:     2,
		rateLimit:    10,
		rateBurst:    20,
		networks:     supportedNetworks,

		breakerThreshold: 5,
		breakerCooldown:  30 * time.Second,
	}
}

// Option customises a Registry
type Option func(*options)

// WithProviderHost sets the host primary endpoints are built under
func WithProviderHost(host string) Option {
	return func(o *options) {
		if host != "" {
			o.providerHost = host
		}
	}
}

// WithRetryMax sets how often a failed call is retried against the same endpoint
func WithRetryMax(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retryMax = n
		}
	}
}

// WithRateLimit sets the per-network relay rate
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		if rps > 0 && burst > 0 {
			o.rateLimit = rps
			o.rateBurst = burst
		}
	}
}

// WithCircuitBreaker sets how many consecutive upstream failures open a network's
// circuit and how long it stays open
func WithCircuitBreaker(threshold int, cooldown time.Duration) Option {
	return func(o *options) {
		if threshold > 0 {
			o.breakerThreshold = threshold
		}
		if cooldown > 0 {
			o.breakerCooldown = cooldown
		}
	}
}

// WithMetrics exports the circuit state of every network
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithHTTPClient replaces the retrying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// newRetryClient creates a new HTTP client with retry capabilities.
// Retries always hit the same endpoint.
func newRetryClient(retryMax int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 250 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.Logger = nil
	// Hand the last upstream response back instead of a synthetic error
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}

// StandardClient converts a retryablehttp.Client to a standard http.Client
func StandardClient(retryClient *retryablehttp.Client) *http.Client {
	return retryClient.StandardClient()
}

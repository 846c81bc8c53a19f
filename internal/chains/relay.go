package chains

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yourorg/insight-wallet/internal/circuitbreaker"
	"github.com/yourorg/insight-wallet/internal/metrics"
	"github.com/yourorg/insight-wallet/internal/otel"
	"github.com/yourorg/insight-wallet/internal/types"
)

// ErrRateLimited is returned when a network's relay budget is exhausted
var ErrRateLimited = errors.New("rpc relay rate limit exceeded")

// ErrResponseTooLarge is returned when the upstream answer exceeds MaxRelayBody
var ErrResponseTooLarge = errors.New("rpc relay response too large")

// MaxRelayBody caps request and response bodies passing through the relay
const MaxRelayBody = 1 << 20

// RelayResponse is the upstream answer, passed through untouched
type RelayResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Relay forwards raw JSON-RPC payloads to the endpoint the registry selected.
// Payloads are never parsed.
type Relay struct {
	registry *Registry
	timeout  time.Duration
	metrics  *metrics.Metrics
}

// NewRelay creates a relay over registry. metrics may be nil.
func NewRelay(registry *Registry, timeout time.Duration, m *metrics.Metrics) *Relay {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Relay{registry: registry, timeout: timeout, metrics: m}
}

// Forward posts body to the endpoint of network id
func (r *Relay) Forward(ctx context.Context, id types.NetworkID, body []byte) (RelayResponse, error) {
	ctx, span := otel.Start(ctx, "rpc.relay", attribute.Int64("chain_id", int64(id)))
	defer span.End()

	t, err := r.registry.TransportFor(id)
	if err != nil {
		r.metrics.ObserveRelay(id.String(), "unsupported", 0)
		return RelayResponse{}, err
	}
	span.SetAttributes(attribute.Bool("primary", t.Primary))

	if !r.registry.limiter(id).Allow() {
		r.metrics.ObserveRelay(id.String(), "rate_limited", 0)
		return RelayResponse{}, fmt.Errorf("%w: network %s", ErrRateLimited, id)
	}

	breaker := r.registry.breaker(id)
	if err := breaker.Allow(); err != nil {
		r.metrics.ObserveRelay(id.String(), "circuit_open", 0)
		otel.SetOutcome(ctx, "circuit_open")
		return RelayResponse{}, err
	}

	caller := ctx
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		breaker.Release()
		return RelayResponse{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.registry.httpClient.Do(req)
	if err != nil {
		if caller.Err() != nil {
			// the caller went away, which says nothing about the upstream
			return RelayResponse{}, r.abort(id, breaker, caller)
		}
		r.metrics.ObserveRelay(id.String(), "upstream_error", time.Since(start).Seconds())
		otel.RecordError(ctx, err)
		// url.Error carries the endpoint, which may embed the credential
		masked := r.registry.Mask(err.Error())
		breaker.RecordFailure(masked)
		return RelayResponse{}, fmt.Errorf("relay to network %s failed: %s", id, masked)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxRelayBody+1))
	if err != nil {
		if caller.Err() != nil {
			return RelayResponse{}, r.abort(id, breaker, caller)
		}
		r.metrics.ObserveRelay(id.String(), "upstream_error", time.Since(start).Seconds())
		breaker.RecordFailure("truncated response")
		return RelayResponse{}, fmt.Errorf("error reading relay response from network %s: %w", id, err)
	}
	if len(respBody) > MaxRelayBody {
		r.metrics.ObserveRelay(id.String(), "response_too_large", time.Since(start).Seconds())
		breaker.RecordFailure("response too large")
		return RelayResponse{}, fmt.Errorf("%w: network %s answered more than %d bytes", ErrResponseTooLarge, id, MaxRelayBody)
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		breaker.RecordFailure(resp.Status)
	} else {
		breaker.RecordSuccess()
	}

	r.metrics.ObserveRelay(id.String(), "ok", time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	logrus.WithFields(logrus.Fields{
		"chain_id": int64(id),
		"status":   resp.StatusCode,
		"primary":  t.Primary,
		"elapsed":  time.Since(start),
	}).Debug("Relayed RPC request")

	return RelayResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}

func (r *Relay) abort(id types.NetworkID, breaker *circuitbreaker.CircuitBreaker, caller context.Context) error {
	breaker.Release()
	r.metrics.ObserveRelay(id.String(), "aborted", 0)
	return fmt.Errorf("relay to network %s aborted: %w", id, caller.Err())
}

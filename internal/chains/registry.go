// Package chains holds the static table of supported networks and the RPC transport
// configuration derived from it at startup.
package chains

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/yourorg/insight-wallet/internal/circuitbreaker"
	"github.com/yourorg/insight-wallet/internal/otel"
	"github.com/yourorg/insight-wallet/internal/types"
)

// ErrUnsupportedNetwork is returned for a network id missing from the registry
var ErrUnsupportedNetwork = errors.New("unsupported network")

type network struct {
	id        types.NetworkID
	name      string
	subdomain string
	fallback  string
}

// supportedNetworks is the fixed set served by this build, in display order
var supportedNetworks = []network{
	{id: types.NetworkMainnet, name: "mainnet", subdomain: "eth-mainnet", fallback: "https://cloudflare-eth.com"},
	{id: types.NetworkBase, name: "base", subdomain: "base-mainnet", fallback: "https://mainnet.base.org"},
	{id: types.NetworkArbitrum, name: "arbitrum", subdomain: "arb-mainnet", fallback: "https://arb1.arbitrum.io/rpc"},
	{id: types.NetworkOptimism, name: "optimism", subdomain: "opt-mainnet", fallback: "https://mainnet.optimism.io"},
	{id: types.NetworkPolygon, name: "polygon", subdomain: "polygon-mainnet", fallback: "https://polygon-rpc.com"},
}

// Transport is the endpoint selected for a network
type Transport struct {
	NetworkID types.NetworkID
	URL       string
	Primary   bool
}

// Registry maps network ids to RPC transports. It is immutable after NewRegistry,
// the endpoint choice is never re-evaluated.
type Registry struct {
	descriptors map[types.NetworkID]types.NetworkDescriptor
	order       []types.NetworkID
	credential  string
	warnings    []string
	httpClient  *http.Client
	limiters    map[types.NetworkID]*rate.Limiter
	breakers    map[types.NetworkID]*circuitbreaker.CircuitBreaker
}

// NewRegistry builds the registry. A blank credential selects every public fallback
// and records a warning; it is never an error.
func NewRegistry(credential string, opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	credential = strings.TrimSpace(credential)
	r := &Registry{
		descriptors: make(map[types.NetworkID]types.NetworkDescriptor, len(o.networks)),
		credential:  credential,
		httpClient:  o.httpClient,
		limiters:    make(map[types.NetworkID]*rate.Limiter, len(o.networks)),
		breakers:    make(map[types.NetworkID]*circuitbreaker.CircuitBreaker, len(o.networks)),
	}
	if r.httpClient == nil {
		r.httpClient = StandardClient(newRetryClient(o.retryMax))
	}

	for _, n := range o.networks {
		d := types.NetworkDescriptor{
			ID:          n.id,
			Name:        n.name,
			Subdomain:   n.subdomain,
			FallbackURL: n.fallback,
		}
		if credential != "" {
			d.PrimaryURL = fmt.Sprintf("https://%s.%s/v2/%s", n.subdomain, o.providerHost, credential)
		}
		r.descriptors[n.id] = d
		r.order = append(r.order, n.id)
		r.limiters[n.id] = rate.NewLimiter(rate.Limit(o.rateLimit), o.rateBurst)
		network := n.id.String()
		r.breakers[n.id] = circuitbreaker.New(n.name, o.breakerThreshold).
			WithResetDelay(o.breakerCooldown).
			WithStateCallback(func(_ string, _, to circuitbreaker.State) {
				o.metrics.ObserveCircuit(network, int(to))
			})
		o.metrics.ObserveCircuit(network, int(circuitbreaker.StateClosed))

		logrus.WithFields(logrus.Fields{
			"network":  n.name,
			"chain_id": int64(n.id),
			"endpoint": r.Mask(d.Endpoint()),
			"primary":  d.HasPrimary(),
		}).Debug("Registered network transport")
	}

	if credential == "" {
		msg := fmt.Sprintf("no RPC credential configured, %d networks use public fallback endpoints", len(r.order))
		r.warnings = append(r.warnings, msg)
		logrus.Warn(msg)
	}
	return r
}

// TransportFor returns the transport selected for id
func (r *Registry) TransportFor(id types.NetworkID) (Transport, error) {
	d, ok := r.descriptors[id]
	if !ok {
		return Transport{}, fmt.Errorf("%w: %d", ErrUnsupportedNetwork, int64(id))
	}
	return Transport{NetworkID: id, URL: d.Endpoint(), Primary: d.HasPrimary()}, nil
}

// Descriptors returns all network descriptors in table order
func (r *Registry) Descriptors() []types.NetworkDescriptor {
	out := make([]types.NetworkDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.descriptors[id])
	}
	return out
}

// Warnings returns the configuration degradations recorded at construction
func (r *Registry) Warnings() []string {
	out := make([]string, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Mask hides the credential in s so endpoints can be logged or shown
func (r *Registry) Mask(s string) string {
	if r.credential == "" {
		return s
	}
	return strings.ReplaceAll(s, r.credential, "***")
}

// Client returns a JSON-RPC client bound to the selected endpoint of id.
// HTTP clients connect lazily, so this does not touch the network.
func (r *Registry) Client(ctx context.Context, id types.NetworkID) (*rpc.Client, error) {
	t, err := r.TransportFor(id)
	if err != nil {
		return nil, err
	}
	client, err := rpc.DialOptions(ctx, t.URL, rpc.WithHTTPClient(r.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc client for %s: %w", id, err)
	}
	return client, nil
}

// CircuitStates reports the relay circuit state of every network, keyed by name
func (r *Registry) CircuitStates() map[string]string {
	out := make(map[string]string, len(r.order))
	for _, id := range r.order {
		out[r.descriptors[id].Name] = r.breakers[id].GetState().String()
	}
	return out
}

// EndpointStatus is the result of asking a network's endpoint for its chain id
type EndpointStatus struct {
	NetworkID types.NetworkID `json:"network_id"`
	Primary   bool            `json:"primary"`
	ChainID   uint64          `json:"chain_id"`
	// Matches is false when the endpoint serves a different chain than configured
	Matches bool          `json:"matches"`
	Latency time.Duration `json:"latency_ns"`
}

// CheckEndpoint calls eth_chainId on the selected endpoint of id. It shares the
// network's relay rate limit.
func (r *Registry) CheckEndpoint(ctx context.Context, id types.NetworkID) (EndpointStatus, error) {
	t, err := r.TransportFor(id)
	if err != nil {
		return EndpointStatus{}, err
	}
	if !r.limiter(id).Allow() {
		return EndpointStatus{}, fmt.Errorf("%w: network %s", ErrRateLimited, id)
	}

	client, err := r.Client(ctx, id)
	if err != nil {
		return EndpointStatus{}, err
	}
	defer client.Close()

	ctx, span := otel.Start(ctx, "rpc.check_endpoint", attribute.Int64("chain_id", int64(id)))
	defer span.End()

	start := time.Now()
	var chainID hexutil.Uint64
	if err := client.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		otel.RecordError(ctx, err)
		return EndpointStatus{}, fmt.Errorf("eth_chainId on network %s failed: %s", id, r.Mask(err.Error()))
	}

	status := EndpointStatus{
		NetworkID: id,
		Primary:   t.Primary,
		ChainID:   uint64(chainID),
		Matches:   uint64(chainID) == uint64(id),
		Latency:   time.Since(start),
	}
	if !status.Matches {
		logrus.WithFields(logrus.Fields{
			"chain_id": int64(id),
			"reported": status.ChainID,
			"endpoint": r.Mask(t.URL),
		}).Warn("RPC endpoint serves a different chain")
	}
	return status, nil
}

func (r *Registry) limiter(id types.NetworkID) *rate.Limiter {
	return r.limiters[id]
}

func (r *Registry) breaker(id types.NetworkID) *circuitbreaker.CircuitBreaker {
	return r.breakers[id]
}

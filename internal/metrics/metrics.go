// Package metrics holds the Prometheus collectors for the wallet connectivity layer.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the server
type Metrics struct {
	transitions     *prometheus.CounterVec
	connectOutcomes *prometheus.CounterVec
	providers       *prometheus.GaugeVec
	sessions        prometheus.Gauge
	relayRequests   *prometheus.CounterVec
	relayDuration   *prometheus.HistogramVec
	circuitState    *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_state_transitions_total",
				Help: "Connection state transitions by resulting status",
			},
			[]string{"status"},
		),
		connectOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_connect_attempts_total",
				Help: "Connect attempts by outcome",
			},
			[]string{"outcome"},
		),
		providers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wallet_announced_providers",
				Help: "Wallet providers currently announced across open tabs",
			},
			[]string{"kind"},
		),
		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wallet_tab_sessions",
				Help: "Open tab sessions",
			},
		),
		relayRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rpc_relay_requests_total",
				Help: "Relayed JSON-RPC requests by network and result",
			},
			[]string{"network", "result"},
		),
		relayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rpc_relay_duration_seconds",
				Help:    "Upstream duration of relayed JSON-RPC requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"network"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rpc_relay_circuit_state",
				Help: "Relay circuit breaker state per network (0=closed, 1=open, 2=half-open)",
			},
			[]string{"network"},
		),
	}

	reg.MustRegister(
		m.transitions,
		m.connectOutcomes,
		m.providers,
		m.sessions,
		m.relayRequests,
		m.relayDuration,
		m.circuitState,
	)
	return m
}

// ObserveTransition counts a connection state transition
func (m *Metrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// ObserveConnect counts the outcome of a connect attempt
func (m *Metrics) ObserveConnect(outcome string) {
	if m == nil {
		return
	}
	m.connectOutcomes.WithLabelValues(outcome).Inc()
}

// ProviderAnnounced tracks a newly announced provider
func (m *Metrics) ProviderAnnounced(kind string) {
	if m == nil {
		return
	}
	m.providers.WithLabelValues(kind).Inc()
}

// ProviderWithdrawn tracks a provider leaving
func (m *Metrics) ProviderWithdrawn(kind string) {
	if m == nil {
		return
	}
	m.providers.WithLabelValues(kind).Dec()
}

// SessionOpened tracks a new tab session
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed tracks a tab session ending
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// ObserveRelay records one relayed request
func (m *Metrics) ObserveRelay(network, result string, seconds float64) {
	if m == nil {
		return
	}
	m.relayRequests.WithLabelValues(network, result).Inc()
	if seconds > 0 {
		m.relayDuration.WithLabelValues(network).Observe(seconds)
	}
}

// ObserveCircuit records the relay circuit breaker state of a network
func (m *Metrics) ObserveCircuit(network string, state int) {
	if m == nil {
		return
	}
	m.circuitState.WithLabelValues(network).Set(float64(state))
}

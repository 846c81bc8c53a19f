package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yourorg/insight-wallet/internal/metrics"
	"github.com/yourorg/insight-wallet/internal/otel"
)

// Manager owns the connection state of one tab. It is the only writer of State.
//
// Connect attempts are serialized: a Connect while connecting or connected is ignored.
// Disconnect always wins over an in-flight attempt, whose late answer is discarded.
// Subscribers see every transition, in order, before the mutating call returns
// (unless another goroutine is already delivering, in which case that goroutine does).
type Manager struct {
	mu    sync.Mutex
	state State
	// epoch identifies the current attempt; bumped by anything that ends it
	epoch    uint64
	restored bool

	pending     []State
	dispatching bool
	subs        map[int]func(State)
	nextSub     int

	store   SessionStore
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// ManagerOption customises a Manager
type ManagerOption func(*Manager)

// WithSessionStore sets the session bridge used to survive reloads
func WithSessionStore(s SessionStore) ManagerOption {
	return func(m *Manager) {
		if s != nil {
			m.store = s
		}
	}
}

// WithMetrics records transitions and connect outcomes
func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithLogger sets the log entry, usually carrying the tab session id
func WithLogger(l *logrus.Entry) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager creates a manager in the disconnected state
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		state: State{Status: StatusDisconnected},
		subs:  make(map[int]func(State)),
		store: noopStore{},
		log:   logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the current state
func (m *Manager) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentAddress returns the connected address
func (m *Manager) CurrentAddress() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status != StatusConnected {
		return "", false
	}
	return m.state.Address, true
}

// Subscribe registers fn for state transitions and returns a cancel func.
// fn may call back into the manager.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Connect asks p for its accounts and moves to connected on approval.
// Rejection, failure or the provider leaving end in disconnected; none of them is
// reported as an error. A nil provider leaves the state untouched.
// Connect blocks until the wallet answers, so callers on an event loop run it
// on its own goroutine.
func (m *Manager) Connect(ctx context.Context, p Provider) State {
	if p == nil {
		m.log.Info("Connect ignored, no compatible wallet provider found")
		return m.Current()
	}

	ctx, span := otel.Start(ctx, "wallet.connect",
		attribute.String("provider", p.ID()),
		attribute.String("kind", string(p.Kind())),
	)
	defer span.End()

	m.mu.Lock()
	if m.state.Status != StatusDisconnected {
		current := m.state
		m.mu.Unlock()
		m.log.WithField("status", current.Status).Debug("Connect ignored, wallet already connecting or connected")
		return current
	}
	m.epoch++
	epoch := m.epoch
	m.transitionLocked(State{Status: StatusConnecting, ProviderID: p.ID()})
	m.mu.Unlock()

	accounts, err := p.RequestAccounts(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch || m.state.Status != StatusConnecting {
		m.metrics.ObserveConnect("superseded")
		otel.SetOutcome(ctx, "superseded")
		m.log.WithField("provider", p.ID()).Debug("Discarding wallet answer for a superseded connect attempt")
		return m.state
	}

	address, outcome := resolveAccounts(accounts, err)
	m.metrics.ObserveConnect(outcome)
	otel.SetOutcome(ctx, outcome)
	fields := logrus.Fields{"provider": p.ID(), "outcome": outcome}

	if address == "" {
		switch outcome {
		case "rejected", "cancelled":
			m.log.WithFields(fields).Info("Wallet connection not approved")
		default:
			m.log.WithFields(fields).WithError(err).Warn("Wallet connection failed")
		}
		otel.RecordError(ctx, err)
		m.transitionLocked(State{Status: StatusDisconnected})
		return State{Status: StatusDisconnected}
	}

	next := State{Status: StatusConnected, Address: address, ProviderID: p.ID()}
	m.store.Remember(sessionKey(p))
	m.log.WithFields(fields).WithField("address", address).Info("Wallet connected")
	m.transitionLocked(next)
	return next
}

// Disconnect ends the connection or the in-flight attempt. It is a no-op when
// already disconnected.
func (m *Manager) Disconnect() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Status == StatusDisconnected {
		return m.state
	}
	m.epoch++
	m.store.Forget()
	m.log.WithField("provider", m.state.ProviderID).Info("Wallet disconnected")
	m.transitionLocked(State{Status: StatusDisconnected})
	return State{Status: StatusDisconnected}
}

// HandleAccountsChanged applies an account-change event broadcast by a provider.
// Only the provider the tab is connected through is listened to.
func (m *Manager) HandleAccountsChanged(providerID string, accounts []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Status != StatusConnected || m.state.ProviderID != providerID {
		return
	}

	if len(accounts) == 0 {
		m.epoch++
		m.store.Forget()
		m.log.WithField("provider", providerID).Info("Wallet revoked all accounts")
		m.transitionLocked(State{Status: StatusDisconnected})
		return
	}

	if !common.IsHexAddress(accounts[0]) {
		m.log.WithField("provider", providerID).Warn("Ignoring account change with malformed address")
		return
	}
	address := common.HexToAddress(accounts[0]).Hex()
	if address == m.state.Address {
		return
	}
	m.log.WithFields(logrus.Fields{"provider": providerID, "address": address}).Info("Wallet account changed")
	m.transitionLocked(State{Status: StatusConnected, Address: address, ProviderID: providerID})
}

// HandleProviderGone ends any attempt or connection through providerID.
// An in-flight attempt counts as rejected.
func (m *Manager) HandleProviderGone(providerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Status == StatusDisconnected || m.state.ProviderID != providerID {
		return
	}
	if m.state.Status == StatusConnecting {
		m.metrics.ObserveConnect("provider_gone")
	}
	m.epoch++
	m.log.WithField("provider", providerID).Info("Wallet provider went away")
	m.transitionLocked(State{Status: StatusDisconnected})
}

// Restore reconnects with the wallet the session store remembers, once that wallet
// has been announced into d. Only one restore attempt is made per manager.
func (m *Manager) Restore(ctx context.Context, d *Discovery) State {
	m.mu.Lock()
	if m.restored || m.state.Status != StatusDisconnected {
		current := m.state
		m.mu.Unlock()
		return current
	}
	key, ok := m.store.Recall()
	if !ok {
		current := m.state
		m.mu.Unlock()
		return current
	}
	p, found := d.FindByRDNS(key)
	if !found {
		p, found = d.Get(key)
	}
	if !found {
		current := m.state
		m.mu.Unlock()
		return current
	}
	m.restored = true
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"provider": p.ID(), "rdns": key}).Info("Restoring wallet connection from session")
	return m.Connect(ctx, p)
}

// transitionLocked must be called with m.mu held and returns with it held.
// m.mu is released while subscribers run.
func (m *Manager) transitionLocked(next State) {
	m.state = next
	m.pending = append(m.pending, next)
	m.metrics.ObserveTransition(next.Status.String())

	if m.dispatching {
		return
	}
	m.dispatching = true
	for len(m.pending) > 0 {
		ev := m.pending[0]
		m.pending = m.pending[1:]

		subs := make([]func(State), 0, len(m.subs))
		for i := 0; i < m.nextSub; i++ {
			if fn, ok := m.subs[i]; ok {
				subs = append(subs, fn)
			}
		}

		m.mu.Unlock()
		for _, fn := range subs {
			fn(ev)
		}
		m.mu.Lock()
	}
	m.dispatching = false
}

// sessionKey identifies p across page loads. Announcement uuids are only stable for one
// page load, the reverse-DNS name is stable for the wallet.
func sessionKey(p Provider) string {
	if rdns := p.Info().RDNS; rdns != "" {
		return rdns
	}
	return p.ID()
}

func resolveAccounts(accounts []string, err error) (string, string) {
	switch {
	case errors.Is(err, ErrUserRejected):
		return "", "rejected"
	case errors.Is(err, ErrProviderGone):
		return "", "provider_gone"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "", "cancelled"
	case err != nil:
		return "", "failed"
	case len(accounts) == 0:
		return "", "no_accounts"
	case !common.IsHexAddress(accounts[0]):
		return "", "invalid_address"
	}
	return common.HexToAddress(accounts[0]).Hex(), "approved"
}

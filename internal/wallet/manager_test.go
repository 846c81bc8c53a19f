package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.states))
	for i, s := range r.states {
		out[i] = s.Status
	}
	return out
}

func newRecordedManager(opts ...ManagerOption) (*Manager, *recorder) {
	m := NewManager(opts...)
	rec := &recorder{}
	m.Subscribe(rec.record)
	return m, rec
}

func waitForStatus(t *testing.T, m *Manager, want Status) {
	t.Helper()
	require.Eventually(t, func() bool { return m.Current().Status == want }, time.Second, 5*time.Millisecond)
}

func TestManager_StartsDisconnected(t *testing.T) {
	m := NewManager()
	assert.Equal(t, StatusDisconnected, m.Current().Status)
	_, ok := m.CurrentAddress()
	assert.False(t, ok)
}

func TestManager_ConnectApproved(t *testing.T) {
	store := &memStore{}
	m, rec := newRecordedManager(WithSessionStore(store))

	state := m.Connect(context.Background(), newFake("mm", KindInjected))

	assert.Equal(t, StatusConnected, state.Status)
	assert.Equal(t, testAddressChecked, state.Address)
	assert.Equal(t, "mm", state.ProviderID)
	assert.Equal(t, []Status{StatusConnecting, StatusConnected}, rec.statuses())

	addr, ok := m.CurrentAddress()
	require.True(t, ok)
	assert.Equal(t, testAddressChecked, addr)

	key, ok := store.Recall()
	require.True(t, ok)
	assert.Equal(t, "io.fake.mm", key, "the session remembers the wallet, not the page-load uuid")
}

func TestManager_ConnectFailuresEndDisconnected(t *testing.T) {
	tests := []struct {
		name     string
		accounts []string
		err      error
	}{
		{name: "user rejected", err: fmt.Errorf("wallet: %w", ErrUserRejected)},
		{name: "provider gone", err: ErrProviderGone},
		{name: "transport error", err: errors.New("boom")},
		{name: "no accounts", accounts: []string{}},
		{name: "malformed address", accounts: []string{"not-an-address"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			m, rec := newRecordedManager(WithSessionStore(store))
			p := newFake("mm", KindInjected)
			p.accounts = tt.accounts
			p.err = tt.err

			state := m.Connect(context.Background(), p)

			assert.Equal(t, StatusDisconnected, state.Status)
			assert.Empty(t, state.Address)
			assert.Equal(t, []Status{StatusConnecting, StatusDisconnected}, rec.statuses())
			_, ok := store.Recall()
			assert.False(t, ok)
		})
	}
}

func TestManager_ConnectWithoutProviderIsNoop(t *testing.T) {
	m, rec := newRecordedManager()

	state := m.Connect(context.Background(), nil)

	assert.Equal(t, StatusDisconnected, state.Status)
	assert.Empty(t, rec.statuses())
}

func TestManager_ConnectWhileConnectingIgnored(t *testing.T) {
	m, rec := newRecordedManager()
	p := newFake("mm", KindInjected)
	p.release = make(chan struct{})

	done := make(chan State)
	go func() { done <- m.Connect(context.Background(), p) }()
	waitForStatus(t, m, StatusConnecting)

	second := m.Connect(context.Background(), p)
	assert.Equal(t, StatusConnecting, second.Status)

	close(p.release)
	assert.Equal(t, StatusConnected, (<-done).Status)
	assert.Equal(t, int32(1), p.calls.Load(), "only one wallet request is issued")
	assert.Equal(t, []Status{StatusConnecting, StatusConnected}, rec.statuses())
}

func TestManager_ConnectWhileConnectedIgnored(t *testing.T) {
	m, rec := newRecordedManager()
	p := newFake("mm", KindInjected)

	m.Connect(context.Background(), p)
	state := m.Connect(context.Background(), newFake("other", KindInjected))

	assert.Equal(t, StatusConnected, state.Status)
	assert.Equal(t, "mm", state.ProviderID)
	assert.Equal(t, []Status{StatusConnecting, StatusConnected}, rec.statuses())
}

func TestManager_DisconnectDuringConnectWins(t *testing.T) {
	store := &memStore{}
	m, rec := newRecordedManager(WithSessionStore(store))
	p := newFake("mm", KindInjected)
	p.release = make(chan struct{})

	done := make(chan State)
	go func() { done <- m.Connect(context.Background(), p) }()
	waitForStatus(t, m, StatusConnecting)

	assert.Equal(t, StatusDisconnected, m.Disconnect().Status)

	// the wallet approves after the user already gave up
	close(p.release)
	final := <-done

	assert.Equal(t, StatusDisconnected, final.Status)
	assert.Equal(t, StatusDisconnected, m.Current().Status)
	assert.Equal(t, []Status{StatusConnecting, StatusDisconnected}, rec.statuses())
	_, ok := store.Recall()
	assert.False(t, ok)
}

func TestManager_DisconnectIdempotent(t *testing.T) {
	store := &memStore{}
	m, rec := newRecordedManager(WithSessionStore(store))

	m.Connect(context.Background(), newFake("mm", KindInjected))
	m.Disconnect()
	m.Disconnect()

	assert.Equal(t, []Status{StatusConnecting, StatusConnected, StatusDisconnected}, rec.statuses())
	_, ok := m.CurrentAddress()
	assert.False(t, ok)
	_, ok = store.Recall()
	assert.False(t, ok)
}

func TestManager_AccountsChanged(t *testing.T) {
	m, rec := newRecordedManager()
	m.Connect(context.Background(), newFake("mm", KindInjected))

	other := "0x1111111111111111111111111111111111111111"

	m.HandleAccountsChanged("rabby", []string{other})
	addr, _ := m.CurrentAddress()
	assert.Equal(t, testAddressChecked, addr, "events from other providers are ignored")

	m.HandleAccountsChanged("mm", []string{testAddress})
	assert.Len(t, rec.statuses(), 2, "same address is not a transition")

	m.HandleAccountsChanged("mm", []string{other})
	addr, ok := m.CurrentAddress()
	require.True(t, ok)
	assert.Equal(t, other, addr)

	m.HandleAccountsChanged("mm", []string{"garbage"})
	addr, _ = m.CurrentAddress()
	assert.Equal(t, other, addr)

	m.HandleAccountsChanged("mm", nil)
	assert.Equal(t, StatusDisconnected, m.Current().Status)
	assert.Equal(t, []Status{StatusConnecting, StatusConnected, StatusConnected, StatusDisconnected}, rec.statuses())
}

func TestManager_ProviderGoneDuringConnect(t *testing.T) {
	m, rec := newRecordedManager()
	p := newFake("mm", KindInjected)
	p.release = make(chan struct{})

	done := make(chan State)
	go func() { done <- m.Connect(context.Background(), p) }()
	waitForStatus(t, m, StatusConnecting)

	m.HandleProviderGone("someone-else")
	assert.Equal(t, StatusConnecting, m.Current().Status)

	m.HandleProviderGone("mm")
	close(p.release)

	assert.Equal(t, StatusDisconnected, (<-done).Status)
	assert.Equal(t, []Status{StatusConnecting, StatusDisconnected}, rec.statuses())
}

func TestManager_CancelledContext(t *testing.T) {
	m := NewManager()
	p := newFake("mm", KindInjected)
	p.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan State)
	go func() { done <- m.Connect(ctx, p) }()
	waitForStatus(t, m, StatusConnecting)

	cancel()
	assert.Equal(t, StatusDisconnected, (<-done).Status)
}

func TestManager_SubscribersObserveInOrderAndMayReenter(t *testing.T) {
	m := NewManager()

	var got []string
	m.Subscribe(func(s State) {
		got = append(got, "first:"+s.Status.String())
		if s.Status == StatusConnected {
			m.Disconnect()
		}
	})
	m.Subscribe(func(s State) { got = append(got, "second:"+s.Status.String()) })

	final := m.Connect(context.Background(), newFake("mm", KindInjected))

	// Connect reports what it applied; the nested Disconnect is delivered after
	// every subscriber has seen the connected state.
	assert.Equal(t, StatusConnected, final.Status)
	assert.Equal(t, StatusDisconnected, m.Current().Status)
	assert.Equal(t, []string{
		"first:connecting", "second:connecting",
		"first:connected", "second:connected",
		"first:disconnected", "second:disconnected",
	}, got)
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager()
	calls := 0
	cancel := m.Subscribe(func(State) { calls++ })
	cancel()

	m.Connect(context.Background(), newFake("mm", KindInjected))
	assert.Zero(t, calls)
}

func TestManager_Restore(t *testing.T) {
	store := &memStore{id: "io.metamask"}
	m, rec := newRecordedManager(WithSessionStore(store))
	d := NewDiscovery()

	assert.Equal(t, StatusDisconnected, m.Restore(context.Background(), d).Status, "provider not announced yet")

	d.Announce(newFake("rabby", KindInjected))
	assert.Equal(t, StatusDisconnected, m.Restore(context.Background(), d).Status)

	// the wallet comes back after a reload under a fresh uuid
	mm := newFake("uuid-after-reload", KindInjected)
	mm.rdns = "io.metamask"
	d.Announce(mm)
	state := m.Restore(context.Background(), d)
	assert.Equal(t, StatusConnected, state.Status)
	assert.Equal(t, "uuid-after-reload", state.ProviderID)

	m.Disconnect()
	store.Remember("io.metamask")
	assert.Equal(t, StatusDisconnected, m.Restore(context.Background(), d).Status, "restore runs once")
	assert.Equal(t, []Status{StatusConnecting, StatusConnected, StatusDisconnected}, rec.statuses())
}

func TestManager_RestoreFallsBackToProviderID(t *testing.T) {
	store := &memStore{id: "legacy"}
	m := NewManager(WithSessionStore(store))
	d := NewDiscovery()
	d.Announce(newFake("legacy", KindInjected))

	assert.Equal(t, StatusConnected, m.Restore(context.Background(), d).Status)
}

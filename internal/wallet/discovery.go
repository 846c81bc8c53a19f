package wallet

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// DiscoveryEventType tells subscribers what changed
type DiscoveryEventType int

// Discovery events
const (
	ProviderAnnounced DiscoveryEventType = iota
	ProviderReplaced
	ProviderWithdrawn
)

// DiscoveryEvent is delivered to Discovery subscribers
type DiscoveryEvent struct {
	Type     DiscoveryEventType
	Provider Provider
}

// Discovery is the open set of providers announced into a browser context.
// Order is first-announcement order.
type Discovery struct {
	mu        sync.RWMutex
	providers []Provider
	subs      map[int]func(DiscoveryEvent)
	nextSub   int
}

// NewDiscovery creates an empty discovery registry
func NewDiscovery() *Discovery {
	return &Discovery{subs: make(map[int]func(DiscoveryEvent))}
}

// Announce registers p. A second announcement with the same ID replaces the earlier one
// in place. It reports whether p was new.
func (d *Discovery) Announce(p Provider) bool {
	if p == nil || p.ID() == "" {
		return false
	}

	d.mu.Lock()
	ev := DiscoveryEvent{Type: ProviderAnnounced, Provider: p}
	replaced := false
	for i, existing := range d.providers {
		if existing.ID() == p.ID() {
			d.providers[i] = p
			ev.Type = ProviderReplaced
			replaced = true
			break
		}
	}
	if !replaced {
		d.providers = append(d.providers, p)
	}
	subs := d.subscribers()
	d.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"provider": p.ID(),
		"name":     p.Info().Name,
		"kind":     p.Kind(),
		"replaced": replaced,
	}).Info("Wallet provider announced")

	for _, fn := range subs {
		fn(ev)
	}
	return !replaced
}

// Withdraw removes the provider with id. It reports whether it was present.
func (d *Discovery) Withdraw(id string) bool {
	d.mu.Lock()
	var removed Provider
	for i, p := range d.providers {
		if p.ID() == id {
			removed = p
			d.providers = append(d.providers[:i], d.providers[i+1:]...)
			break
		}
	}
	subs := d.subscribers()
	d.mu.Unlock()

	if removed == nil {
		return false
	}
	logrus.WithField("provider", id).Info("Wallet provider withdrawn")
	for _, fn := range subs {
		fn(DiscoveryEvent{Type: ProviderWithdrawn, Provider: removed})
	}
	return true
}

// List returns the announced providers in discovery order
func (d *Discovery) List() []Provider {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Provider, len(d.providers))
	copy(out, d.providers)
	return out
}

// Get returns the provider with id
func (d *Discovery) Get(id string) (Provider, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.providers {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

// FindByRDNS returns the first provider announcing the reverse-DNS name rdns
func (d *Discovery) FindByRDNS(rdns string) (Provider, bool) {
	if rdns == "" {
		return nil, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.providers {
		if strings.EqualFold(p.Info().RDNS, rdns) {
			return p, true
		}
	}
	return nil, false
}

// FindByKind returns the first provider of kind
func (d *Discovery) FindByKind(kind Kind) (Provider, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.providers {
		if p.Kind() == kind {
			return p, true
		}
	}
	return nil, false
}

// Selected applies the selection policy: the first injected provider.
// When it reports false, connecting must be disabled.
func (d *Discovery) Selected() (Provider, bool) {
	return d.FindByKind(KindInjected)
}

// Subscribe registers fn for discovery events and returns a cancel func
func (d *Discovery) Subscribe(fn func(DiscoveryEvent)) func() {
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

// subscribers must be called with d.mu held
func (d *Discovery) subscribers() []func(DiscoveryEvent) {
	out := make([]func(DiscoveryEvent), 0, len(d.subs))
	for i := 0; i < d.nextSub; i++ {
		if fn, ok := d.subs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

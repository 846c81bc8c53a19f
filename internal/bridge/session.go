// Package bridge connects a browser tab to its wallet connectivity state.
//
// Each tab opens a WebSocket. The browser side relays wallet announcements, wallet answers
// and account changes; the server side owns discovery, the connection state machine and the
// hydration guard, and pushes re-rendered wallet fragments back.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/insight-wallet/internal/hydration"
	"github.com/yourorg/insight-wallet/internal/metrics"
	"github.com/yourorg/insight-wallet/internal/validation"
	"github.com/yourorg/insight-wallet/internal/wallet"
)

// ErrSessionClosed is returned to callers waiting on a tab that went away
var ErrSessionClosed = errors.New("tab session closed")

// RenderFunc renders the wallet fragment for state. providerAvailable is false when no
// injected wallet has been announced.
type RenderFunc func(state wallet.State, providerAvailable bool) (string, error)

// SessionConfig carries the collaborators of a Session
type SessionConfig struct {
	// Store remembers the last provider of the browser session; optional
	Store   wallet.SessionStore
	Render  RenderFunc
	Metrics *metrics.Metrics
}

// Session is one browser tab. All browser events and scheduled callbacks run in order on
// a single event loop goroutine.
type Session struct {
	id        string
	conn      Conn
	render    RenderFunc
	discovery *wallet.Discovery
	manager   *wallet.Manager
	guard     *hydration.Guard
	metrics   *metrics.Metrics
	log       *logrus.Entry

	qmu   sync.Mutex
	queue []func()
	wake  chan struct{}

	pmu     sync.Mutex
	pending map[string]pendingRequest

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewSession creates the session of one tab. Run drives it.
func NewSession(conn Conn, cfg SessionConfig) *Session {
	id := uuid.NewString()
	log := logrus.WithField("tab", id)

	s := &Session{
		id:        id,
		conn:      conn,
		render:    cfg.Render,
		discovery: wallet.NewDiscovery(),
		guard:     hydration.New(),
		metrics:   cfg.Metrics,
		log:       log,
		wake:      make(chan struct{}, 1),
		pending:   make(map[string]pendingRequest),
		done:      make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.manager = wallet.NewManager(
		wallet.WithSessionStore(cfg.Store),
		wallet.WithMetrics(cfg.Metrics),
		wallet.WithLogger(log),
	)
	return s
}

// ID identifies the tab in logs
func (s *Session) ID() string {
	return s.id
}

// Manager exposes the tab's connection state
func (s *Session) Manager() *wallet.Manager {
	return s.manager
}

// Run processes the tab until the browser goes away or ctx ends
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()
	defer s.shutdown()

	s.metrics.SessionOpened()
	s.log.Debug("Tab session started")

	unsubState := s.manager.Subscribe(func(st wallet.State) {
		s.post(func() { s.push(st) })
	})
	defer unsubState()
	unsubDiscovery := s.discovery.Subscribe(s.onDiscovery)
	defer unsubDiscovery()

	readErr := make(chan error, 1)
	go s.readLoop(readErr)

	for {
		select {
		case <-s.wake:
			s.drain()
		case err := <-readErr:
			return err
		case <-s.ctx.Done():
			return nil
		}
	}
}

// Close ends the session
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) readLoop(errc chan<- error) {
	for {
		data, err := s.conn.Read(s.ctx)
		if err != nil {
			errc <- err
			return
		}
		s.post(func() { s.handle(data) })
	}
}

// post schedules fn on the event loop. It never blocks, so the loop may post to itself.
func (s *Session) post(fn func()) {
	s.qmu.Lock()
	s.queue = append(s.queue, fn)
	s.qmu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) drain() {
	for {
		s.qmu.Lock()
		if len(s.queue) == 0 {
			s.qmu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()

		fn()
	}
}

func (s *Session) shutdown() {
	s.cancel()
	close(s.done)
	s.wg.Wait()
	for _, p := range s.discovery.List() {
		s.metrics.ProviderWithdrawn(string(p.Kind()))
	}
	_ = s.conn.Close("session ended")
	s.metrics.SessionClosed()
	s.log.Debug("Tab session ended")
}

func (s *Session) handle(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.WithError(err).Warn("Dropping malformed bridge frame")
		return
	}

	var err error
	switch env.Type {
	case FrameMounted:
		s.guard.Attach(s.post)
		s.post(func() { s.push(s.manager.Current()) })
	case FrameAnnounce:
		err = s.handleAnnounce(data)
	case FrameWithdraw:
		var f withdrawFrame
		if err = json.Unmarshal(data, &f); err == nil {
			s.handleWithdraw(f.ID)
		}
	case FrameResponse:
		var f responseFrame
		if err = json.Unmarshal(data, &f); err == nil {
			s.resolve(f)
		}
	case FrameAccountsChanged:
		var f accountsFrame
		if err = json.Unmarshal(data, &f); err == nil {
			s.manager.HandleAccountsChanged(f.Provider, f.Accounts)
		}
	case FrameAction:
		var f actionFrame
		if err = json.Unmarshal(data, &f); err == nil {
			s.handleAction(f.Action)
		}
	default:
		s.log.WithField("type", env.Type).Warn("Dropping bridge frame of unknown type")
	}

	if err != nil {
		s.log.WithField("type", env.Type).WithError(err).Warn("Dropping malformed bridge frame")
	}
}

func (s *Session) handleAnnounce(data []byte) error {
	var f announceFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if err := validation.ValidateAnnouncement(f.Provider); err != nil {
		s.log.WithFields(logrus.Fields{
			"uuid": f.Provider.UUID,
			"rdns": f.Provider.RDNS,
		}).WithError(err).Warn("Dropping wallet provider announcement")
		return nil
	}

	kind := wallet.ParseKind(f.Kind)
	if s.discovery.Announce(&remoteProvider{session: s, info: f.Provider, kind: kind}) {
		s.metrics.ProviderAnnounced(string(kind))
	}

	s.goAsync(func(ctx context.Context) {
		s.manager.Restore(ctx, s.discovery)
	})
	return nil
}

func (s *Session) handleWithdraw(id string) {
	p, ok := s.discovery.Get(id)
	if !ok {
		return
	}
	s.discovery.Withdraw(id)
	s.metrics.ProviderWithdrawn(string(p.Kind()))
}

func (s *Session) handleAction(action string) {
	if !s.guard.IsReady() {
		s.log.WithField("action", action).Debug("Ignoring action before hydration")
		return
	}

	switch action {
	case ActionConnect:
		p, ok := s.discovery.Selected()
		if !ok {
			s.log.Info("Connect requested but no wallet provider is available")
			return
		}
		s.goAsync(func(ctx context.Context) {
			s.manager.Connect(ctx, p)
		})
	case ActionDisconnect:
		s.manager.Disconnect()
	default:
		s.log.WithField("action", action).Warn("Ignoring unknown wallet action")
	}
}

func (s *Session) onDiscovery(ev wallet.DiscoveryEvent) {
	if ev.Type == wallet.ProviderWithdrawn {
		s.manager.HandleProviderGone(ev.Provider.ID())
		s.failPending(ev.Provider.ID(), wallet.ErrProviderGone)
	}
	// availability of the connect button may have changed
	s.post(func() { s.push(s.manager.Current()) })
}

// push sends the wallet fragment for st, once the tab has hydrated
func (s *Session) push(st wallet.State) {
	if s.render == nil {
		return
	}
	frame := hydration.Gate(s.guard, (*Outbound)(nil), func() *Outbound {
		_, available := s.discovery.Selected()
		html, err := s.render(st, available)
		if err != nil {
			s.log.WithError(err).Error("Failed to render wallet fragment")
			return nil
		}
		return &Outbound{Type: FrameRender, Target: WalletTarget, HTML: html}
	})
	if frame == nil {
		return
	}
	if err := s.conn.Write(s.ctx, *frame); err != nil {
		s.log.WithError(err).Debug("Failed to push wallet fragment")
	}
}

// goAsync runs fn off the event loop; shutdown waits for it
func (s *Session) goAsync(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

func (s *Session) register(id, provider string) <-chan result {
	ch := make(chan result, 1)
	s.pmu.Lock()
	s.pending[id] = pendingRequest{provider: provider, ch: ch}
	s.pmu.Unlock()
	return ch
}

func (s *Session) unregister(id string) {
	s.pmu.Lock()
	delete(s.pending, id)
	s.pmu.Unlock()
}

func (s *Session) resolve(f responseFrame) {
	s.pmu.Lock()
	req, ok := s.pending[f.ID]
	delete(s.pending, f.ID)
	s.pmu.Unlock()

	if !ok {
		s.log.WithField("request", f.ID).Debug("Dropping response to unknown wallet request")
		return
	}
	req.ch <- decodeResponse(f)
}

func (s *Session) failPending(provider string, err error) {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	for id, req := range s.pending {
		if req.provider == provider {
			req.ch <- result{err: fmt.Errorf("request %s: %w", id, err)}
			delete(s.pending, id)
		}
	}
}

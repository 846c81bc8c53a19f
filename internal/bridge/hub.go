package bridge

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Hub tracks the live tab sessions so the server can end them on shutdown
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

// Serve runs a session for conn until it ends
func (h *Hub) Serve(ctx context.Context, conn Conn, cfg SessionConfig) {
	s := NewSession(conn, cfg)

	h.mu.Lock()
	h.sessions[s.ID()] = s
	h.wg.Add(1)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.sessions, s.ID())
		h.mu.Unlock()
		h.wg.Done()
	}()

	if err := s.Run(ctx); err != nil {
		logrus.WithField("tab", s.ID()).WithError(err).Debug("Tab session read ended")
	}
}

// Len returns the number of live sessions
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown closes every session and waits for them to finish or ctx to end
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	for _, s := range h.sessions {
		s.Close()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

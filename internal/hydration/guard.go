// Package hydration decides when connection-dependent output may be rendered.
//
// The server renders every page before any wallet is known, so that first render must
// never contain connection-dependent markup. A Guard starts not ready and flips exactly
// once, on the first tick the host runs after the page mounted in the browser.
package hydration

import "sync/atomic"

// Guard is a one-way ready flag
type Guard struct {
	ready    atomic.Bool
	attached atomic.Bool
}

// New creates a guard in the not-ready state
func New() *Guard {
	return &Guard{}
}

// IsReady reports whether connection-dependent output may be rendered
func (g *Guard) IsReady() bool {
	return g.ready.Load()
}

// Attach hooks the guard into the host lifecycle. schedule must run its argument after
// the current render pass, for example on the session event loop. Only the first call
// schedules anything.
func (g *Guard) Attach(schedule func(func())) {
	if !g.attached.CompareAndSwap(false, true) {
		return
	}
	schedule(g.MarkReady)
}

// MarkReady flips the guard. It never flips back.
func (g *Guard) MarkReady() {
	g.ready.Store(true)
}

// Gate returns placeholder until g is ready and render() afterwards.
// render is not called while the guard is not ready.
func Gate[T any](g *Guard, placeholder T, render func() T) T {
	if g == nil || !g.IsReady() {
		return placeholder
	}
	return render()
}

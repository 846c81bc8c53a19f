package hydration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuard_StartsNotReady(t *testing.T) {
	g := New()
	assert.False(t, g.IsReady())
	assert.Equal(t, "placeholder", Gate(g, "placeholder", func() string { return "wallet" }))
}

func TestGuard_AttachFlipsOnScheduledTick(t *testing.T) {
	g := New()

	var queued []func()
	schedule := func(fn func()) { queued = append(queued, fn) }

	g.Attach(schedule)
	assert.False(t, g.IsReady(), "attach alone does not flip the guard")
	assert.Len(t, queued, 1)

	g.Attach(schedule)
	assert.Len(t, queued, 1, "only the first attach schedules")

	queued[0]()
	assert.True(t, g.IsReady())
}

func TestGuard_Monotonic(t *testing.T) {
	g := New()
	g.MarkReady()
	g.MarkReady()
	assert.True(t, g.IsReady())
}

func TestGate(t *testing.T) {
	g := New()
	rendered := 0
	render := func() string {
		rendered++
		return "<button>Connect Wallet</button>"
	}

	assert.Equal(t, "<div></div>", Gate(g, "<div></div>", render))
	assert.Zero(t, rendered, "render must not run before hydration")

	g.MarkReady()
	assert.Equal(t, "<button>Connect Wallet</button>", Gate(g, "<div></div>", render))
	assert.Equal(t, 1, rendered)

	assert.Equal(t, 0, Gate[int](nil, 0, func() int { return 1 }))
}

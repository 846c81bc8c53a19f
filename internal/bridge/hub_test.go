package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_ShutdownClosesSessions(t *testing.T) {
	h := NewHub()
	conn := newFakeConn()

	served := make(chan struct{})
	go func() {
		h.Serve(context.Background(), conn, SessionConfig{Render: testRender})
		close(served)
	}()
	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))

	<-served
	assert.Zero(t, h.Len())
	select {
	case <-conn.closed:
	default:
		t.Fatal("browser connection was not closed")
	}
}

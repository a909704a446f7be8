package realtime_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-dispatch/internal/infrastructure/realtime"
)

// newServerSocket upgrades a real websocket pair and hands back the server
// side, which is what a Connection wraps in production.
func newServerSocket(t *testing.T) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return <-accepted
}

func TestSendAfterCloseReturnsError(t *testing.T) {
	conn := realtime.NewConnection("alice", newServerSocket(t))
	conn.Start()
	conn.Close(websocket.CloseNormalClosure, "done")

	// Live-query callbacks keep firing on their own goroutines after a
	// session is torn down, so a late Send has to fail, never panic. Push
	// well past the send buffer to prove no path blocks or crashes.
	require.NotPanics(t, func() {
		for i := 0; i < 300; i++ {
			assert.Error(t, conn.Send([]byte("late")))
		}
	})
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := realtime.NewConnection("alice", newServerSocket(t))
	conn.Start()

	require.NotPanics(t, func() {
		conn.Close(websocket.CloseNormalClosure, "first")
		conn.Close(websocket.CloseNormalClosure, "second")
	})
}

func TestConcurrentSendAndCloseDoesNotPanic(t *testing.T) {
	conn := realtime.NewConnection("alice", newServerSocket(t))
	conn.Start()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = conn.Send([]byte("payload"))
			}
		}()
	}
	conn.Close(websocket.CloseGoingAway, "shutting down")
	wg.Wait()
}

func TestAttachReplacedSessionStillAcceptsLateSends(t *testing.T) {
	router := realtime.NewRouter()
	t.Cleanup(router.Close)

	first := realtime.NewConnection("alice", newServerSocket(t))
	router.Attach(first)

	second := realtime.NewConnection("alice", newServerSocket(t))
	router.Attach(second)

	// The replaced session is closed by Attach while callbacks bound to it
	// may still be in flight.
	require.NotPanics(t, func() {
		assert.Error(t, first.Send([]byte("stale")))
	})
	assert.NoError(t, second.Send([]byte("fresh")))
}

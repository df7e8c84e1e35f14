package wsadapter

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies no readLoop goroutine outlives its test: every test in
// this package defers Adapter.Close, which closes the underlying
// connection and unblocks conn.ReadMessage, letting readLoop return.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	)
}

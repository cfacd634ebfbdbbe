package rpcconn

import (
	"testing"
	"time"
)

// waitFor polls cond until it returns true or timeout elapses, failing the
// test in the latter case. Used to synchronize on state mutated by driver
// goroutines without assuming a fixed number of scheduler ticks.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

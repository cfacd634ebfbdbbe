// Package reactor defines the event-driven I/O substrate that the
// connection manager runs on top of: socket dialing and timer scheduling,
// both as deferred-style operations.
//
// The manager never touches sockets or timers directly — it only talks to
// this interface, the same separation drawn between a connection manager
// and the transport runtime underneath it.
package reactor

import (
	"context"
	"net"
	"time"
)

// RawConn is the byte-level connection a Reactor hands back from Connect.
// The manager never reads or writes it directly; it is immediately handed
// to a protocol.ConnectionFactory to be wrapped.
type RawConn = net.Conn

// TimerResult is delivered when a scheduled timer resolves. Canceled is set
// when the timer resolved early because the reactor stopped rather than
// because the delay elapsed — the driver uses it to distinguish "time to
// retry" from "give up, we're shutting down".
type TimerResult struct {
	Canceled bool
}

// Reactor is the external event loop the connection manager depends on. It
// is supplied at construction and is never created by the manager itself.
type Reactor interface {
	// Running reports whether the reactor is currently active.
	Running() bool

	// Start brings the reactor up. Idempotent: calling Start while already
	// running is a no-op.
	Start(ctx context.Context) error

	// Stop brings the reactor down. Idempotent: calling Stop while already
	// stopped is a no-op.
	Stop(ctx context.Context) error

	// Connect opens a raw connection to host:port, bounded by timeout.
	Connect(ctx context.Context, host string, port int, timeout time.Duration) (RawConn, error)

	// ScheduleTimer returns a channel that receives exactly one TimerResult
	// once d has elapsed, or earlier with Canceled set true if the reactor
	// is stopped first.
	ScheduleTimer(ctx context.Context, d time.Duration) <-chan TimerResult
}

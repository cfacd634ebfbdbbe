// Package rpcconn is the RPC client connection manager: it maintains a
// persistent, message-framed connection to each of a fixed list of remote
// endpoints, dispatches outbound requests across them with a pluggable
// routing strategy, recovers from connection failures via exponential
// backoff, and retries individual requests when the underlying connection
// is lost.
//
// The manager owns none of the hard parts itself — the I/O reactor, the
// wire codec, and the per-connection handshake are all supplied from
// outside (see internal/reactor, internal/protocol, internal/grpcconn).
// This package is the state machine that ties them together.
package rpcconn

import "fmt"

// Endpoint is a (host, port) pair the client targets. Endpoints are
// immutable once the client is constructed and are treated as a multiset —
// the same host:port may appear more than once in the configured list,
// each occurrence getting its own connection entry and reconnection driver.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// state is a ConnectionEntry's lifecycle stage: idle, connecting, open,
// closed, terminated. The backoff wait between failed attempts is a
// sub-phase of Connecting rather than a sixth public state; see DESIGN.md.
type state int

const (
	stateIdle state = iota
	stateConnecting
	stateOpen
	stateClosed
	stateTerminated
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	case stateClosed:
		return "closed"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// lifecycle is the client-wide state, separate from any one entry's state.
type lifecycle int

const (
	lifecycleUnstarted lifecycle = iota
	lifecycleStarting
	lifecycleStarted
	lifecycleStopping
	lifecycleStopped
)

// Package protocol declares the subclass hook surface the connection
// manager depends on: the wrapped, message-framed connection it sends
// requests over, and the factory that produces one from a raw connection.
//
// Everything here is a contract the manager consumes — the wire codec and
// framing are deliberately not implemented in this package; see
// internal/grpcconn for one concrete implementation.
package protocol

import (
	"context"
	"errors"

	"github.com/arkeep-io/rpcconn/internal/reactor"
)

// ErrConnectionClosed is the distinguishable error kind SendMessage returns
// when the underlying connection dropped. The manager retries a request
// that fails this way against a live connection freshly chosen by the
// routing strategy (possibly the same one); any other error propagates
// straight to the caller.
var ErrConnectionClosed = errors.New("protocol: connection closed")

// CloseListener is invoked at most once when a ProtocolConnection goes
// away. A nil cause means a clean close (no reconnect); a non-nil cause
// means the connection dropped unexpectedly (reconnect).
type CloseListener func(cause error)

// ProtocolConnection is a message-framed connection produced by a
// ConnectionFactory. The manager never parses its bytes — it only calls
// SendMessage and listens for closure.
type ProtocolConnection interface {
	Host() string
	Port() int

	// SendMessage sends payload and waits for the matching response. It may
	// fail with an error wrapping ErrConnectionClosed, or any other error.
	SendMessage(ctx context.Context, payload []byte) ([]byte, error)

	// OnClosed registers the (single) listener fired when this connection
	// is no longer usable. Replaces any previously registered listener.
	OnClosed(listener CloseListener)

	Close() error
}

// ConnectionFactory wraps a raw connection into a ProtocolConnection. This
// is the required connection-wrapping hook every embedder must supply.
type ConnectionFactory interface {
	CreateConnection(raw reactor.RawConn, host string, port int) (ProtocolConnection, error)
}

// Initializer runs an optional handshake on a freshly wrapped connection
// before the driver considers it open. A failure here is treated exactly
// like a failed Connect: the driver backs off and retries. This is the
// optional handshake hook an embedder may supply.
type Initializer interface {
	InitializeConnection(ctx context.Context, conn ProtocolConnection) error
}

// InitializerFunc adapts a plain function to the Initializer interface.
type InitializerFunc func(ctx context.Context, conn ProtocolConnection) error

func (f InitializerFunc) InitializeConnection(ctx context.Context, conn ProtocolConnection) error {
	return f(ctx, conn)
}

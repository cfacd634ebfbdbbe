package rpcconn

import (
	"errors"
	"fmt"
)

// ErrConnection is the umbrella connection-error kind. Check a specific
// cause with errors.Is; check the category with errors.Is(err, ErrConnection).
var ErrConnection = errors.New("rpcconn: connection error")

var (
	// ErrNotStarted is returned by SendRequest when the client's lifecycle
	// is not started.
	ErrNotStarted = fmt.Errorf("%w: client is not started", ErrConnection)

	// ErrNoLiveConnections is returned by SendRequest when the live set is
	// empty, or the routing strategy declines to pick a connection.
	ErrNoLiveConnections = fmt.Errorf("%w: no live connections", ErrConnection)

	// ErrReactorStopped is returned by Start (and by any first-success
	// completion still outstanding) when the reactor stops before every
	// endpoint has connected at least once.
	ErrReactorStopped = fmt.Errorf("%w: io reactor stopped while connecting", ErrConnection)

	// ErrAlreadyStarted is returned by Start when called more than once.
	ErrAlreadyStarted = errors.New("rpcconn: client already started")
)

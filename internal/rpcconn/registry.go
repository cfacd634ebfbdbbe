package rpcconn

import (
	"sync"

	"github.com/arkeep-io/rpcconn/internal/protocol"
)

// ConnectionEntry is a point-in-time snapshot of one configured endpoint's
// connection state, safe to read after it is returned.
type ConnectionEntry struct {
	Endpoint Endpoint
	State    string
	Attempts int
}

// entry is the live, mutable record backing a ConnectionEntry. One entry is
// owned one-to-one by the client for the endpoint's lifetime; it never
// changes identity, only state.
type entry struct {
	endpoint Endpoint
	state    state
	attempts int
	conn     protocol.ProtocolConnection
}

// registry is the fixed-membership set of connection entries, one per
// configured endpoint (endpoints are a multiset: duplicates get distinct
// entries). The live set — entries with state == open — is what the
// routing strategy sees.
type registry struct {
	mu      sync.RWMutex
	entries []*entry
}

func newRegistry(endpoints []Endpoint) *registry {
	entries := make([]*entry, len(endpoints))
	for i, ep := range endpoints {
		entries[i] = &entry{endpoint: ep, state: stateIdle}
	}
	return &registry{entries: entries}
}

func (r *registry) setState(i int, s state, attempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[i].state = s
	if attempts >= 0 {
		r.entries[i].attempts = attempts
	}
}

func (r *registry) setConn(i int, c protocol.ProtocolConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[i].conn = c
}

// liveConns returns the protocol connections of every entry currently in
// the open state, in registry order. This is recomputed on every call —
// the live set is never cached.
func (r *registry) liveConns() []protocol.ProtocolConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.ProtocolConnection, 0, len(r.entries))
	for _, e := range r.entries {
		if e.state == stateOpen && e.conn != nil {
			out = append(out, e.conn)
		}
	}
	return out
}

func (r *registry) liveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.entries {
		if e.state == stateOpen {
			n++
		}
	}
	return n
}

// snapshot returns a copy of every entry's current state, for inspection
// and testing.
func (r *registry) snapshot() []ConnectionEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ConnectionEntry, len(r.entries))
	for i, e := range r.entries {
		out[i] = ConnectionEntry{
			Endpoint: e.endpoint,
			State:    e.state.String(),
			Attempts: e.attempts,
		}
	}
	return out
}

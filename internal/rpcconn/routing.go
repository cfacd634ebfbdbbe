package rpcconn

import (
	"math/rand"

	"github.com/arkeep-io/rpcconn/internal/protocol"
)

// Strategy picks one live connection for an outbound request, or nil to
// mean "no connection available" (the caller's request then fails with
// ErrNoLiveConnections). Strategies are stateless by default; a stateful
// one is the caller's problem to make concurrency-safe.
type Strategy interface {
	Choose(live []protocol.ProtocolConnection, payload []byte) protocol.ProtocolConnection
}

// UniformRandomStrategy is the default routing strategy: it picks uniformly
// at random among the currently live connections.
type UniformRandomStrategy struct{}

// NewUniformRandomStrategy returns the default strategy.
func NewUniformRandomStrategy() *UniformRandomStrategy {
	return &UniformRandomStrategy{}
}

func (UniformRandomStrategy) Choose(live []protocol.ProtocolConnection, _ []byte) protocol.ProtocolConnection {
	if len(live) == 0 {
		return nil
	}
	return live[rand.Intn(len(live))]
}

// StrategyFunc adapts a plain function to the Strategy interface.
type StrategyFunc func(live []protocol.ProtocolConnection, payload []byte) protocol.ProtocolConnection

func (f StrategyFunc) Choose(live []protocol.ProtocolConnection, payload []byte) protocol.ProtocolConnection {
	return f(live, payload)
}

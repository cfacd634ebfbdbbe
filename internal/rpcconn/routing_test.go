package rpcconn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkeep-io/rpcconn/internal/protocol"
)

type namedConn struct {
	name string
}

func (c *namedConn) Host() string { return c.name }
func (c *namedConn) Port() int    { return 0 }
func (c *namedConn) SendMessage(ctx context.Context, payload []byte) ([]byte, error) {
	return payload, nil
}
func (c *namedConn) OnClosed(protocol.CloseListener) {}
func (c *namedConn) Close() error                    { return nil }

// TestUniformRandomStrategy_Distribution exercises the default strategy's
// documented fairness property: over many draws from a fixed live set, each
// connection's share converges to 1/N within a generous tolerance.
func TestUniformRandomStrategy_Distribution(t *testing.T) {
	live := []protocol.ProtocolConnection{
		&namedConn{name: "a"},
		&namedConn{name: "b"},
		&namedConn{name: "c"},
	}

	strategy := NewUniformRandomStrategy()
	counts := map[string]int{}
	const trials = 1000
	for i := 0; i < trials; i++ {
		chosen := strategy.Choose(live, nil)
		require.NotNil(t, chosen)
		counts[chosen.Host()]++
	}

	want := 1.0 / float64(len(live))
	for _, conn := range live {
		got := float64(counts[conn.Host()]) / float64(trials)
		require.InDeltaf(t, want, got, 0.1, "host %s got share %f, want ~%f", conn.Host(), got, want)
	}
}

func TestUniformRandomStrategy_EmptyLiveSet(t *testing.T) {
	strategy := NewUniformRandomStrategy()
	require.Nil(t, strategy.Choose(nil, nil))
}

func TestStrategyFunc_Adapter(t *testing.T) {
	live := []protocol.ProtocolConnection{&namedConn{name: "only"}}
	var called bool
	strategy := StrategyFunc(func(live []protocol.ProtocolConnection, payload []byte) protocol.ProtocolConnection {
		called = true
		return live[0]
	})

	got := strategy.Choose(live, []byte("x"))
	require.True(t, called)
	require.Equal(t, "only", got.Host())
}

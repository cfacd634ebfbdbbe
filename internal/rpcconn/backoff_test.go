package rpcconn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDelay_Sequence(t *testing.T) {
	base := 7 * time.Second
	want := []time.Duration{
		7 * time.Second, 14 * time.Second, 28 * time.Second, 56 * time.Second, 70 * time.Second,
		70 * time.Second, 70 * time.Second,
	}
	for attempt, d := range want {
		got := backoffDelay(base, attempt+1)
		require.Equalf(t, d, got, "attempt %d", attempt+1)
	}
}

func TestBackoffDelay_CapIsTenTimesBase(t *testing.T) {
	base := 2 * time.Second
	require.Equal(t, 20*time.Second, backoffDelay(base, 100))
}

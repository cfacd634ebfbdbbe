package grpcconn

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingleUseDialer_ReturnsConnOnce(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	d := &singleUseDialer{conn: client}

	got, err := d.dial(context.Background(), "ignored")
	require.NoError(t, err)
	require.Same(t, client, got)

	_, err = d.dial(context.Background(), "ignored")
	require.Error(t, err)
}

// Package grpcconn is a reference protocol.ProtocolConnection implementation
// built on google.golang.org/grpc: it reuses a reactor-dialed net.Conn as the
// transport for a single long-lived bidirectional-streaming RPC and frames
// every SendMessage call as one request/response pair on that stream.
//
// The manager in internal/rpcconn never imports this package directly — it
// is wired in by cmd/rpcagent, exactly the way the connection-wrapping hook
// is meant to be supplied by the embedding application.
package grpcconn

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered with grpc's encoding registry and selected per-call
// via grpc.CallContentSubtype, so the stream never goes through protobuf
// marshaling — every message is already the raw byte slice the connection
// manager hands it.
const codecName = "rpcconn-raw"

func init() {
	encoding.RegisterCodec(rawCodec{})
}

// rawMessage is the wire type exchanged on the stream. grpc's codec
// interface requires a concrete message type; wrapping []byte in a named
// type avoids colliding with grpc's own byte-slice fast path.
type rawMessage []byte

// rawCodec marshals/unmarshals rawMessage as its own bytes, unchanged. This
// is the same "bring your own framing" trick used by gRPC's proxy and
// passthrough implementations — see google.golang.org/grpc/encoding.Codec.
type rawCodec struct{}

func (rawCodec) Name() string { return codecName }

func (rawCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(*rawMessage)
	if !ok {
		return nil, fmt.Errorf("grpcconn: codec got %T, want *rawMessage", v)
	}
	return *m, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(*rawMessage)
	if !ok {
		return fmt.Errorf("grpcconn: codec got %T, want *rawMessage", v)
	}
	*m = append((*m)[:0], data...)
	return nil
}

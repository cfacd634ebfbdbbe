package grpcconn

import (
	"context"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/arkeep-io/rpcconn/internal/protocol"
	"github.com/arkeep-io/rpcconn/internal/reactor"
)

// StreamMethod is the fully-qualified gRPC method name the connection opens
// a single bidirectional stream against for the life of the connection. It
// is not backed by generated protobuf service code — see the package doc —
// so whatever serves it on the other end just needs to speak this method
// name and the raw-bytes framing above.
const StreamMethod = "/rpcconn.Transport/Exchange"

var streamDesc = &grpc.StreamDesc{
	StreamName:    "Exchange",
	ServerStreams: true,
	ClientStreams: true,
}

// Factory is a protocol.ConnectionFactory backed by grpc.ClientConn. Each
// raw connection the reactor hands it is wrapped exactly once — Factory
// never dials on its own.
type Factory struct{}

// NewFactory returns the default gRPC-backed connection factory.
func NewFactory() *Factory { return &Factory{} }

func (Factory) CreateConnection(raw reactor.RawConn, host string, port int) (protocol.ProtocolConnection, error) {
	d := &singleUseDialer{conn: raw}

	cc, err := grpc.NewClient(
		fmt.Sprintf("%s:%d", host, port),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(d.dial),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("grpcconn: new client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := cc.NewStream(ctx, streamDesc, StreamMethod)
	if err != nil {
		cancel()
		cc.Close()
		return nil, fmt.Errorf("grpcconn: open stream: %w", err)
	}

	c := &Conn{
		host:      host,
		port:      port,
		cc:        cc,
		stream:    stream,
		streamCtx: ctx,
		cancel:    cancel,
	}
	go c.watchState()
	return c, nil
}

// singleUseDialer hands grpc the already-connected net.Conn exactly once.
// grpc's own reconnect logic would otherwise try to re-dial through this
// dialer on transient failure; returning an error there instead lets the
// ClientConn settle into TransientFailure/Shutdown, which watchState turns
// into a CloseListener callback — reconnection itself stays the reconnection
// driver's job (internal/rpcconn/driver.go), not grpc's.
type singleUseDialer struct {
	mu   sync.Mutex
	conn net.Conn
	used bool
}

func (d *singleUseDialer) dial(ctx context.Context, addr string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.used {
		return nil, fmt.Errorf("grpcconn: connection already consumed, no redial")
	}
	d.used = true
	return d.conn, nil
}

// Conn is the gRPC-backed protocol.ProtocolConnection.
type Conn struct {
	host string
	port int

	cc        *grpc.ClientConn
	stream    grpc.ClientStream
	streamCtx context.Context
	cancel    context.CancelFunc

	mu          sync.Mutex
	listener    protocol.CloseListener
	closed      bool
	closeFired  bool
	pendingLock sync.Mutex // serializes SendMessage; the stream is one request in flight at a time
}

func (c *Conn) Host() string { return c.host }
func (c *Conn) Port() int    { return c.port }

// SendMessage writes payload onto the shared stream and waits for the next
// message back. Only one call may be in flight at a time per connection;
// concurrent calls on the same connection wait on pendingLock and run one
// after another on the stream.
func (c *Conn) SendMessage(ctx context.Context, payload []byte) ([]byte, error) {
	c.pendingLock.Lock()
	defer c.pendingLock.Unlock()

	req := rawMessage(payload)
	if err := c.stream.SendMsg(&req); err != nil {
		return nil, c.translateError(err)
	}

	var resp rawMessage
	if err := c.stream.RecvMsg(&resp); err != nil {
		return nil, c.translateError(err)
	}
	return []byte(resp), nil
}

// translateError maps a stream failure to protocol.ErrConnectionClosed
// whenever the underlying transport is the reason, so callers (and
// internal/rpcconn.Client.SendRequest) can tell "connection gone, pick
// another one" apart from an application-level RPC error.
func (c *Conn) translateError(err error) error {
	if err == nil {
		return nil
	}
	if c.cc.GetState() == connectivity.Shutdown || c.cc.GetState() == connectivity.TransientFailure {
		return fmt.Errorf("grpcconn: %w: %v", protocol.ErrConnectionClosed, err)
	}
	return fmt.Errorf("grpcconn: send message: %w", err)
}

func (c *Conn) OnClosed(listener protocol.CloseListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = listener
}

func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	// Close the ClientConn before cancelling streamCtx, so watchState sees
	// the Shutdown transition rather than exiting on the cancelled context.
	err := c.cc.Close()
	c.cancel()
	return err
}

// watchState polls grpc's connectivity state and fires the close listener
// (with a nil cause, since this is our own Close — a clean shutdown) the
// moment the ClientConn reaches Shutdown, or (with a non-nil cause) the
// moment it reaches TransientFailure, which for a single-use dialer means
// the underlying net.Conn broke and grpc has given up trying to redial it.
func (c *Conn) watchState() {
	state := c.cc.GetState()
	for {
		if !c.cc.WaitForStateChange(c.streamCtx, state) {
			return
		}
		state = c.cc.GetState()

		switch state {
		case connectivity.TransientFailure:
			c.fireClosed(fmt.Errorf("grpcconn: transport to %s:%d failed", c.host, c.port))
			return
		case connectivity.Shutdown:
			c.mu.Lock()
			wasClosed := c.closed
			c.mu.Unlock()
			if wasClosed {
				c.fireClosed(nil)
			} else {
				c.fireClosed(fmt.Errorf("grpcconn: transport to %s:%d shut down", c.host, c.port))
			}
			return
		}
	}
}

func (c *Conn) fireClosed(cause error) {
	c.mu.Lock()
	if c.closeFired {
		c.mu.Unlock()
		return
	}
	c.closeFired = true
	l := c.listener
	c.mu.Unlock()

	if l != nil {
		l(cause)
	}
}

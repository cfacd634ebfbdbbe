package rpcconn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arkeep-io/rpcconn/internal/protocol"
	"github.com/arkeep-io/rpcconn/internal/reactor"
)

// DefaultConnectionTimeout is used when Config.ConnectionTimeout is zero.
const DefaultConnectionTimeout = 5 * time.Second

// Config parameterizes a Client. Endpoints (at least one), Reactor, Logger
// and Factory are required; everything else has a sane default.
type Config struct {
	// Endpoints is the fixed host list the client connects to. At least
	// one entry is required; duplicates are permitted (each gets its own
	// connection and driver).
	Endpoints []Endpoint

	// Reactor is the external I/O event loop. Required.
	Reactor reactor.Reactor

	// Logger receives debug/info/warn records. Required.
	Logger *zap.Logger

	// ConnectionTimeout bounds each connect attempt and seeds the backoff
	// schedule. Defaults to DefaultConnectionTimeout.
	ConnectionTimeout time.Duration

	// Factory wraps each raw connection into a protocol.ProtocolConnection.
	// Required.
	Factory protocol.ConnectionFactory

	// Initializer optionally runs a handshake on every freshly wrapped
	// connection before it is considered open.
	Initializer protocol.Initializer

	// Strategy picks one live connection per outbound request. Defaults to
	// UniformRandomStrategy.
	Strategy Strategy
}

func (c Config) validate() error {
	if len(c.Endpoints) == 0 {
		return errors.New("rpcconn: at least one endpoint is required")
	}
	if c.Reactor == nil {
		return errors.New("rpcconn: Reactor is required")
	}
	if c.Logger == nil {
		return errors.New("rpcconn: Logger is required")
	}
	if c.Factory == nil {
		return errors.New("rpcconn: Factory is required")
	}
	if c.ConnectionTimeout < 0 {
		return errors.New("rpcconn: ConnectionTimeout must not be negative")
	}
	return nil
}

// Client is the RPC client connection manager facade: it owns the registry
// and one reconnection driver per configured endpoint, and exposes
// Start/Stop/SendRequest/Connected to callers.
type Client struct {
	cfg      Config
	logger   *zap.Logger
	registry *registry
	drivers  []*driver

	mu           sync.Mutex
	lifecycle    lifecycle
	driverCancel context.CancelFunc
}

// New constructs a Client. Call Start before sending requests.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.ConnectionTimeout == 0 {
		cfg.ConnectionTimeout = DefaultConnectionTimeout
	}
	if cfg.Strategy == nil {
		cfg.Strategy = NewUniformRandomStrategy()
	}

	return &Client{
		cfg:       cfg,
		logger:    cfg.Logger.Named("rpcconn"),
		registry:  newRegistry(cfg.Endpoints),
		lifecycle: lifecycleUnstarted,
	}, nil
}

// Start brings the reactor up (if not already running), launches one
// reconnection driver per endpoint, and blocks until every driver has
// connected at least once. It fails with ErrReactorStopped if the reactor
// stops before that happens. Start may only be called once.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.lifecycle != lifecycleUnstarted {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.lifecycle = lifecycleStarting
	c.mu.Unlock()

	if !c.cfg.Reactor.Running() {
		if err := c.cfg.Reactor.Start(ctx); err != nil {
			c.mu.Lock()
			c.lifecycle = lifecycleStopped
			c.mu.Unlock()
			return fmt.Errorf("rpcconn: reactor start: %w", err)
		}
	}

	driverCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.driverCancel = cancel
	c.mu.Unlock()

	c.drivers = make([]*driver, len(c.registry.entries))
	for i, e := range c.registry.entries {
		d := newDriver(i, e.endpoint, c.registry, c.cfg.Reactor, c.cfg.Factory, c.cfg.Initializer, c.cfg.ConnectionTimeout, c.logger)
		c.drivers[i] = d
		go d.run(driverCtx)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range c.drivers {
		d := d
		g.Go(func() error {
			select {
			case err := <-d.firstSuccess:
				return err
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	if err := g.Wait(); err != nil {
		c.mu.Lock()
		c.lifecycle = lifecycleStopped
		c.mu.Unlock()
		cancel()
		if errors.Is(err, ErrReactorStopped) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrReactorStopped, err)
	}

	c.mu.Lock()
	c.lifecycle = lifecycleStarted
	c.mu.Unlock()
	return nil
}

// Stop transitions the client to stopping, cancels every driver, and stops
// the reactor. Idempotent: calling Stop more than once is a no-op. Calling
// Stop before Start still stops the reactor and leaves the client stopped,
// so a later Start returns ErrAlreadyStarted.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.lifecycle == lifecycleStopped || c.lifecycle == lifecycleStopping {
		c.mu.Unlock()
		return nil
	}
	c.lifecycle = lifecycleStopping
	cancel := c.driverCancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	err := c.cfg.Reactor.Stop(ctx)

	c.mu.Lock()
	c.lifecycle = lifecycleStopped
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("rpcconn: reactor stop: %w", err)
	}
	return nil
}

// Connected reports whether the client is started and has at least one
// live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	started := c.lifecycle == lifecycleStarted
	c.mu.Unlock()

	return started && c.registry.liveCount() > 0
}

// SendRequest dispatches payload over a live connection chosen by the
// configured routing strategy. If the live set is empty, or the client is
// not started, it fails immediately with ErrNoLiveConnections /
// ErrNotStarted. A response that fails because the connection closed is
// retried (unboundedly) against a freshly chosen connection; any other
// failure propagates to the caller unchanged.
func (c *Client) SendRequest(ctx context.Context, payload []byte) ([]byte, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		c.mu.Lock()
		started := c.lifecycle == lifecycleStarted
		c.mu.Unlock()
		if !started {
			return nil, ErrNotStarted
		}

		live := c.registry.liveConns()
		if len(live) == 0 {
			return nil, ErrNoLiveConnections
		}

		conn := c.cfg.Strategy.Choose(live, payload)
		if conn == nil {
			return nil, ErrNoLiveConnections
		}

		resp, err := conn.SendMessage(ctx, payload)
		if err == nil {
			return resp, nil
		}

		if errors.Is(err, protocol.ErrConnectionClosed) {
			c.logger.Warn("request failed because the connection closed, retrying")
			continue
		}

		c.logger.Warn(fmt.Sprintf("request failed: %v", err))
		return nil, err
	}
}

// Snapshot returns the current state of every configured endpoint's
// connection entry, for diagnostics and tests.
func (c *Client) Snapshot() []ConnectionEntry {
	return c.registry.snapshot()
}

package rpcconn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkeep-io/rpcconn/internal/protocol"
	"github.com/arkeep-io/rpcconn/internal/reactor"
)

// driver is the per-endpoint reconnection state machine — the hardest
// subcomponent in this package. One driver owns exactly one registry entry
// for the lifetime of the client.
//
//	idle ──start──▶ connecting ──success──▶ open
//	                 ▲  │                     │
//	                 │  │ failure             │ close listener fires
//	                 │  ▼                     ▼
//	                 │ (backoff wait)       closed ──clean close──▶ terminated
//	                 │  │                     │
//	                 ├──┘ timer elapses       │ unexpected close
//	                 │                        │ (immediate, attempt #1)
//	                 └────────────────────────┘
//
//	A stopped reactor or a cancelled ctx moves the driver to terminated from
//	connecting, the backoff wait, or open.
type driver struct {
	index          int
	endpoint       Endpoint
	registry       *registry
	reactor        reactor.Reactor
	factory        protocol.ConnectionFactory
	initializer    protocol.Initializer
	connectTimeout time.Duration
	logger         *zap.Logger

	// connID is a stable identifier for this registry slot, generated once
	// and reused across every reconnect attempt for the endpoint's lifetime,
	// so log lines for the same slot can be correlated across restarts of
	// the underlying transport.
	connID uuid.UUID

	firstSuccessOnce sync.Once
	firstSuccess     chan error
}

func newDriver(index int, endpoint Endpoint, reg *registry, r reactor.Reactor, factory protocol.ConnectionFactory, init protocol.Initializer, timeout time.Duration, logger *zap.Logger) *driver {
	return &driver{
		index:          index,
		endpoint:       endpoint,
		registry:       reg,
		reactor:        r,
		factory:        factory,
		initializer:    init,
		connectTimeout: timeout,
		logger:         logger,
		connID:         uuid.New(),
		firstSuccess:   make(chan error, 1),
	}
}

// signalFirstSuccess fulfills the driver's first-success completion exactly
// once. Later calls (e.g. the success of a reconnect after an unexpected
// close, or terminate after the first success was already reported) are
// no-ops.
func (d *driver) signalFirstSuccess(err error) {
	d.firstSuccessOnce.Do(func() {
		d.firstSuccess <- err
		close(d.firstSuccess)
	})
}

// run drives the state machine until ctx is cancelled or the endpoint is
// cleanly closed. It is started once per driver and never restarted.
func (d *driver) run(ctx context.Context) {
	attempt := 0

	for {
		if ctx.Err() != nil || !d.reactor.Running() {
			d.terminate()
			return
		}

		attempt++
		d.registry.setState(d.index, stateConnecting, attempt)
		d.logger.Debug(fmt.Sprintf("connecting to %s", d.endpoint), zap.String("conn_id", d.connID.String()))

		conn, closedCh, err := d.attemptConnect(ctx)
		if err != nil {
			delay := backoffDelay(d.connectTimeout, attempt)
			d.logger.Warn(
				fmt.Sprintf("failed connecting to %s, will try again in %ds", d.endpoint, int(delay.Seconds())),
				zap.String("conn_id", d.connID.String()),
				zap.Error(err),
			)

			select {
			case res := <-d.reactor.ScheduleTimer(ctx, delay):
				if res.Canceled || !d.reactor.Running() {
					d.terminate()
					return
				}
			case <-ctx.Done():
				d.terminate()
				return
			}

			continue
		}

		// Connected. Reset the backoff schedule and hand the connection to
		// the registry before announcing first success.
		attempt = 0
		d.registry.setState(d.index, stateOpen, 0)
		d.registry.setConn(d.index, conn)
		d.logger.Info(fmt.Sprintf("connected to %s", d.endpoint), zap.String("conn_id", d.connID.String()))
		d.signalFirstSuccess(nil)

		cause, stopped := d.awaitClose(ctx, closedCh)
		d.registry.setConn(d.index, nil)

		if stopped {
			d.registry.setState(d.index, stateTerminated, -1)
			return
		}

		d.registry.setState(d.index, stateClosed, -1)

		if cause == nil {
			d.logger.Info(fmt.Sprintf("connection to %s closed", d.endpoint))
			d.registry.setState(d.index, stateTerminated, -1)
			return
		}

		d.logger.Warn(fmt.Sprintf("connection to %s closed unexpectedly: %v", d.endpoint, cause))
		// attempt is 0 here, so the loop's next attempt++ makes the
		// reconnect attempt #1 — an immediate retry, no backoff delay.
	}
}

// attemptConnect performs one full connect attempt: reactor dial, wrap,
// register the close listener, then run the optional handshake. A failure
// at any of these three steps is treated identically — a connect failure
// that triggers backoff.
func (d *driver) attemptConnect(ctx context.Context) (protocol.ProtocolConnection, <-chan error, error) {
	raw, err := d.reactor.Connect(ctx, d.endpoint.Host, d.endpoint.Port, d.connectTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}

	conn, err := d.factory.CreateConnection(raw, d.endpoint.Host, d.endpoint.Port)
	if err != nil {
		return nil, nil, fmt.Errorf("create connection: %w", err)
	}

	closedCh := make(chan error, 1)
	conn.OnClosed(func(cause error) {
		select {
		case closedCh <- cause:
		default:
		}
	})

	if d.initializer != nil {
		if err := d.initializer.InitializeConnection(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("initialize connection: %w", err)
		}
	}

	return conn, closedCh, nil
}

// awaitClose waits for the connection's close listener to fire, or for ctx
// to be cancelled (client stop while the connection was open). stopped
// distinguishes the latter so run() can skip straight to terminated
// without logging a close that never really happened on the wire.
func (d *driver) awaitClose(ctx context.Context, closedCh <-chan error) (cause error, stopped bool) {
	select {
	case cause = <-closedCh:
		return cause, false
	case <-ctx.Done():
		return nil, true
	}
}

func (d *driver) terminate() {
	d.registry.setState(d.index, stateTerminated, -1)
	d.signalFirstSuccess(ErrReactorStopped)
}

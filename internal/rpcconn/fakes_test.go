package rpcconn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arkeep-io/rpcconn/internal/protocol"
	"github.com/arkeep-io/rpcconn/internal/reactor"
)

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// connectCall records one Connect invocation observed by a fakeReactor.
type connectCall struct {
	host    string
	port    int
	timeout time.Duration
}

// fakeReactor is a controllable, in-memory stand-in for reactor.Reactor.
// Timers resolve immediately (no real sleeping) so tests run fast; the
// requested delay is still recorded for backoff-schedule assertions.
type fakeReactor struct {
	mu       sync.Mutex
	running  bool
	outcomes map[string][]error // keyed by "host:port"; nil entry = success

	calls  chan connectCall
	timers chan time.Duration

	// pause, when set before Start, makes every Connect call block after
	// being recorded until the test sends on resume. Used to deterministically
	// interleave a reactor Stop with an in-flight connect attempt.
	pause  bool
	resume chan struct{}
}

func newFakeReactor() *fakeReactor {
	return &fakeReactor{
		outcomes: make(map[string][]error),
		calls:    make(chan connectCall, 256),
		timers:   make(chan time.Duration, 256),
	}
}

// queueOutcomes sets the ordered list of errors (nil = success) Connect
// returns for host:port, one per call; once exhausted, Connect succeeds.
func (r *fakeReactor) queueOutcomes(host string, port int, errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[key(host, port)] = append([]error(nil), errs...)
}

func key(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

func (r *fakeReactor) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *fakeReactor) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = true
	return nil
}

func (r *fakeReactor) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	return nil
}

func (r *fakeReactor) Connect(ctx context.Context, host string, port int, timeout time.Duration) (reactor.RawConn, error) {
	select {
	case r.calls <- connectCall{host: host, port: port, timeout: timeout}:
	default:
	}

	if r.pause {
		select {
		case <-r.resume:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil, fmt.Errorf("fakereactor: not running")
	}

	q := r.outcomes[key(host, port)]
	if len(q) == 0 {
		return nil, nil
	}
	err := q[0]
	r.outcomes[key(host, port)] = q[1:]
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func (r *fakeReactor) ScheduleTimer(ctx context.Context, d time.Duration) <-chan reactor.TimerResult {
	select {
	case r.timers <- d:
	default:
	}

	ch := make(chan reactor.TimerResult, 1)
	if !r.Running() {
		ch <- reactor.TimerResult{Canceled: true}
		close(ch)
		return ch
	}
	ch <- reactor.TimerResult{Canceled: false}
	close(ch)
	return ch
}

// nextCall blocks until a Connect call is observed, or fails the test.
func (r *fakeReactor) nextCall(timeout time.Duration) (connectCall, bool) {
	select {
	case c := <-r.calls:
		return c, true
	case <-time.After(timeout):
		return connectCall{}, false
	}
}

func (r *fakeReactor) drainTimers(n int, timeout time.Duration) []time.Duration {
	out := make([]time.Duration, 0, n)
	deadline := time.After(timeout)
	for i := 0; i < n; i++ {
		select {
		case d := <-r.timers:
			out = append(out, d)
		case <-deadline:
			return out
		}
	}
	return out
}

// fakeConn is a controllable, in-memory stand-in for protocol.ProtocolConnection.
type fakeConn struct {
	host string
	port int

	mu       sync.Mutex
	listener protocol.CloseListener
	sendFunc func(payload []byte) ([]byte, error)
	closed   bool
}

func (c *fakeConn) Host() string { return c.host }
func (c *fakeConn) Port() int    { return c.port }

func (c *fakeConn) OnClosed(listener protocol.CloseListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = listener
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) SendMessage(ctx context.Context, payload []byte) ([]byte, error) {
	c.mu.Lock()
	fn := c.sendFunc
	c.mu.Unlock()
	if fn != nil {
		return fn(payload)
	}
	return payload, nil
}

// fireClosed invokes the registered close listener, if any. Safe to call
// even if no listener has been registered yet.
func (c *fakeConn) fireClosed(cause error) {
	c.mu.Lock()
	l := c.listener
	c.mu.Unlock()
	if l != nil {
		l(cause)
	}
}

// fakeFactory is a protocol.ConnectionFactory that hands back fakeConns and
// remembers every connection it created, keyed by host:port, so tests can
// reach in and drive close events or override send behavior.
type fakeFactory struct {
	mu      sync.Mutex
	created map[string][]*fakeConn
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{created: make(map[string][]*fakeConn)}
}

func (f *fakeFactory) CreateConnection(raw reactor.RawConn, host string, port int) (protocol.ProtocolConnection, error) {
	c := &fakeConn{host: host, port: port}
	f.mu.Lock()
	f.created[key(host, port)] = append(f.created[key(host, port)], c)
	f.mu.Unlock()
	return c, nil
}

// latest returns the most recently created connection for host:port, or
// nil if none has been created yet.
func (f *fakeFactory) latest(host string, port int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	cs := f.created[key(host, port)]
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

func (f *fakeFactory) countFor(host string, port int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created[key(host, port)])
}

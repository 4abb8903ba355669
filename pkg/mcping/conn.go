package mcping

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// State is the lifecycle state of a Conn.
type State int

// Conn states, in the order a successful query walks through them.
const (
	StateIdle State = iota
	StateResolving
	StateConnecting
	StateConnected
	StateHandshakeSent
	StateStatusRequested
	StateStatusReceived
	StateFailed
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateResolving:
		return "Resolving"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateHandshakeSent:
		return "HandshakeSent"
	case StateStatusRequested:
		return "StatusRequested"
	case StateStatusReceived:
		return "StatusReceived"
	case StateFailed:
		return "Failed"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Option configures a Conn.
type Option func(*Conn)

// WithTimeout bounds the whole Connect + Ping sequence. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Conn) { c.timeout = d }
}

// WithResolver selects how host names are turned into endpoints.
func WithResolver(r Resolver) Option {
	return func(c *Conn) { c.resolver = r }
}

// WithDialer replaces the transport dialer.
func WithDialer(d Dialer) Option {
	return func(c *Conn) { c.dialer = d }
}

// WithProtocolVersion sets the protocol version sent in the handshake.
// The value is not validated.
func WithProtocolVersion(v int32) Option {
	return func(c *Conn) { c.protocol = v }
}

// WithLatency makes Ping follow the status exchange with a ping/pong
// round trip and report it in Status.Latency.
func WithLatency() Option {
	return func(c *Conn) { c.latency = true }
}

// WithParser replaces the status document parser.
func WithParser(p TreeParser) Option {
	return func(c *Conn) { c.parse = p }
}

// WithLogger sets the logger used for state transitions.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Conn) { c.log = l }
}

// Conn is a single status query against one server.
//
// A Conn is not safe for concurrent use; it owns its transport exclusively.
// Any failure after the transport opened closes it and leaves the Conn in
// StateFailed.
type Conn struct {
	resolver Resolver
	dialer   Dialer
	parse    TreeParser
	conn     net.Conn
	reader   *bufio.Reader
	err      error
	deadline time.Time
	log      zerolog.Logger
	addr     Address
	remote   netip.AddrPort
	timeout  time.Duration
	state    State
	protocol int32
	latency  bool
}

// New returns an idle Conn for addr.
// Host names are resolved with Lookup unless WithResolver says otherwise.
func New(addr Address, opts ...Option) *Conn {
	c := &Conn{
		addr:     addr,
		resolver: Lookup{},
		dialer:   &net.Dialer{},
		parse:    ParseJSONTree,
		log:      zerolog.Nop(),
		protocol: DefaultProtocolVersion,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Query connects to addr, reads its status and closes the connection.
func Query(ctx context.Context, addr Address, opts ...Option) (*Status, error) {
	c := New(addr, opts...)
	defer func() { _ = c.Close() }()

	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	return c.Ping(ctx)
}

// State returns the current lifecycle state.
func (c *Conn) State() State { return c.state }

// Err returns the reason of the failure once the Conn is in StateFailed.
func (c *Conn) Err() error { return c.err }

// Addr returns the target address the Conn was created with.
func (c *Conn) Addr() Address { return c.addr }

// RemoteAddr returns the endpoint the transport connected to.
func (c *Conn) RemoteAddr() netip.AddrPort { return c.remote }

// Connect resolves the address if needed and opens the transport.
// It fails with ErrInvalidState when called on anything but an idle Conn.
func (c *Conn) Connect(ctx context.Context) error {
	if c.state != StateIdle {
		return &StateError{Op: "connect", State: c.state}
	}

	if c.timeout > 0 {
		c.deadline = time.Now().Add(c.timeout)
	}

	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	var endpoints []netip.AddrPort
	if ip, err := netip.ParseAddr(c.addr.Host); err == nil {
		endpoints = []netip.AddrPort{netip.AddrPortFrom(ip.Unmap(), c.addr.Port)}
	} else {
		c.setState(StateResolving)

		endpoints, err = c.resolver.Resolve(ctx, c.addr.Host, c.addr.Port)
		if err != nil {
			return c.fail(ctx, err)
		}
		if len(endpoints) == 0 {
			return c.fail(ctx, fmt.Errorf("%w: no endpoints for %q", ErrResolutionFailed, c.addr.Host))
		}
	}

	c.setState(StateConnecting)

	var lastErr error
	for _, ep := range endpoints {
		conn, err := c.dialer.DialContext(ctx, "tcp", ep.String())
		if err != nil {
			c.log.Debug().Err(err).Str("endpoint", ep.String()).Msg("Dial failed")
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if !c.deadline.IsZero() {
			if err := conn.SetDeadline(c.deadline); err != nil {
				_ = conn.Close()
				return c.fail(ctx, fmt.Errorf("%w: %w", ErrConnectFailed, err))
			}
		}

		c.conn = conn
		c.reader = bufio.NewReader(conn)
		c.remote = ep
		c.setState(StateConnected)
		return nil
	}

	return c.fail(ctx, fmt.Errorf("%w: %w", ErrConnectFailed, lastErr))
}

// Ping sends the handshake and the status request back to back, then reads
// and decodes the status response. With WithLatency it also measures one
// ping/pong round trip. It requires a connected Conn and succeeds once.
func (c *Conn) Ping(ctx context.Context) (*Status, error) {
	if c.state != StateConnected {
		return nil, &StateError{Op: "ping", State: c.state}
	}

	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	// unblock transport I/O when the context ends first
	conn := c.conn
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	handshake := Handshake{
		ProtocolVersion: c.protocol,
		Host:            c.addr.Host,
		Port:            c.remote.Port(),
		NextState:       NextStateStatus,
	}
	if c.remote.Port() == 0 {
		handshake.Port = c.addr.Port
	}

	if err := WriteFrame(c.conn, handshake.Frame()); err != nil {
		return nil, c.fail(ctx, err)
	}
	c.setState(StateHandshakeSent)

	if err := WriteFrame(c.conn, StatusRequest{}.Frame()); err != nil {
		return nil, c.fail(ctx, err)
	}
	c.setState(StateStatusRequested)

	frame, err := ReadFrame(c.reader)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	doc, err := ParseStatusResponse(frame)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	tree, err := c.parse(doc)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	status, err := DecodeStatusTree(tree)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	if c.latency {
		if status.Latency, err = c.roundTrip(); err != nil {
			return nil, c.fail(ctx, err)
		}
	}

	c.setState(StateStatusReceived)
	return status, nil
}

// Close closes the transport, if open, and moves the Conn to StateClosed.
// It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}

	if c.state != StateClosed {
		c.setState(StateClosed)
	}

	return err
}

func (c *Conn) roundTrip() (time.Duration, error) {
	start := time.Now()
	payload := start.UnixNano()

	if err := WriteFrame(c.conn, PingRequest{Payload: payload}.Frame()); err != nil {
		return 0, err
	}

	frame, err := ReadFrame(c.reader)
	if err != nil {
		return 0, err
	}

	if err := ParsePong(frame, payload); err != nil {
		return 0, err
	}

	return time.Since(start), nil
}

func (c *Conn) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.deadline.IsZero() {
		return context.WithCancel(ctx)
	}

	return context.WithDeadline(ctx, c.deadline)
}

// fail records err as the failure reason, closes the transport and
// classifies deadline expiry as ErrTimeout.
func (c *Conn) fail(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		err = fmt.Errorf("mcping: %s: %w", c.addr, ctx.Err())
	case ctx.Err() != nil || isTimeout(err):
		err = fmt.Errorf("%w: %s after %s: %w", ErrTimeout, c.addr, c.state, err)
	}

	c.log.Debug().Err(err).Stringer("state", c.state).Str("addr", c.addr.String()).Msg("Query failed")

	c.err = err
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.setState(StateFailed)

	return err
}

func (c *Conn) setState(s State) {
	c.log.Trace().Str("addr", c.addr.String()).Stringer("from", c.state).Stringer("to", s).Msg("State change")
	c.state = s
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

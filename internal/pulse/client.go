package pulse

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/jfreymuth/pulse/proto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	protocolVersion    = 35
	minProtocolVersion = 13
	versionMask        = 0x0000FFFF
)

// State is the connection lifecycle as the client observes it.
type State int

const (
	StateUnconnected State = iota
	StateConnecting
	StateAuthorizing
	StateSettingName
	StateReady
	StateFailed
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthorizing:
		return "authorizing"
	case StateSettingName:
		return "setting name"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Operation is a submitted request waiting for its reply.
type Operation struct {
	command uint32
	done    chan struct{}
	reply   *Decoder
	err     error
}

func newOperation(command uint32) *Operation {
	return &Operation{command: command, done: make(chan struct{})}
}

func (o *Operation) complete(reply *Decoder, err error) {
	o.reply, o.err = reply, err
	close(o.done)
}

// Wait blocks until the reply arrives or ctx is done.
func (o *Operation) Wait(ctx context.Context) (*Decoder, error) {
	select {
	case <-o.done:
		return o.reply, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Options control how Dial finds and authenticates to the server.
type Options struct {
	Server     string   // empty means PULSE_SERVER or the default sockets
	CookiePath string   // empty means the default cookie locations
	Properties PropList // sent with SET_CLIENT_NAME
	Logger     zerolog.Logger
}

// Client is a connection to the audio server's native protocol. Requests are
// tagged and written in submission order; a single reader goroutine matches
// replies to pending operations.
type Client struct {
	conn net.Conn
	log  zerolog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	state    State
	version  uint32
	nextTag  uint32
	pending  map[uint32]*Operation
	inflight []*Operation
	closed   bool

	done chan struct{}
}

// Dial connects to the first reachable server candidate and completes the
// handshake, leaving the client ready.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	addrs, err := Candidates(opts.Server)
	if err != nil {
		return nil, err
	}
	cookie, err := LoadCookie(opts.CookiePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load auth cookie: %w", err)
	}
	if cookie == nil {
		opts.Logger.Debug().Msg("no auth cookie found, relying on credentials")
	}

	var dialer net.Dialer
	var errs []error
	for _, addr := range addrs {
		opts.Logger.Debug().Str("address", addr.String()).Msg("dialing audio server")
		conn, err := dialer.DialContext(ctx, addr.Network, addr.Addr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c := NewClient(conn, opts.Logger)
		if err := c.Handshake(ctx, cookie, opts.Properties); err != nil {
			c.Close()
			return nil, fmt.Errorf("handshake with %s: %w", addr, err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrNoServer, errors.Join(errs...))
}

// NewClient starts reading from conn. Call Handshake before issuing requests.
func NewClient(conn net.Conn, log zerolog.Logger) *Client {
	c := &Client{
		conn:    conn,
		log:     log,
		pending: make(map[uint32]*Operation),
		done:    make(chan struct{}),
	}
	c.setState(StateConnecting)
	go c.readLoop()
	return c
}

// Handshake authenticates and announces the client. A missing cookie is sent
// as zeros. The negotiated protocol version is the lower of ours and the
// server's.
func (c *Client) Handshake(ctx context.Context, cookie []byte, props PropList) error {
	c.setState(StateAuthorizing)
	if len(cookie) == 0 {
		cookie = make([]byte, cookieLength)
	}
	reply, err := c.Request(ctx, proto.OpAuth, func(e *Encoder) {
		e.PutU32(protocolVersion)
		e.PutArbitrary(cookie)
	})
	if err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("authentication failed: %w", err)
	}
	serverVersion, err := reply.GetU32()
	if err != nil {
		c.setState(StateFailed)
		return err
	}
	serverVersion &= versionMask
	if serverVersion < minProtocolVersion {
		c.setState(StateFailed)
		return fmt.Errorf("%w: server speaks %d, need at least %d", ErrVersion, serverVersion, minProtocolVersion)
	}
	c.mu.Lock()
	c.version = min(serverVersion, protocolVersion)
	c.mu.Unlock()

	c.setState(StateSettingName)
	reply, err = c.Request(ctx, proto.OpSetClientName, func(e *Encoder) {
		e.PutPropList(props)
	})
	if err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("setting client name failed: %w", err)
	}
	index, err := reply.GetU32()
	if err != nil {
		c.setState(StateFailed)
		return err
	}
	c.log.Debug().Uint32("client_index", index).Uint32("version", c.Version()).Msg("connected to audio server")
	c.setState(StateReady)
	return nil
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Version is the negotiated protocol version, zero before the handshake.
func (c *Client) Version() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Request sends a command and waits for its reply. The reply decoder is
// positioned after the tag.
func (c *Client) Request(ctx context.Context, command uint32, args func(*Encoder)) (*Decoder, error) {
	op, err := c.submit(command, args, false)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

// Submit sends a command without waiting. Its outcome is reported by the next
// Drain.
func (c *Client) Submit(command uint32, args func(*Encoder)) (*Operation, error) {
	return c.submit(command, args, true)
}

func (c *Client) submit(command uint32, args func(*Encoder), track bool) (*Operation, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnectionTerminated
	}
	tag := c.nextTag
	c.nextTag++
	op := newOperation(command)
	c.pending[tag] = op
	c.mu.Unlock()

	var e Encoder
	e.PutU32(command)
	e.PutU32(tag)
	if args != nil {
		args(&e)
	}

	c.log.Debug().Uint32("command", command).Uint32("tag", tag).Msg("sending command")

	var err error
	if command == proto.OpAuth {
		err = writeWithCredentials(c.conn, frame(e.Bytes()))
	} else {
		err = writeFrame(c.conn, e.Bytes())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		delete(c.pending, tag)
		return nil, fmt.Errorf("send command %d: %w", command, err)
	}
	if track {
		c.inflight = append(c.inflight, op)
	}
	return op, nil
}

// Drain waits for every operation submitted since the last Drain and returns
// the first failure among them.
func (c *Client) Drain(ctx context.Context) error {
	c.mu.Lock()
	ops := c.inflight
	c.inflight = nil
	c.mu.Unlock()

	var g errgroup.Group
	for _, op := range ops {
		op := op
		g.Go(func() error {
			_, err := op.Wait(ctx)
			return err
		})
	}
	return g.Wait()
}

// Close disconnects. Operations still pending fail with
// ErrConnectionTerminated.
func (c *Client) Close() error {
	c.mu.Lock()
	already := c.closed
	c.closed = true
	if !already {
		c.setStateLocked(StateTerminated)
	}
	c.mu.Unlock()

	err := c.conn.Close()
	<-c.done
	if already {
		return nil
	}
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		payload, err := readFrame(c.conn)
		if err != nil {
			c.fail(err)
			return
		}
		if err := c.dispatch(payload); err != nil {
			c.log.Warn().Err(err).Msg("dropping server packet")
		}
	}
}

func (c *Client) dispatch(payload []byte) error {
	d := NewDecoder(payload)
	command, err := d.GetU32()
	if err != nil {
		return err
	}
	tag, err := d.GetU32()
	if err != nil {
		return err
	}

	switch command {
	case proto.OpReply, proto.OpError:
	default:
		c.log.Debug().Uint32("command", command).Msg("ignoring server message")
		return nil
	}

	c.mu.Lock()
	op := c.pending[tag]
	delete(c.pending, tag)
	c.mu.Unlock()
	if op == nil {
		return fmt.Errorf("reply for unknown tag %d", tag)
	}

	if command == proto.OpError {
		code, err := d.GetU32()
		if err != nil {
			op.complete(nil, err)
			return nil
		}
		op.complete(nil, &ServerError{Command: op.command, Code: code})
		return nil
	}
	op.complete(d, nil)
	return nil
}

func (c *Client) fail(cause error) {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.setStateLocked(StateFailed)
		c.log.Debug().Err(cause).Msg("connection lost")
	}
	pending := c.pending
	c.pending = make(map[uint32]*Operation)
	c.mu.Unlock()

	for _, op := range pending {
		op.complete(nil, fmt.Errorf("%w: %v", ErrConnectionTerminated, cause))
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(s)
}

func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.log.Debug().Stringer("from", c.state).Stringer("to", s).Msg("connection state changed")
	c.state = s
}

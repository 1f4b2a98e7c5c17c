// Package socket provides an asynchronous, message-framing TCP library.
// It offers a connection-oriented, bidirectional, message-passing surface
// on top of stream sockets: callers hand it a byte buffer and a
// destination, and receivers get whole application messages - never
// partial, never concatenated - delivered through a Sink. Three wire
// framings are built in (size-prefix, delimiter, netstring); callers may
// also supply their own Codec.
package socket

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Default configuration values.
const (
	// defaultBufferSize is the default depth of the write queue.
	defaultBufferSize = 1
	// defaultReadBufferSize is the default bufio chunk size used to read
	// off the socket. It bounds I/O syscall frequency, not message size.
	defaultReadBufferSize = 4096
	// defaultIdleTimeout is the default read/write deadline base; the
	// actual deadline is defaultIdleTimeout * 2.
	defaultIdleTimeout = 30 * time.Second
)

// Conn owns one stream, one read state (a Codec), and one write queue. At
// most one read and one write are ever in flight for a Conn at a time:
// the read side because the read loop is single-goroutine and strictly
// sequential (decode one message, dispatch it, decode the next), and the
// write side because the write loop drains the queue one frame at a
// time, never starting a new send before the previous one completes.
//
// Conn's closed flag plus the context captured in Run are this library's
// liveness token: any goroutine touching connection state after Close
// checks one of the two first and returns immediately rather than acting
// on a connection that may be mid-teardown.
type Conn struct {
	rawConn net.Conn
	reader  *bufio.Reader
	codec   Codec
	logger  Logger

	opts options

	queueMu     sync.Mutex
	queue       []*queuedFrame
	wake        chan struct{}
	spaceFreed  chan struct{}
	writerGuard atomic.Bool

	closed atomic.Bool
	cancel context.CancelFunc
}

type queuedFrame struct {
	buf *pooledBuffer
}

// NewConn creates a new connection wrapper around the given stream
// connection. conn may be a plain *net.TCPConn or a TLS-wrapped
// connection - Conn only relies on the net.Conn read/write/deadline
// contract, generic over any stream type whose read/write operations
// have identical semantics to a plain stream. It applies
// the provided options and validates them before returning. Returns an
// error if required options (codec, onMessage) are missing.
func NewConn(conn net.Conn, opt ...Option) (*Conn, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	return newConnWithOptions(conn, opts), nil
}

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.codec == nil {
		return ErrInvalidCodec
	}

	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.maxMessageSize <= 0 {
		if sa, ok := opts.codec.(SizeAware); ok {
			opts.maxMessageSize = sa.MaxMessageSize()
		} else {
			opts.maxMessageSize = DefaultMaxMessageSize
		}
	}

	if opts.readBufferSize <= 0 {
		opts.readBufferSize = defaultReadBufferSize
	}

	if opts.onMessage == nil {
		return ErrInvalidOnMessage
	}

	if opts.idleTimeout <= 0 {
		opts.idleTimeout = defaultIdleTimeout
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

// newConnWithOptions creates a new Conn with the given options.
func newConnWithOptions(c net.Conn, opts options) *Conn {
	return &Conn{
		rawConn:    c,
		reader:     bufio.NewReaderSize(c, opts.readBufferSize),
		codec:      opts.codec,
		logger:     opts.logger,
		opts:       opts,
		wake:       make(chan struct{}, 1),
		spaceFreed: make(chan struct{}, 1),
	}
}

// Run starts the connection's read and write loops.
// It creates two goroutines for concurrent reading and writing,
// and blocks until an error occurs or the context is canceled.
// A read already blocked in the codec when ctx is canceled is not
// interrupted: Run returns once that read ends (data arrives, the peer
// closes, Close is called, or the idleTimeout*2 read deadline passes).
// The connection is automatically closed when Run returns.
func (c *Conn) Run(ctx context.Context) error {
	c.logger.Info("connection established", "addr", c.Addr())
	c.logger.Debug("connection options", "addr", c.Addr(),
		"buffer_size", c.opts.bufferSize,
		"max_message_size", c.opts.maxMessageSize,
		"idle_timeout", c.opts.idleTimeout,
		"concurrency_mode", c.opts.concurrencyMode)

	ctx, c.cancel = context.WithCancel(ctx)
	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return c.readLoop(child)
	})

	group.Go(func() error {
		return c.writeLoop(child)
	})

	err := group.Wait()
	c.closeConn()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Info("connection closed with error", "addr", c.Addr(), "error", err)
	} else {
		c.logger.Info("connection closed", "addr", c.Addr())
	}

	return err
}

// Close gracefully closes the connection.
// It cancels the context and closes the underlying TCP connection. If
// Run was never started, it also releases every frame still queued.
// Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}
	if c.cancel != nil {
		c.cancel()
		return c.rawConn.Close()
	}
	// No Run, so no write loop will reach closeConn to release the queue.
	err := c.rawConn.Close()
	c.closeConn()
	return err
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Write sends a message through the connection without blocking (fire-and-forget).
// The message is encoded using the configured codec and queued for sending.
//
// Returns:
//   - nil: message was successfully queued (not yet sent)
//   - ErrBufferFull: send buffer is full, message was NOT queued
//   - ErrConnectionClosed: connection is closed
//   - encoding error: if codec.Encode fails
func (c *Conn) Write(message Message) error {
	release := c.enterWriter()
	defer release()

	if c.closed.Load() {
		return ErrConnectionClosed
	}

	frame, err := c.encodeFrame(message)
	if err != nil {
		return err
	}

	if !c.tryEnqueue(frame) {
		releasePooledBuffer(frame.buf)
		return ErrBufferFull
	}
	return nil
}

// WriteBlocking sends a message through the connection, blocking until the message
// is queued or the context is canceled.
func (c *Conn) WriteBlocking(ctx context.Context, message Message) error {
	release := c.enterWriter()
	defer release()

	if c.closed.Load() {
		return ErrConnectionClosed
	}

	frame, err := c.encodeFrame(message)
	if err != nil {
		return err
	}

	for {
		if c.tryEnqueue(frame) {
			return nil
		}
		select {
		case <-ctx.Done():
			releasePooledBuffer(frame.buf)
			return ctx.Err()
		case <-c.spaceFreed:
		}
	}
}

// WriteTimeout sends a message through the connection with a timeout.
func (c *Conn) WriteTimeout(message Message, timeout time.Duration) error {
	release := c.enterWriter()
	defer release()

	if c.closed.Load() {
		return ErrConnectionClosed
	}

	frame, err := c.encodeFrame(message)
	if err != nil {
		return err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if c.tryEnqueue(frame) {
			return nil
		}
		select {
		case <-deadline.C:
			releasePooledBuffer(frame.buf)
			return ErrBufferFull
		case <-c.spaceFreed:
		}
	}
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// enterWriter returns a release function. In SingleThreaded mode it also
// asserts, via a CAS guard, that no two Write-family calls run
// concurrently on this Conn; in every other respect the two modes behave
// the same. The queue itself is always
// mutex-guarded regardless of mode: the write loop goroutine reads it
// concurrently with any caller of Write, so eliding that lock would be a
// real data race, not just a documented discipline.
func (c *Conn) enterWriter() func() {
	if c.opts.concurrencyMode != SingleThreaded {
		return func() {}
	}
	if c.writerGuard.Swap(true) {
		panic("socket: concurrent Write on a SingleThreaded Conn")
	}
	return func() { c.writerGuard.Store(false) }
}

// encodeFrame encodes message and copies it into a pooled buffer sized
// for transmission. Codec.Encode itself still allocates a scratch slice
// (its interface is fixed at []byte in, []byte out), but the buffer that
// actually rides the write queue - and gets reused across messages - is
// drawn from the shared pool.
func (c *Conn) encodeFrame(message Message) (*queuedFrame, error) {
	data, err := c.codec.Encode(message)
	if err != nil {
		return nil, err
	}
	buf := acquirePooledBuffer(len(data))
	buf.B = append(buf.B[:0], data...)
	return &queuedFrame{buf: buf}, nil
}

// tryEnqueue observes whether the queue is empty, appends, and reports
// whether this append was the transition that must kick off a send.
func (c *Conn) tryEnqueue(frame *queuedFrame) bool {
	c.queueMu.Lock()
	if len(c.queue) >= c.opts.bufferSize {
		c.queueMu.Unlock()
		return false
	}
	wasEmpty := len(c.queue) == 0
	c.queue = append(c.queue, frame)
	c.queueMu.Unlock()

	if wasEmpty {
		c.notify(c.wake)
	}
	return true
}

// notify performs a non-blocking send on a capacity-1 signal channel.
func (c *Conn) notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// readLoop continuously reads from the connection and processes messages.
// It decodes incoming data using the configured codec and calls the message handler.
// Returns when the context is canceled or an unrecoverable error occurs.
func (c *Conn) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.idleTimeout * 2))

			message, err := c.codec.Decode(c.reader)
			if err != nil {
				// A read that fails because the connection is shutting
				// down is not reported through onError.
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Debug("read error", "addr", c.Addr(), "error", err)
				if c.opts.onError(err) == Disconnect {
					return err
				}
				continue
			}

			if err = c.opts.onMessage(message); err != nil {
				return err
			}
		}
	}
}

// writeLoop drains the write queue one frame at a time, a
// send-completion algorithm expressed as a blocking loop
// instead of a chain of async completion callbacks, since Go's runtime
// makes a dedicated goroutine per Conn the idiomatic equivalent of "one
// completion handler re-arms the next send".
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		frame, err := c.waitForHead(ctx)
		if err != nil {
			return err
		}

		if err := c.write(frame.buf.B); err != nil {
			return err
		}

		c.popSent()
	}
}

// waitForHead blocks until the queue is non-empty or ctx is done,
// without popping - the head stays in the queue while its send is in
// flight.
func (c *Conn) waitForHead(ctx context.Context) (*queuedFrame, error) {
	for {
		c.queueMu.Lock()
		if len(c.queue) > 0 {
			frame := c.queue[0]
			c.queueMu.Unlock()
			return frame, nil
		}
		c.queueMu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.wake:
		}
	}
}

// popSent removes the just-sent head and returns its buffer to the pool,
// then wakes any WriteBlocking/WriteTimeout callers waiting for space.
func (c *Conn) popSent() {
	c.queueMu.Lock()
	sent := c.queue[0]
	c.queue = c.queue[1:]
	c.queueMu.Unlock()

	releasePooledBuffer(sent.buf)
	c.notify(c.spaceFreed)
}

// write sends data to the connection with a deadline.
// If an error occurs and onError returns Disconnect, the error is propagated.
// Otherwise, the error is suppressed and writing continues.
func (c *Conn) write(data []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.idleTimeout * 2))

	_, err := c.rawConn.Write(data)
	if err != nil {
		c.logger.Debug("write error", "addr", c.Addr(), "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
		return nil
	}

	return nil
}

// closeConn marks the connection as closed, closes the underlying TCP
// connection, and releases every buffer still sitting in the write queue
// - the buffers the send-completion path would otherwise have freed had
// it kept running.
func (c *Conn) closeConn() {
	c.closed.Store(true)
	_ = c.rawConn.Close()

	c.queueMu.Lock()
	pending := c.queue
	c.queue = nil
	c.queueMu.Unlock()

	for _, frame := range pending {
		releasePooledBuffer(frame.buf)
	}
}

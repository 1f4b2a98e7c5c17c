package socket

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/net/netutil"
	"golang.org/x/sys/unix"
)

// Listener binds one or more ports, accepts inbound streams, and
// constructs a Conn per accepted stream. Unlike a single-address
// Server, a Listener owns a set of acceptors
// keyed by port so that Listen/Unlisten can be called repeatedly over
// its lifetime.
type Listener struct {
	sink        Sink
	logger      Logger
	connOptions func() []Option
	maxConns    int

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	acceptors map[int][]net.Listener
	closed    bool

	connsMu sync.Mutex
	conns   map[*Conn]struct{}
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// ListenerLoggerOption sets the listener's own logger (accept-loop
// lifecycle events), independent of the Logger each accepted Conn uses.
func ListenerLoggerOption(logger Logger) ListenerOption {
	return func(l *Listener) { l.logger = logger }
}

// MaxConnectionsOption bounds the number of simultaneously accepted
// connections per acceptor via golang.org/x/net/netutil.LimitListener.
// A non-positive value (the default) leaves accepts unbounded.
func MaxConnectionsOption(n int) ListenerOption {
	return func(l *Listener) { l.maxConns = n }
}

// NewListener returns a Listener that delivers accepted connections and
// errors to sink. connOptions is called once per accepted connection to
// build its Option list (in particular, a fresh Codec instance - built-in
// codecs carry per-connection decode state and must not be shared).
func NewListener(sink Sink, connOptions func() []Option, opts ...ListenerOption) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		sink:        sink,
		logger:      defaultLogger(),
		connOptions: connOptions,
		ctx:         ctx,
		cancel:      cancel,
		acceptors:   make(map[int][]net.Listener),
		conns:       make(map[*Conn]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// reuseAddrControl is a net.ListenConfig.Control callback that sets
// SO_REUSEADDR on the not-yet-bound socket, the usual accept-loop
// restart hygiene for a quick bind/listen cycle after a restart.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// isV6Only reports whether ln's socket has IPV6_V6ONLY set, which is how
// the OS tells us a "tcp"/wildcard listen produced a v6-only socket
// rather than a dual-stack one.
func isV6Only(ln net.Listener) (bool, error) {
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return false, nil
	}
	sc, err := tcpLn.SyscallConn()
	if err != nil {
		return false, err
	}

	var v6only int
	var sockErr error
	if err := sc.Control(func(fd uintptr) {
		v6only, sockErr = unix.GetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY)
	}); err != nil {
		return false, err
	}
	return v6only == 1, sockErr
}

// Listen resolves a wildcard-host query for port and opens one dual-stack
// acceptor. If the resulting socket turns out to be v6-only (the OS's
// call, not ours), a second acceptor is opened on tcp4 so both families
// are served.
func (l *Listener) Listen(port int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrListenerClosed
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	addr := fmt.Sprintf(":%d", port)

	ln, err := lc.Listen(l.ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen tcp on port %d", port)
	}

	acceptors := []net.Listener{ln}

	if v6only, verr := isV6Only(ln); verr == nil && v6only {
		ln4, err4 := lc.Listen(l.ctx, "tcp4", addr)
		if err4 != nil {
			l.sink.Error(errors.Wrapf(err4, "listen tcp4 fallback on port %d", port))
		} else {
			acceptors = append(acceptors, ln4)
		}
	}

	for i, acc := range acceptors {
		if l.maxConns > 0 {
			acc = netutil.LimitListener(acc, l.maxConns)
			acceptors[i] = acc
		}
	}

	l.acceptors[port] = append(l.acceptors[port], acceptors...)
	for _, acc := range acceptors {
		go l.acceptLoop(port, acc)
	}
	return nil
}

// Unlisten closes and removes every acceptor registered for port as a
// group. In-flight completions on those acceptors re-check registration
// under the shared lock and return cleanly if it is gone.
func (l *Listener) Unlisten(port int) error {
	l.mu.Lock()
	acceptors, ok := l.acceptors[port]
	if !ok {
		l.mu.Unlock()
		return ErrPortNotListening
	}
	delete(l.acceptors, port)
	l.mu.Unlock()

	var firstErr error
	for _, acc := range acceptors {
		if err := acc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// acceptorRegistered reports whether ln is still one of port's acceptors.
func (l *Listener) acceptorRegistered(port int, ln net.Listener) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, acc := range l.acceptors[port] {
		if acc == ln {
			return true
		}
	}
	return false
}

func (l *Listener) acceptLoop(port int, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !l.acceptorRegistered(port, ln) {
				return
			}
			l.sink.Error(errors.Wrapf(err, "accept on port %d", port))
			return
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}

		var c *Conn
		opts := append(l.connOptions(),
			OnMessageOption(func(msg Message) error {
				return l.sink.Received(c, msg)
			}),
			OnErrorOption(func(err error) ErrorAction {
				l.sink.ConnError(c, err)
				return Disconnect
			}),
		)

		built, err := NewConn(conn, opts...)
		if err != nil {
			l.logger.Warn("failed to build connection", "error", err)
			_ = conn.Close()
			l.sink.Error(err)
			continue
		}
		c = built

		l.registerConn(c)

		go func() {
			defer l.unregisterConn(c)
			if runErr := c.Run(l.ctx); runErr != nil {
				l.logger.Debug("connection run exited", "addr", c.Addr(), "error", runErr)
			}
		}()

		l.sink.Accepted(c)
	}
}

func (l *Listener) registerConn(c *Conn) {
	l.connsMu.Lock()
	l.conns[c] = struct{}{}
	l.connsMu.Unlock()
}

func (l *Listener) unregisterConn(c *Conn) {
	l.connsMu.Lock()
	delete(l.conns, c)
	l.connsMu.Unlock()
}

// Close stops accepting on every port and closes every connection this
// Listener has ever accepted that is still live, a registry-driven
// shutdown kept as a lifecycle feature rather than a messaging-level
// broadcast.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	acceptors := l.acceptors
	l.acceptors = make(map[int][]net.Listener)
	l.mu.Unlock()

	l.cancel()

	var firstErr error
	for _, accs := range acceptors {
		for _, acc := range accs {
			if err := acc.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	l.connsMu.Lock()
	conns := make([]*Conn, 0, len(l.conns))
	for c := range l.conns {
		conns = append(conns, c)
	}
	l.connsMu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}

	return firstErr
}

package socket

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
)

// Dialer resolves an address to a set of candidate endpoints and
// connects to one of them, constructing a Conn on success. Unlike a
// Listener it produces at most one connection per Dial call; any
// reconnection loop is left to the caller.
type Dialer struct {
	sink        Sink
	logger      Logger
	connOptions func() []Option

	dialTimeout   time.Duration
	candidatePace backoff.Backoff
}

// DialerOption configures a Dialer.
type DialerOption func(*Dialer)

// DialerLoggerOption sets the dialer's own logger.
func DialerLoggerOption(logger Logger) DialerOption {
	return func(d *Dialer) { d.logger = logger }
}

// DialTimeoutOption bounds a single candidate connect attempt.
func DialTimeoutOption(timeout time.Duration) DialerOption {
	return func(d *Dialer) { d.dialTimeout = timeout }
}

// CandidateBackoffOption sets the min/max pacing between consecutive
// candidate-endpoint connect attempts within a single Dial call. This is
// not a whole-Dial retry loop - it only paces trying the next resolved
// address after the current one fails.
func CandidateBackoffOption(min, max time.Duration) DialerOption {
	return func(d *Dialer) {
		d.candidatePace.Min = min
		d.candidatePace.Max = max
	}
}

// NewDialer returns a Dialer that delivers a successfully connected Conn
// and dial errors to sink. connOptions builds a fresh Option list per
// dial attempt, exactly as Listener's does.
func NewDialer(sink Sink, connOptions func() []Option, opts ...DialerOption) *Dialer {
	d := &Dialer{
		sink:        sink,
		logger:      defaultLogger(),
		connOptions: connOptions,
		dialTimeout: 10 * time.Second,
		candidatePace: backoff.Backoff{
			Min: 50 * time.Millisecond,
			Max: 1 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial resolves host, tries each returned address in turn, and returns
// the Conn built from the first successful connect. It gives up only
// after every resolved candidate has failed, returning the last
// candidate's error wrapped; ErrNoEndpoints is returned when resolution
// yields no address. Every error Dial returns is also delivered to the
// sink's Error.
// ctx also governs the returned connection's lifetime: Conn.Run is
// already running in its own goroutine by the time Dial returns,
// consistent with Sink.Accepted's "the connection has already been
// started" contract, and canceling ctx ends that Run as described on
// Conn.Run.
func (d *Dialer) Dial(ctx context.Context, host string, port int) (conn *Conn, err error) {
	defer func() {
		if err != nil {
			d.sink.Error(err)
		}
	}()

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", host)
	}
	if len(ips) == 0 {
		return nil, ErrNoEndpoints
	}

	pace := d.candidatePace
	pace.Reset()

	var lastErr error
	for i, ip := range ips {
		if i > 0 {
			select {
			case <-time.After(pace.Duration()):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		addr := net.JoinHostPort(ip.String(), strconv.Itoa(port))
		conn, err := d.dialOne(ctx, addr)
		if err != nil {
			d.logger.Debug("candidate dial failed", "addr", addr, "error", err)
			lastErr = err
			continue
		}
		return conn, nil
	}

	if lastErr != nil {
		return nil, errors.Wrap(lastErr, "all candidates failed")
	}
	return nil, ErrNoEndpoints
}

func (d *Dialer) dialOne(ctx context.Context, addr string) (*Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, d.dialTimeout)
	defer cancel()

	rawConn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if tcpConn, ok := rawConn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	var c *Conn
	opts := append(d.connOptions(),
		OnMessageOption(func(msg Message) error {
			return d.sink.Received(c, msg)
		}),
		OnErrorOption(func(err error) ErrorAction {
			d.sink.ConnError(c, err)
			return Disconnect
		}),
	)

	built, err := NewConn(rawConn, opts...)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	c = built

	go func() {
		if runErr := c.Run(ctx); runErr != nil {
			d.logger.Debug("connection run exited", "addr", c.Addr(), "error", runErr)
		}
	}()

	d.sink.Accepted(c)
	return c, nil
}

package socket

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink implements Sink and records every callback for
// assertions, guarded by a mutex since Listener/Dialer invoke it from
// multiple goroutines.
type recordingSink struct {
	mu         sync.Mutex
	accepted   []*Conn
	received   [][]byte
	connErrors []error
	errors     []error

	acceptedCh chan *Conn
	receivedCh chan []byte
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		acceptedCh: make(chan *Conn, 16),
		receivedCh: make(chan []byte, 16),
	}
}

func (s *recordingSink) Accepted(conn *Conn) {
	s.mu.Lock()
	s.accepted = append(s.accepted, conn)
	s.mu.Unlock()
	s.acceptedCh <- conn
}

func (s *recordingSink) Received(conn *Conn, msg Message) error {
	s.mu.Lock()
	s.received = append(s.received, msg.Body())
	s.mu.Unlock()
	s.receivedCh <- msg.Body()
	return nil
}

func (s *recordingSink) ConnError(conn *Conn, err error) {
	s.mu.Lock()
	s.connErrors = append(s.connErrors, err)
	s.mu.Unlock()
}

func (s *recordingSink) Error(err error) {
	s.mu.Lock()
	s.errors = append(s.errors, err)
	s.mu.Unlock()
}

func newLineCodecOptions() []Option {
	return []Option{
		CustomCodecOption(NewDelimiterCodec([]byte("\n"), 0, 0)),
	}
}

func TestListener_ListenAcceptsConnections(t *testing.T) {
	sink := newRecordingSink()
	ln := NewListener(sink, newLineCodecOptions)
	defer ln.Close()

	port := pickFreePort(t)
	require.NoError(t, ln.Listen(port))

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-sink.acceptedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Accepted")
	}

	_, err = conn.Write([]byte("hello\n"))
	require.NoError(t, err)

	select {
	case body := <-sink.receivedCh:
		assert.Equal(t, "hello", string(body))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Received")
	}
}

func TestListener_UnlistenStopsAccepting(t *testing.T) {
	sink := newRecordingSink()
	ln := NewListener(sink, newLineCodecOptions)
	defer ln.Close()

	port := pickFreePort(t)
	require.NoError(t, ln.Listen(port))

	require.NoError(t, ln.Unlisten(port))

	_, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), time.Second)
	assert.Error(t, err)
}

func TestListener_UnlistenUnknownPort(t *testing.T) {
	sink := newRecordingSink()
	ln := NewListener(sink, newLineCodecOptions)
	defer ln.Close()

	err := ln.Unlisten(1)
	assert.Equal(t, ErrPortNotListening, err)
}

func TestListener_ListenAfterCloseFails(t *testing.T) {
	sink := newRecordingSink()
	ln := NewListener(sink, newLineCodecOptions)

	require.NoError(t, ln.Close())

	err := ln.Listen(0)
	assert.Equal(t, ErrListenerClosed, err)
}

func TestListener_CloseClosesLiveConnections(t *testing.T) {
	sink := newRecordingSink()
	ln := NewListener(sink, newLineCodecOptions)

	port := pickFreePort(t)
	require.NoError(t, ln.Listen(port))

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer conn.Close()

	var accepted *Conn
	select {
	case accepted = <-sink.acceptedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Accepted")
	}

	require.NoError(t, ln.Close())

	assert.Eventually(t, func() bool {
		return accepted.IsClosed()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListener_MaxConnectionsOption(t *testing.T) {
	sink := newRecordingSink()
	ln := NewListener(sink, newLineCodecOptions, MaxConnectionsOption(1))
	defer ln.Close()

	port := pickFreePort(t)
	require.NoError(t, ln.Listen(port))

	first, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer first.Close()

	select {
	case <-sink.acceptedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for first Accepted")
	}

	second, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer second.Close()

	select {
	case <-sink.acceptedCh:
		t.Fatal("second connection should not have been accepted while the limit holds")
	case <-time.After(200 * time.Millisecond):
	}
}

// pickFreePort finds a currently unused TCP port by binding to port 0
// and immediately releasing it. There is an inherent, small race between
// releasing the port here and the caller rebinding it, but this is the
// standard way to get a concrete port number for a test Listener.
func pickFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to pick a free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

package socket

import (
	"time"
)

// ErrorAction defines the action to take when an error occurs.
type ErrorAction int

const (
	// Disconnect closes the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and continues processing.
	Continue
)

// ConcurrencyMode selects the write-path discipline a Conn enforces.
// The write queue itself is always mutex-guarded regardless
// of mode - the write loop goroutine and any caller of Write are always
// two different goroutines in Go, so there is no safe way to elide that
// lock. MultiThreaded (the default) makes no assumption about callers.
// SingleThreaded additionally asserts, via a CAS guard, that a caller
// keeps its documented promise never to call the Write family
// concurrently for a given Conn; apart from that guard the two modes
// behave the same.
type ConcurrencyMode int

const (
	// MultiThreaded makes no assumption about how many goroutines call
	// the Write family concurrently.
	MultiThreaded ConcurrencyMode = iota
	// SingleThreaded asserts, via a CAS guard, that only one goroutine
	// ever calls the Write family for a given Conn at a time.
	SingleThreaded
)

// options holds the configuration for a connection.
type options struct {
	codec  Codec
	logger Logger

	onMessage func(message Message) error
	// onError is called when an error occurs.
	// Returns Disconnect to close the connection, Continue to suppress the error.
	onError func(error) ErrorAction

	bufferSize      int             // maximum number of frames in the write queue
	maxMessageSize  int             // MAX_MESSAGE_SIZE: bound on any single message
	readBufferSize  int             // bufio read-buffer size (I/O chunking, not a message bound)
	idleTimeout     time.Duration   // read/write deadline is idleTimeout * 2
	concurrencyMode ConcurrencyMode // write-queue discipline
}

// Option is a function that configures connection options.
type Option func(*options)

// CustomCodecOption returns an Option that sets the message codec.
// The codec is required and must be provided before creating a connection.
func CustomCodecOption(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// BufferSizeOption returns an Option that sets the maximum number of
// frames the write queue holds. Once it is full, Write returns
// ErrBufferFull and WriteBlocking/WriteTimeout wait for space.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// IdleTimeoutOption returns an Option that sets the idle timeout used to
// derive read/write deadlines (idleTimeout * 2 per operation).
func IdleTimeoutOption(idleTimeout time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = idleTimeout
	}
}

// MaxMessageSizeOption returns an Option that records MAX_MESSAGE_SIZE,
// the upper bound in bytes on any single message, on the Conn. If unset,
// and the configured codec implements SizeAware, the codec's own limit
// is recorded; otherwise DefaultMaxMessageSize. Conn only reports this
// value in its debug log and does not enforce it: the limit applied on
// the wire is the one the codec itself enforces in Encode and Decode.
func MaxMessageSizeOption(size int) Option {
	return func(o *options) {
		o.maxMessageSize = size
	}
}

// ReadBufferSizeOption sets the bufio read-buffer size used to chunk
// reads off the socket. This is purely an I/O-batching knob; it is
// unrelated to MaxMessageSizeOption and does not bound message size.
func ReadBufferSizeOption(size int) Option {
	return func(o *options) {
		o.readBufferSize = size
	}
}

// ConcurrencyModeOption selects the write-queue discipline; see
// ConcurrencyMode.
func ConcurrencyModeOption(mode ConcurrencyMode) Option {
	return func(o *options) {
		o.concurrencyMode = mode
	}
}

// OnErrorOption returns an Option that sets the error callback.
// The callback is invoked when a read/write error occurs.
// Return Disconnect to close the connection, or Continue to suppress the error.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// OnMessageOption returns an Option that sets the message handler callback.
// This callback is required and is invoked for each received message.
func OnMessageOption(cb func(Message) error) Option {
	return func(o *options) {
		o.onMessage = cb
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

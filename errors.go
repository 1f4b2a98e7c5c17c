package socket

import "github.com/pkg/errors"

// Connection-level errors.
var (
	// ErrInvalidCodec is returned when no codec is provided.
	ErrInvalidCodec = errors.New("invalid codec callback")
	// ErrInvalidOnMessage is returned when no message handler is provided.
	ErrInvalidOnMessage = errors.New("invalid on message callback")
	// ErrConnectionClosed is returned when operating on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrBufferFull is returned when the send buffer is full and cannot
	// accept more messages.
	ErrBufferFull = errors.New("send buffer full")
)

// Framing-codec errors.
var (
	// ErrMessageTooLarge is returned when a message's declared or
	// provisional length exceeds the configured MaxMessageSize, in either
	// the encode or the decode direction.
	ErrMessageTooLarge = errors.New("message exceeds max message size")
	// ErrNetstringMalformedHeader is returned when a netstring header is
	// not a run of ASCII digits followed by ':', or overruns its scratch
	// buffer without finding ':'.
	ErrNetstringMalformedHeader = errors.New("netstring: malformed header")
	// ErrNetstringDelimiterNotFound is returned when a netstring body is
	// not terminated by ','.
	ErrNetstringDelimiterNotFound = errors.New("netstring: delimiter not found after body")
	// ErrDelimiterTooLong is returned when a delimiter-framed message
	// grows past MaxMessageSize without the delimiter appearing.
	ErrDelimiterTooLong = ErrMessageTooLarge
)

// Listener/dialer errors.
var (
	// ErrPortNotListening is returned by Unlisten for a port with no
	// registered acceptors.
	ErrPortNotListening = errors.New("port is not listening")
	// ErrNoEndpoints is returned by Dial when resolution yields no
	// candidate addresses.
	ErrNoEndpoints = errors.New("no endpoints resolved")
	// ErrListenerClosed is returned by operations on a closed Listener.
	ErrListenerClosed = errors.New("listener closed")
)

package socket

import (
	"io"

	"github.com/pkg/errors"
)

// DefaultDelimiterBufferSize is the initial (and post-compaction floor)
// size of a DelimiterCodec's growable read buffer.
const DefaultDelimiterBufferSize = 1000

// Compaction heuristics, treated as normative for parity with the
// source system rather than as a public knob.
const (
	compactionTailRatio    = 0.05 // rule A: shrink-and-rebase threshold
	compactionPartialRatio = 0.80 // rule B/C: grow-in-place vs. rebase threshold
)

// DelimiterCodec implements delimiter framing: each message is followed
// by a fixed sentinel byte sequence. The payload is not escaped; callers
// must ensure it never contains the delimiter.
//
// Not safe for concurrent use - Conn creates one instance per connection
// and only its read-loop goroutine calls Decode.
type DelimiterCodec struct {
	delim          []byte
	maxMessageSize int

	buf           []byte
	length        int // valid bytes in buf, [0, length)
	messageStart  int // offset of the in-progress message
	readProgress  int // bytes of the in-progress message scanned so far
	delimProgress int // delim bytes matched so far; on a mismatch restarts at 1 if the byte equals delim[0], else 0
	pendingErr    error
}

// NewDelimiterCodec returns a DelimiterCodec terminating messages with
// delim. maxMessageSize <= 0 selects DefaultMaxMessageSize;
// initialBufferSize <= 0 selects DefaultDelimiterBufferSize. Panics if
// delim is empty, mirroring the wire format's requirement that D have
// length >= 1.
func NewDelimiterCodec(delim []byte, maxMessageSize, initialBufferSize int) *DelimiterCodec {
	if len(delim) == 0 {
		panic("socket: delimiter must not be empty")
	}
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	if initialBufferSize <= 0 {
		initialBufferSize = DefaultDelimiterBufferSize
	}

	d := make([]byte, len(delim))
	copy(d, delim)

	return &DelimiterCodec{
		delim:          d,
		maxMessageSize: maxMessageSize,
		buf:            make([]byte, initialBufferSize),
	}
}

// MaxMessageSize implements SizeAware.
func (c *DelimiterCodec) MaxMessageSize() int { return c.maxMessageSize }

// Encode appends the literal delimiter bytes after the payload.
func (c *DelimiterCodec) Encode(msg Message) ([]byte, error) {
	body := msg.Body()
	if len(body) > c.maxMessageSize {
		return nil, errors.Wrapf(ErrMessageTooLarge, "delimiter encode: %d bytes", len(body))
	}

	out := make([]byte, len(body)+len(c.delim))
	copy(out, body)
	copy(out[len(body):], c.delim)
	return out, nil
}

// Decode implements a scanning state machine: it
// first exhausts any already-buffered bytes for a complete message
// before issuing a new Read, so a single underlying chunk that contains
// several delimiters yields one message per Decode call without
// re-reading the socket.
func (c *DelimiterCodec) Decode(r io.Reader) (Message, error) {
	for {
		for c.messageStart+c.readProgress < c.length {
			idx := c.messageStart + c.readProgress
			b := c.buf[idx]

			if b == c.delim[c.delimProgress] {
				c.delimProgress++
			} else if b == c.delim[0] {
				c.delimProgress = 1
			} else {
				c.delimProgress = 0
			}
			c.readProgress++

			if c.delimProgress == len(c.delim) {
				msgLen := c.readProgress - len(c.delim)
				msg := make([]byte, msgLen)
				copy(msg, c.buf[c.messageStart:c.messageStart+msgLen])

				c.messageStart += c.readProgress
				c.readProgress = 0
				c.delimProgress = 0
				c.compactAfterEmit()

				return bytesMessage(msg), nil
			}

			if c.readProgress > c.maxMessageSize {
				return nil, errors.Wrapf(ErrMessageTooLarge, "delimiter message exceeds %d bytes undelimited", c.maxMessageSize)
			}
		}

		if c.pendingErr != nil {
			err := c.pendingErr
			c.pendingErr = nil
			return nil, err
		}

		c.compactBeforeRead()

		n, err := r.Read(c.buf[c.length:])
		if n > 0 {
			c.length += n
		}
		if err != nil {
			if n == 0 {
				return nil, err
			}
			c.pendingErr = err
		}
	}
}

// compactAfterEmit implements rule A: if the free tail-space past the
// current message start is small relative to the buffer, rebase the
// unconsumed data to offset 0 and shrink the buffer back toward
// DefaultDelimiterBufferSize.
func (c *DelimiterCodec) compactAfterEmit() {
	freeTail := len(c.buf) - c.messageStart
	if float64(freeTail) >= compactionTailRatio*float64(len(c.buf)) {
		return
	}

	data := c.length - c.messageStart
	newCap := DefaultDelimiterBufferSize
	if data > newCap {
		newCap = data
	}

	newBuf := make([]byte, newCap)
	copy(newBuf, c.buf[c.messageStart:c.length])
	c.buf = newBuf
	c.length = data
	c.messageStart = 0
}

// compactBeforeRead implements rules B and C: only engaged when the
// buffer is completely full and another Read is about to be issued.
func (c *DelimiterCodec) compactBeforeRead() {
	if c.length < len(c.buf) {
		return
	}

	partial := c.length - c.messageStart
	if float64(partial) > compactionPartialRatio*float64(len(c.buf)) {
		// Rule B: the partial message already dominates the buffer; a
		// bigger buffer is needed regardless, so grow without moving.
		newBuf := make([]byte, len(c.buf)*2)
		copy(newBuf, c.buf[:c.length])
		c.buf = newBuf
		return
	}

	// Rule C: rebase the partial message to offset 0 without resizing.
	copy(c.buf, c.buf[c.messageStart:c.length])
	c.length = partial
	c.messageStart = 0
}

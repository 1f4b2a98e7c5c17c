package socket

import (
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// NetstringCodec implements D. J. Bernstein's netstring framing:
// "<decimal-length>:<payload>,". Header parsing is bounded by a fixed
// scratch buffer sized to the decimal digit count of MaxMessageSize plus
// one byte for the ':', and leftover
// bytes pulled past a header's ':' (or a body's trailing ',') are kept in
// an internal pending queue rather than re-read from the socket - a
// concrete realisation of the "superfluous bytes... are part
// of the body" netstring rule, done iteratively rather than by recursion.
//
// Not safe for concurrent use - Conn creates one instance per connection
// and only its read-loop goroutine calls Decode.
type NetstringCodec struct {
	maxMessageSize int
	headerCap      int

	scratch    []byte // len == headerCap, reused across header scans
	pending    []byte // bytes already read from the peer, not yet consumed
	pendingErr error  // an I/O error observed while filling pending
}

// NewNetstringCodec returns a NetstringCodec. maxMessageSize <= 0 selects
// DefaultMaxMessageSize.
func NewNetstringCodec(maxMessageSize int) *NetstringCodec {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	headerCap := len(strconv.Itoa(maxMessageSize)) + 1

	return &NetstringCodec{
		maxMessageSize: maxMessageSize,
		headerCap:      headerCap,
		scratch:        make([]byte, headerCap),
	}
}

// MaxMessageSize implements SizeAware.
func (c *NetstringCodec) MaxMessageSize() int { return c.maxMessageSize }

// Encode writes "<len>:<payload>,". Length has no leading zeros except
// for the length zero itself.
func (c *NetstringCodec) Encode(msg Message) ([]byte, error) {
	body := msg.Body()
	if len(body) > c.maxMessageSize {
		return nil, errors.Wrapf(ErrMessageTooLarge, "netstring encode: %d bytes", len(body))
	}

	lengthStr := strconv.Itoa(len(body))
	out := make([]byte, 0, len(lengthStr)+1+len(body)+1)
	out = append(out, lengthStr...)
	out = append(out, ':')
	out = append(out, body...)
	out = append(out, ',')
	return out, nil
}

// pull serves bytes already buffered in c.pending first, then reads from
// r. Like io.Reader.Read, but a previously observed error is stashed and
// only ever returned alongside n == 0, so callers never have to juggle
// "process n bytes, then the error" themselves.
func (c *NetstringCodec) pull(r io.Reader, dst []byte) (int, error) {
	if len(c.pending) > 0 {
		n := copy(dst, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	if c.pendingErr != nil {
		err := c.pendingErr
		c.pendingErr = nil
		return 0, err
	}

	n, err := r.Read(dst)
	if err != nil && n > 0 {
		c.pendingErr = err
		return n, nil
	}
	return n, err
}

// unpull pushes bytes back to the front of the pending queue - used to
// hand header-phase leftovers to the body phase.
func (c *NetstringCodec) unpull(b []byte) {
	if len(b) == 0 {
		return
	}
	merged := make([]byte, 0, len(b)+len(c.pending))
	merged = append(merged, b...)
	merged = append(merged, c.pending...)
	c.pending = merged
}

// Decode reads one "<len>:<payload>," frame.
func (c *NetstringCodec) Decode(r io.Reader) (Message, error) {
	headerLen := 0

	for {
		n, err := c.pull(r, c.scratch[headerLen:])
		for i := headerLen; i < headerLen+n; i++ {
			b := c.scratch[i]
			if b == ':' {
				length, lerr := parseNetstringLength(c.scratch[:i], c.maxMessageSize)
				if lerr != nil {
					return nil, lerr
				}
				c.unpull(cloneBytes(c.scratch[i+1 : headerLen+n]))
				return c.readBody(r, length)
			}
			if b < '0' || b > '9' {
				return nil, ErrNetstringMalformedHeader
			}
		}
		headerLen += n

		if err != nil {
			return nil, err
		}
		if headerLen >= len(c.scratch) {
			return nil, ErrNetstringMalformedHeader
		}
	}
}

// readBody reads the length-byte payload plus its trailing ',' verbatim.
func (c *NetstringCodec) readBody(r io.Reader, length int) (Message, error) {
	body := make([]byte, length+1)
	filled := 0
	for filled < len(body) {
		n, err := c.pull(r, body[filled:])
		filled += n
		if err != nil {
			return nil, err
		}
	}

	if body[length] != ',' {
		return nil, ErrNetstringDelimiterNotFound
	}
	return bytesMessage(body[:length]), nil
}

// parseNetstringLength validates and parses a netstring length field: an
// ASCII decimal numeral with no leading zeros unless the value is zero.
func parseNetstringLength(digits []byte, maxMessageSize int) (int, error) {
	if len(digits) == 0 {
		return 0, ErrNetstringMalformedHeader
	}
	if len(digits) > 1 && digits[0] == '0' {
		return 0, ErrNetstringMalformedHeader
	}

	length, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, errors.Wrap(ErrNetstringMalformedHeader, err.Error())
	}
	if length > maxMessageSize {
		return 0, errors.Wrapf(ErrMessageTooLarge, "netstring header declares %d bytes", length)
	}
	return length, nil
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

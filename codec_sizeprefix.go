package socket

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// sizePrefixHeaderLen is the fixed width of the length header: a big
// endian uint32.
const sizePrefixHeaderLen = 4

// DefaultMaxMessageSize is the default maximum message size (1 GiB),
// used by every built-in codec when no explicit limit is given.
const DefaultMaxMessageSize = 1 << 30

// SizePrefixCodec implements the default wire framing: a 4-byte
// big-endian length header followed by exactly that many payload bytes.
//
// A SizePrefixCodec instance is not safe for concurrent use; Conn creates
// one per connection, and only the connection's own read-loop goroutine
// ever calls Decode.
type SizePrefixCodec struct {
	maxMessageSize int
}

// NewSizePrefixCodec returns a SizePrefixCodec that refuses to encode or
// decode messages larger than maxMessageSize bytes. A non-positive value
// selects DefaultMaxMessageSize.
func NewSizePrefixCodec(maxMessageSize int) *SizePrefixCodec {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &SizePrefixCodec{maxMessageSize: maxMessageSize}
}

// MaxMessageSize implements SizeAware.
func (c *SizePrefixCodec) MaxMessageSize() int { return c.maxMessageSize }

// Encode writes a 4-byte big-endian length header followed by the
// message body into a single contiguous buffer.
func (c *SizePrefixCodec) Encode(msg Message) ([]byte, error) {
	body := msg.Body()
	if len(body) > c.maxMessageSize {
		return nil, errors.Wrapf(ErrMessageTooLarge, "size-prefix encode: %d bytes", len(body))
	}

	out := make([]byte, sizePrefixHeaderLen+len(body))
	binary.BigEndian.PutUint32(out[:sizePrefixHeaderLen], uint32(len(body)))
	copy(out[sizePrefixHeaderLen:], body)
	return out, nil
}

// Decode performs the size-prefixed read state machine: a full 4-byte
// header read, then a full read of exactly the declared length.
// Zero-length messages are legal and decode to an empty body.
func (c *SizePrefixCodec) Decode(r io.Reader) (Message, error) {
	var hdr [sizePrefixHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(hdr[:])
	if int64(length) > int64(c.maxMessageSize) {
		return nil, errors.Wrapf(ErrMessageTooLarge, "size-prefix header declares %d bytes", length)
	}

	body := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
	}

	return bytesMessage(body), nil
}

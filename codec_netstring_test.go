package socket

import (
	"bytes"
	"errors"
	"testing"
)

func TestNetstringCodec_RoundTrip(t *testing.T) {
	codec := NewNetstringCodec(0)

	body := []byte("hello, world")
	encoded, err := codec.Encode(bytesMessage(body))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(encoded) != "12:hello, world," {
		t.Errorf("encoded = %q, want %q", encoded, "12:hello, world,")
	}

	decoded, err := codec.Decode(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decoded.Body(), body) {
		t.Errorf("Body() = %q, want %q", decoded.Body(), body)
	}
}

func TestNetstringCodec_EmptyBody(t *testing.T) {
	codec := NewNetstringCodec(0)

	encoded, err := codec.Encode(bytesMessage(nil))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(encoded) != "0:," {
		t.Errorf("encoded = %q, want %q", encoded, "0:,")
	}

	decoded, err := codec.Decode(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Body()) != 0 {
		t.Errorf("Body() = %q, want empty", decoded.Body())
	}
}

func TestNetstringCodec_MultipleMessagesOneRead(t *testing.T) {
	codec := NewNetstringCodec(0)

	r := bytes.NewReader([]byte("3:one,3:two,5:three,"))

	for _, want := range []string{"one", "two", "three"} {
		msg, err := codec.Decode(r)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if string(msg.Body()) != want {
			t.Errorf("Body() = %q, want %q", msg.Body(), want)
		}
	}
}

func TestNetstringCodec_ArbitraryChunking(t *testing.T) {
	wire := []byte("3:one,3:two,5:three,")

	for chunkSize := 1; chunkSize <= 5; chunkSize++ {
		codec := NewNetstringCodec(0)
		r := &chunkedReader{data: append([]byte(nil), wire...), chunkSize: chunkSize}

		for _, want := range []string{"one", "two", "three"} {
			msg, err := codec.Decode(r)
			if err != nil {
				t.Fatalf("chunkSize=%d: Decode failed: %v", chunkSize, err)
			}
			if string(msg.Body()) != want {
				t.Errorf("chunkSize=%d: Body() = %q, want %q", chunkSize, msg.Body(), want)
			}
		}
	}
}

func TestNetstringCodec_RejectsLeadingZero(t *testing.T) {
	codec := NewNetstringCodec(0)

	_, err := codec.Decode(bytes.NewReader([]byte("03:abc,")))
	if !errors.Is(err, ErrNetstringMalformedHeader) {
		t.Errorf("expected ErrNetstringMalformedHeader, got %v", err)
	}
}

func TestNetstringCodec_AllowsZeroLength(t *testing.T) {
	codec := NewNetstringCodec(0)

	msg, err := codec.Decode(bytes.NewReader([]byte("0:,")))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(msg.Body()) != 0 {
		t.Errorf("Body() = %q, want empty", msg.Body())
	}
}

func TestNetstringCodec_RejectsNonDigitHeader(t *testing.T) {
	codec := NewNetstringCodec(0)

	_, err := codec.Decode(bytes.NewReader([]byte("1a:x,")))
	if !errors.Is(err, ErrNetstringMalformedHeader) {
		t.Errorf("expected ErrNetstringMalformedHeader, got %v", err)
	}
}

func TestNetstringCodec_MissingTrailingComma(t *testing.T) {
	codec := NewNetstringCodec(0)

	_, err := codec.Decode(bytes.NewReader([]byte("3:abc;")))
	if !errors.Is(err, ErrNetstringDelimiterNotFound) {
		t.Errorf("expected ErrNetstringDelimiterNotFound, got %v", err)
	}
}

func TestNetstringCodec_DecodeTooLarge(t *testing.T) {
	codec := NewNetstringCodec(4)

	_, err := codec.Decode(bytes.NewReader([]byte("5:hello,")))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestNetstringCodec_EncodeTooLarge(t *testing.T) {
	codec := NewNetstringCodec(4)

	_, err := codec.Encode(bytesMessage([]byte("hello")))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
}

// TestNetstringCodec_HeaderOverflowWithSmallMax exercises the S7 scenario:
// a numeral long enough to overflow the header scratch buffer before a
// colon ever appears returns the malformed-header error rather than
// hanging or panicking, since the scratch buffer for MAX_MESSAGE_SIZE=100
// has no room for a 12-digit numeral plus colon.
func TestNetstringCodec_HeaderOverflowWithSmallMax(t *testing.T) {
	codec := NewNetstringCodec(100)

	_, err := codec.Decode(bytes.NewReader([]byte("999999999999:body,")))
	if !errors.Is(err, ErrNetstringMalformedHeader) {
		t.Errorf("expected ErrNetstringMalformedHeader, got %v", err)
	}
}

func TestNetstringCodec_SuperfluousBytesAfterColonHandledWithoutExtraRead(t *testing.T) {
	codec := NewNetstringCodec(0)

	// A single Read returns the header, the colon, and the entire body
	// plus trailing comma all at once - the body phase must consume the
	// leftover bytes pulled during the header phase instead of issuing a
	// further Read.
	r := bytes.NewReader([]byte("5:hello,"))

	msg, err := codec.Decode(r)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if string(msg.Body()) != "hello" {
		t.Errorf("Body() = %q, want %q", msg.Body(), "hello")
	}
}

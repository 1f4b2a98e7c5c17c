package cli

import (
	"fmt"

	"github.com/relaycore/tcpsock"
)

// buildCodec constructs the wire codec named by cfg.Mode, applying
// cfg.MaxMessageSize (0 keeps the codec's own default).
func buildCodec(cfg FramingConfig) (socket.Codec, error) {
	switch cfg.Mode {
	case "size-prefix":
		return socket.NewSizePrefixCodec(cfg.MaxMessageSize), nil
	case "delimiter":
		return socket.NewDelimiterCodec([]byte(cfg.Delimiter), cfg.MaxMessageSize, 0), nil
	case "netstring":
		return socket.NewNetstringCodec(cfg.MaxMessageSize), nil
	default:
		return nil, fmt.Errorf("unknown framing mode %q", cfg.Mode)
	}
}

func concurrencyMode(name string) socket.ConcurrencyMode {
	if name == "single-threaded" {
		return socket.SingleThreaded
	}
	return socket.MultiThreaded
}

// connOptionsFactory returns a func() []socket.Option matching the
// signature NewListener/NewDialer expect, so both subcommands build
// their per-connection options identically. A fresh codec is built on
// every call since a codec instance is not safe to share across
// connections.
func connOptionsFactory(framing FramingConfig, logger socket.Logger) (func() []socket.Option, error) {
	if _, err := buildCodec(framing); err != nil {
		return nil, err
	}
	mode := concurrencyMode(framing.Concurrency)

	return func() []socket.Option {
		codec, err := buildCodec(framing)
		if err != nil {
			// Already validated once above; buildCodec is deterministic
			// in its inputs, so this cannot happen in practice.
			panic(err)
		}
		return []socket.Option{
			socket.CustomCodecOption(codec),
			socket.ConcurrencyModeOption(mode),
			socket.LoggerOption(logger),
		}
	}, nil
}

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/relaycore/tcpsock"
)

// echoSink echoes every received message straight back to its sender.
type echoSink struct{}

func (echoSink) Accepted(conn *socket.Conn) {
	slog.Info("accepted", "addr", conn.Addr())
}

func (echoSink) Received(conn *socket.Conn, msg socket.Message) error {
	return conn.Write(msg)
}

func (echoSink) ConnError(conn *socket.Conn, err error) {
	slog.Info("connection closed", "addr", conn.Addr(), "error", err)
}

func (echoSink) Error(err error) {
	slog.Error("listener error", "error", err)
}

func connOptions() []socket.Option {
	return []socket.Option{
		socket.CustomCodecOption(socket.NewSizePrefixCodec(socket.DefaultMaxMessageSize)),
	}
}

func main() {
	ln := socket.NewListener(echoSink{}, connOptions)

	if err := ln.Listen(12345); err != nil {
		slog.Error("failed to listen", "error", err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("server start", "port", 12345)
	<-sigCh

	slog.Info("shutting down server...")
	if err := ln.Close(); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

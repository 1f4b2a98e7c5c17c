package cli

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relaycore/tcpsock"
)

// NewDialCommand builds the "dial" subcommand: it connects to the
// configured host:port, writes each line read from stdin as one
// message, and prints every message received back to stdout.
func NewDialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dial",
		Short: "Connect to a listener and exchange framed messages",
		Long: `Connect to a tcpframed listener.

Each line read from stdin is written as one framed message. Every
message received from the peer is written to stdout as a line. The
connection runs until stdin is closed or the peer disconnects.`,
		RunE: runDial,
	}
	return cmd
}

func runDial(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromCommand(cmd)
	if err != nil {
		return err
	}

	log, err := newLogrusLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	adapter := newLogrusAdapter(log)

	dialTimeout, err := time.ParseDuration(cfg.Dial.DialTimeout)
	if err != nil {
		return fmt.Errorf("parse dial.dial_timeout: %w", err)
	}

	connOptions, err := connOptionsFactory(cfg.Framing, adapter)
	if err != nil {
		return err
	}

	sink := newPrintingSink(cmd.OutOrStdout(), logrus.NewEntry(log))
	dialer := socket.NewDialer(sink, connOptions,
		socket.DialerLoggerOption(adapter),
		socket.DialTimeoutOption(dialTimeout),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	conn, err := dialer.Dial(ctx, cfg.Dial.Host, cfg.Dial.Port)
	if err != nil {
		return fmt.Errorf("dial %s:%d: %w", cfg.Dial.Host, cfg.Dial.Port, err)
	}
	defer conn.Close()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		if err := conn.Write(socket.NewMessage(scanner.Bytes())); err != nil {
			return fmt.Errorf("write message: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	return nil
}

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relaycore/tcpsock"
)

// NewListenCommand builds the "listen" subcommand: it opens a
// socket.Listener on every configured port and prints each received
// message body to stdout, one line per message, until interrupted.
func NewListenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Accept connections and print received messages",
		Long: `Start a tcpframed listener on one or more ports.

Every framed message received on any accepted connection is written to
stdout as a single line. The listener runs until interrupted (SIGINT or
SIGTERM).`,
		RunE: runListen,
	}
	return cmd
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromCommand(cmd)
	if err != nil {
		return err
	}

	log, err := newLogrusLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	adapter := newLogrusAdapter(log)

	connOptions, err := connOptionsFactory(cfg.Framing, adapter)
	if err != nil {
		return err
	}

	sink := newPrintingSink(cmd.OutOrStdout(), logrus.NewEntry(log))
	ln := socket.NewListener(sink, connOptions,
		socket.ListenerLoggerOption(adapter),
		socket.MaxConnectionsOption(cfg.Listen.MaxConnections),
	)

	for _, port := range cfg.Listen.Ports {
		if err := ln.Listen(port); err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen on port %d: %w", port, err)
		}
		log.WithField("port", port).Info("listening")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	return ln.Close()
}

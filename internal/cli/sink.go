package cli

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/relaycore/tcpsock"
)

// printingSink is the socket.Sink both subcommands use: every received
// message is written as a line to out, and every lifecycle event is
// logged through log.
type printingSink struct {
	out io.Writer
	log *logrus.Entry
}

func newPrintingSink(out io.Writer, log *logrus.Entry) *printingSink {
	return &printingSink{out: out, log: log}
}

var _ socket.Sink = (*printingSink)(nil)

func (s *printingSink) Accepted(conn *socket.Conn) {
	s.log.WithField("remote", conn.Addr()).Info("connection established")
}

func (s *printingSink) Received(conn *socket.Conn, msg socket.Message) error {
	if _, err := fmt.Fprintf(s.out, "%s\n", msg.Body()); err != nil {
		return err
	}
	return nil
}

func (s *printingSink) ConnError(conn *socket.Conn, err error) {
	s.log.WithError(err).WithField("remote", conn.Addr()).Warn("connection error")
	_ = conn.Close()
}

func (s *printingSink) Error(err error) {
	s.log.WithError(err).Error("listener/dialer error")
}

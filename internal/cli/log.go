package cli

import (
	"github.com/sirupsen/logrus"

	"github.com/relaycore/tcpsock"
)

// newLogrusLogger builds a logrus.Logger configured per cfg. The CLI
// uses it both for its own operational logging and, wrapped by
// logrusAdapter, as the socket.Logger passed into Listener/Dialer/Conn
// options - a coarser, human-facing log stream distinct from any
// application-level logger a library caller would normally supply.
func newLogrusLogger(cfg LogConfig) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log, nil
}

// logrusAdapter satisfies socket.Logger by forwarding to a
// *logrus.Entry, translating the interface's (msg, key, value, ...)
// pairs into structured fields.
type logrusAdapter struct {
	entry *logrus.Entry
}

var _ socket.Logger = logrusAdapter{}

func newLogrusAdapter(log *logrus.Logger) logrusAdapter {
	return logrusAdapter{entry: logrus.NewEntry(log)}
}

func (a logrusAdapter) Debug(msg string, args ...any) { a.withFields(args).Debug(msg) }
func (a logrusAdapter) Info(msg string, args ...any)  { a.withFields(args).Info(msg) }
func (a logrusAdapter) Warn(msg string, args ...any)  { a.withFields(args).Warn(msg) }
func (a logrusAdapter) Error(msg string, args ...any) { a.withFields(args).Error(msg) }

func (a logrusAdapter) withFields(args []any) *logrus.Entry {
	if len(args) == 0 {
		return a.entry
	}
	fields := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		fields[key] = args[i+1]
	}
	return a.entry.WithFields(fields)
}

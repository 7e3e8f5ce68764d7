// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stderr and to every extra writer.
// format is "text" or "json".
func New(level, format string, extra ...io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	writers := []io.Writer{os.Stderr}
	for _, w := range extra {
		if w != nil {
			writers = append(writers, w)
		}
	}
	l.SetOutput(io.MultiWriter(writers...))
	return l, nil
}

// Component scopes l to one part of the program.
func Component(l *logrus.Logger, name string) *logrus.Entry {
	return l.WithField("component", name)
}

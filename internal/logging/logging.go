package logging

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mickamy/golfstats/orm"
)

// New returns a logger writing to out at the named level. format is
// "text" or "json".
func New(out io.Writer, level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format: %s (must be 'text' or 'json')", format)
	}
	return l, nil
}

// QueryLogger adapts a logrus logger to orm.Logger. Statements are
// logged at debug level; failed ones at warn.
type QueryLogger struct {
	l logrus.FieldLogger
}

// NewQueryLogger wraps l for use with orm.DB.Debug.
func NewQueryLogger(l logrus.FieldLogger) *QueryLogger {
	return &QueryLogger{l: l}
}

func (q *QueryLogger) Log(_ context.Context, e orm.QueryEvent) {
	entry := q.l.WithFields(logrus.Fields{
		"component":   "sql",
		"args":        e.Args,
		"duration_ms": float64(e.Duration.Microseconds()) / 1000,
	})
	if e.Err != nil {
		entry.WithError(e.Err).Warn(e.Query)
		return
	}
	entry.Debug(e.Query)
}

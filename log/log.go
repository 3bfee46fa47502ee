// Package log provides the structured, key/value logging call
// convention used throughout this tree: Info/Warn/Error/Debug each take
// a message followed by alternating keys and values, exactly the shape
// upstream call sites (e.g. eth/stagedsync) already use. It is a thin
// wrapper over zap's SugaredLogger rather than a bespoke implementation.
package log

import (
	"go.uber.org/zap"
)

var root *zap.SugaredLogger

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	root = l.Sugar()
}

// SetGlobal replaces the package-level logger, e.g. to install a
// development logger with human-readable output from a CLI entrypoint.
func SetGlobal(l *zap.SugaredLogger) { root = l }

func Debug(msg string, keysAndValues ...interface{}) { root.Debugw(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...interface{})  { root.Infow(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...interface{})  { root.Warnw(msg, keysAndValues...) }
func Error(msg string, keysAndValues ...interface{}) { root.Errorw(msg, keysAndValues...) }

// New returns a child logger with the given static fields attached,
// mirroring log15-style `log.New("component", "facet-cache")` usage.
func New(keysAndValues ...interface{}) *zap.SugaredLogger {
	return root.With(keysAndValues...)
}

// Package rxcontext carries a structured logger through a context.Context.
package rxcontext

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Context is an alias for the standard library context, kept as a distinct
// name so call sites read as operating on this package's logging context.
type Context = context.Context

type loggerKey struct{}

// Logger provides a leveled-logging interface.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx Context, logger Logger) Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithFields returns a copy of ctx whose logger (falling back to the
// standard logrus logger) has the given fields attached.
func WithFields(ctx Context, fields logrus.Fields) Context {
	base := entryFor(ctx)
	return WithLogger(ctx, &entry{base.WithFields(fields)})
}

// entryFor extracts the underlying *logrus.Entry for ctx's logger, falling
// back to the standard logger if ctx carries no logger of our own type.
func entryFor(ctx Context) *logrus.Entry {
	if e, ok := ctx.Value(loggerKey{}).(*entry); ok {
		return e.Entry
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// GetLogger returns the logger carried by ctx, or the standard logrus
// logger if none was attached.
func GetLogger(ctx Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return &entry{logrus.NewEntry(logrus.StandardLogger())}
}

// GetLoggerWithField returns a logger derived from ctx's logger with one
// extra field, without mutating ctx.
func GetLoggerWithField(ctx Context, key string, value interface{}) Logger {
	return &entry{entryFor(ctx).WithField(key, fmt.Sprint(value))}
}

type entry struct {
	*logrus.Entry
}

var _ Logger = (*entry)(nil)

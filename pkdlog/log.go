// Package pkdlog provides the audit-facing logger used throughout the
// ingest and passive-authentication pipeline.
//
// The teacher repo (boulder) calls a hand-rolled *blog.AuditLogger*
// pervasively (NewCertificateAuthorityImpl, NewSQLStorageAuthority,
// NewValidationAuthorityImpl all log "X Starting" on construction; saves
// log at Debug/Info/Notice), but that package's own source was not part
// of the retrieved corpus. Its call shape is reproduced here on top of
// go-logr/stdr, a small stdlib-backed implementation of the logr.Logger
// interface that the teacher's own go.mod already depends on
// (transitively, via go-logr/logr) through its OpenTelemetry stack.
package pkdlog

import (
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// Logger is the audit-facing logger handed to every component
// constructor. It intentionally exposes a small, named-level surface
// (Debug/Info/Notice/Warning/Error) rather than the raw logr V-levels, to
// match how the teacher's components call their logger.
type Logger struct {
	l logr.Logger
}

// New returns a Logger writing to stderr with the given name, prefixed
// into every line the way the teacher's AuditLogger tags its output.
func New(name string) Logger {
	stdr.SetVerbosity(1)
	base := stdr.New(log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds))
	return Logger{l: base.WithName(name)}
}

// WithValues returns a Logger annotated with structured key/value pairs,
// for correlating log lines with an uploadId or invocationId.
func (l Logger) WithValues(kv ...interface{}) Logger {
	return Logger{l: l.l.WithValues(kv...)}
}

// Debug logs fine-grained diagnostic detail (logr V(2)).
func (l Logger) Debug(msg string, kv ...interface{}) {
	l.l.V(2).Info(msg, kv...)
}

// Info logs routine progress (logr V(0)).
func (l Logger) Info(msg string, kv ...interface{}) {
	l.l.V(0).Info(msg, kv...)
}

// Notice logs a significant lifecycle event, e.g. component startup,
// matching the teacher's "X Starting" convention.
func (l Logger) Notice(msg string, kv ...interface{}) {
	l.l.V(0).Info("NOTICE: "+msg, kv...)
}

// Warning logs a recoverable anomaly.
func (l Logger) Warning(msg string, kv ...interface{}) {
	l.l.V(0).Info("WARNING: "+msg, kv...)
}

// Err logs a hard failure, carrying the underlying error.
func (l Logger) Err(err error, msg string, kv ...interface{}) {
	l.l.Error(err, msg, kv...)
}

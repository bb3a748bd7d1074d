// Package clog is the compiler driver's leveled logger: a thin wrapper
// over the standard library's log.Logger gated by -v/--verbose, in the
// teacher's own habit of a single package-free logger value threaded
// through the driver rather than a global.
package clog

import (
	"fmt"
	"io"
	"log"
	"os"
)

type Level int

const (
	Quiet Level = iota
	Verbose
	Debug
)

// Logger is the one logging handle cmd/cc32 constructs and passes into
// internal/compiler; every pipeline stage that wants to report progress
// (spec.md §6's -v pass-timing output) takes one rather than reaching for
// a package-global.
type Logger struct {
	level Level
	out   *log.Logger
}

func New(level Level, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{level: level, out: log.New(w, "cc32: ", 0)}
}

func (l *Logger) Verbosef(format string, args ...any) {
	if l.level >= Verbose {
		l.out.Output(2, fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Debugf(format string, args ...any) {
	if l.level >= Debug {
		l.out.Output(2, fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Errorf(format string, args ...any) {
	l.out.Output(2, fmt.Sprintf(format, args...))
}

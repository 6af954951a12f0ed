// Package logger provides leveled logging for simmatch.
//
// Debug, info and warn lines are printed only in verbose mode (--verbose),
// showing which search path served a query, when indexes are rebuilt and
// what cleanup removed. Errors are always printed.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type level string

const (
	levelDebug level = "DEBUG"
	levelInfo  level = "INFO"
	levelWarn  level = "WARN"
	levelError level = "ERROR"
)

var (
	// mu guards the settings and serialises writes to output.
	mu      sync.Mutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	verbose = v
	mu.Unlock()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return verbose
}

// SetOutput redirects log lines, os.Stderr by default.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

func write(lvl level, prefix, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !verbose && lvl != levelError {
		return
	}
	fmt.Fprintf(output, "[%s] %s%s\n", lvl, prefix, fmt.Sprintf(format, args...))
}

// Section prints a header between phases in verbose mode.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

func Debug(format string, args ...any) { write(levelDebug, "", format, args...) }
func Info(format string, args ...any)  { write(levelInfo, "", format, args...) }
func Warn(format string, args ...any)  { write(levelWarn, "", format, args...) }

// Error prints regardless of verbose mode.
func Error(format string, args ...any) { write(levelError, "", format, args...) }

// Logger prefixes every line with a component name. It shares the
// package-level verbose flag and output.
type Logger struct {
	prefix string
}

// For returns a logger for the named component.
func For(component string) *Logger {
	return &Logger{prefix: component + ": "}
}

func (l *Logger) Debug(format string, args ...any) { write(levelDebug, l.prefix, format, args...) }
func (l *Logger) Info(format string, args ...any)  { write(levelInfo, l.prefix, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { write(levelWarn, l.prefix, format, args...) }
func (l *Logger) Error(format string, args ...any) { write(levelError, l.prefix, format, args...) }

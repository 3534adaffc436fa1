package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/vvka-141/classload/internal/tui"
	"github.com/vvka-141/classload/pkg/classload"
)

// ConsoleLogger writes progress messages to one stream and diagnostics
// (verbose and error output) to another. Output is styled only when the
// destination is an interactive terminal.
// Safe for concurrent use by multiple goroutines.
type ConsoleLogger struct {
	verbose bool
	out     io.Writer
	errOut  io.Writer
	styled  bool
	mu      sync.Mutex
}

// NewConsoleLogger creates a ConsoleLogger writing progress to stdout
// and diagnostics to stderr.
// If verbose is false, Verbose() calls are no-ops.
func NewConsoleLogger(verbose bool) *ConsoleLogger {
	return NewConsoleLoggerTo(os.Stdout, os.Stderr, verbose)
}

// NewConsoleLoggerTo creates a ConsoleLogger with explicit destinations.
func NewConsoleLoggerTo(out, errOut io.Writer, verbose bool) *ConsoleLogger {
	return &ConsoleLogger{
		verbose: verbose,
		out:     out,
		errOut:  errOut,
		styled:  tui.IsInteractive(out),
	}
}

// Verbose logs detailed diagnostic information if verbose mode is enabled.
func (l *ConsoleLogger) Verbose(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	l.write(l.errOut, tui.VerboseStyle, "[VERBOSE] ", format, args...)
}

// Info logs progress messages about normal operations.
func (l *ConsoleLogger) Info(format string, args ...interface{}) {
	l.write(l.out, tui.ProgressStyle, "", format, args...)
}

// Error logs error messages.
func (l *ConsoleLogger) Error(format string, args ...interface{}) {
	l.write(l.errOut, tui.ErrorStyle, "[ERROR] ", format, args...)
}

func (l *ConsoleLogger) write(w io.Writer, style lipgloss.Style, prefix, format string, args ...interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	msg = prefix + msg
	if l.styled {
		msg = style.Render(msg)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(w, msg)
}

// Verify ConsoleLogger implements the Logger interface at compile time
var _ classload.Logger = (*ConsoleLogger)(nil)

package tui

import (
	"io"
	"os"

	"golang.org/x/term"
)

// Mode represents the interaction mode for classload.
type Mode int

const (
	// ModeNonInteractive is used for CI/CD pipelines, scripts, and piped output.
	ModeNonInteractive Mode = iota
	// ModeInteractive is used when a human is at the terminal.
	ModeInteractive
)

// DetectMode determines whether w is a terminal that should receive styled output.
//
// Returns ModeNonInteractive if:
//   - w is not an *os.File attached to a terminal
//   - CLASSLOAD_NON_INTERACTIVE=1 is set
//   - CI is set (common CI/CD convention)
//   - NO_COLOR is set
func DetectMode(w io.Writer) Mode {
	if os.Getenv("CLASSLOAD_NON_INTERACTIVE") == "1" {
		return ModeNonInteractive
	}
	if os.Getenv("CI") != "" {
		return ModeNonInteractive
	}
	if os.Getenv("NO_COLOR") != "" {
		return ModeNonInteractive
	}

	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return ModeNonInteractive
	}

	return ModeInteractive
}

// IsInteractive is a convenience function that returns true if w is an interactive terminal.
func IsInteractive(w io.Writer) bool {
	return DetectMode(w) == ModeInteractive
}

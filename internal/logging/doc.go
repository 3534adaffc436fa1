// Package logging provides concrete implementations of the classload.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: Progress to stdout, diagnostics to stderr, styled on terminals
//   - NullLogger: Discards all messages (useful for testing)
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging

package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/vvka-141/classload/internal/cli"
	"github.com/vvka-141/classload/pkg/classload"
)

func main() {
	os.Exit(run(os.Stderr))
}

// run executes the root command and returns the process exit code.
// A panic is reported on stderr with its stack and yields ExitPanic.
func run(stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "panic: %v\n%s\n", r, debug.Stack())
			code = classload.ExitPanic
		}
	}()

	// Lets tests exercise the crash path of the built binary
	if os.Getenv("CLASSLOAD_TEST_PANIC") == "1" {
		panic("intentional test panic")
	}

	if err := cli.Execute(); err != nil {
		return classload.ExitCodeForError(err)
	}
	return classload.ExitSuccess
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// exitError carries a non-zero exit status for a run that completed with
// failed jobs.
type exitError struct {
	code   int
	failed int
}

func (e *exitError) Error() string {
	if e.failed == 1 {
		return "1 job failed"
	}
	return fmt.Sprintf("%d jobs failed", e.failed)
}

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	os.Exit(exitCode(cmd.ErrOrStderr(), err))
}

// exitCode reports err on w and maps it to the process exit status.
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		fmt.Fprintln(w, exit.Error())
		return exit.code
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, err)
	}
	return 1
}

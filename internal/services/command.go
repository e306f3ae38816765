package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// StderrTailLines is the number of trailing stderr lines kept for error messages.
const StderrTailLines = 20

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// CommandExecutor runs binaries as child processes. Output lines from both
// streams are forwarded to onLine; a non-zero exit returns an error carrying
// the stderr tail.
type CommandExecutor struct{}

func (CommandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Converters are JVM launch scripts; kill the whole process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		scanErr error
		once    sync.Once
		tail    = newLineTail(StderrTailLines)
	)

	scan := func(r io.Reader, keep bool) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if keep {
				tail.add(line)
			}
			if onLine != nil {
				mu.Lock()
				onLine(line)
				mu.Unlock()
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout, false)
	go scan(stderr, true)
	wg.Wait()

	if waitErr := cmd.Wait(); waitErr != nil {
		if ctxErr := ContextError(ctx); ctxErr != nil {
			return fmt.Errorf("%s killed: %w", binary, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &CommandError{Binary: binary, ExitCode: exitErr.ExitCode(), Stderr: tail.lines(), err: waitErr}
		}
		return fmt.Errorf("wait command: %w", waitErr)
	}
	if scanErr != nil && !errors.Is(scanErr, io.ErrClosedPipe) {
		return fmt.Errorf("scan output: %w", scanErr)
	}
	return nil
}

// CommandError reports a non-zero exit from an external tool.
type CommandError struct {
	Binary   string
	ExitCode int
	Stderr   []string
	err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Binary, e.ExitCode)
	if len(e.Stderr) > 0 {
		msg += ": " + strings.Join(e.Stderr, "\n")
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.err }

type lineTail struct {
	mu    sync.Mutex
	max   int
	items []string
}

func newLineTail(max int) *lineTail {
	return &lineTail{max: max}
}

func (t *lineTail) add(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, line)
	if len(t.items) > t.max {
		t.items = t.items[len(t.items)-t.max:]
	}
}

func (t *lineTail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.items...)
}

// CommandLine renders binary and args the way an operator would type them.
func CommandLine(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, part := range append([]string{binary}, args...) {
		if part == "" || strings.ContainsAny(part, " \t\"'") {
			part = fmt.Sprintf("%q", part)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}

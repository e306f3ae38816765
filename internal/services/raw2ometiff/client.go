// Package raw2ometiff wraps the raw2ometiff CLI, which writes a pyramidal
// OME-TIFF from a bioformats2raw intermediate directory.
package raw2ometiff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"wsiconvert/internal/logging"
	"wsiconvert/internal/services"
)

// Stage is the workflow stage name used in logs, errors, and the ledger.
const Stage = "raw2ometiff"

// Converter defines the behaviour required by the stage 2 wave.
type Converter interface {
	Convert(ctx context.Context, rawDir, output string, rgb bool) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger attaches a logger for command echo and tool output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithExtraArgs appends operator-supplied arguments after the positional ones.
func WithExtraArgs(args []string) Option {
	return func(c *Client) {
		c.extraArgs = append([]string(nil), args...)
	}
}

// Client wraps raw2ometiff CLI interactions.
type Client struct {
	binary    string
	timeout   time.Duration
	extraArgs []string
	exec      services.Executor
	logger    *slog.Logger
}

// New constructs a raw2ometiff client.
func New(binary string, timeout time.Duration, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("raw2ometiff binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: timeout,
		exec:    services.CommandExecutor{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Convert writes the OME-TIFF container at output. An existing output file is
// removed first because raw2ometiff will not overwrite.
func (c *Client) Convert(ctx context.Context, rawDir, output string, rgb bool) error {
	info, err := os.Stat(rawDir)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, Stage, "stat intermediate", rawDir, err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrExternalTool, Stage, "stat intermediate", rawDir+" is not a directory", nil)
	}
	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrExternalTool, Stage, "prepare", "remove stale output", err)
	}

	args := make([]string, 0, 3+len(c.extraArgs))
	if rgb {
		args = append(args, "--rgb")
	}
	args = append(args, rawDir, output)
	args = append(args, c.extraArgs...)

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logger := logging.WithContext(ctx, c.logger)
	logger.Info(">>> "+services.CommandLine(c.binary, args), logging.String(logging.FieldEventType, "tool_invoke"))
	if err := c.exec.Run(runCtx, c.binary, args, func(line string) {
		logger.Debug("tool output", logging.String("line", line))
	}); err != nil {
		return services.Wrap(services.ErrExternalTool, Stage, "convert", rawDir, err)
	}

	if info, err := os.Stat(output); err != nil || !info.Mode().IsRegular() {
		return services.Wrap(services.ErrExternalTool, Stage, "convert", fmt.Sprintf("no output file at %s", output), err)
	}
	return nil
}

// Package bioformats2raw wraps the bioformats2raw CLI, which converts a
// vendor slide into an intermediate Zarr directory.
package bioformats2raw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"wsiconvert/internal/logging"
	"wsiconvert/internal/services"
)

// Stage is the workflow stage name used in logs, errors, and the ledger.
const Stage = "bioformats2raw"

// Converter defines the behaviour required by the stage 1 wave.
type Converter interface {
	Convert(ctx context.Context, source, rawDir string) error
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

// WithSeries selects the image series to extract.
func WithSeries(series int) Option {
	return func(c *Client) {
		if series >= 0 {
			c.series = series
		}
	}
}

// WithExtraArgs appends operator-supplied arguments after the positional ones.
func WithExtraArgs(args []string) Option {
	return func(c *Client) {
		c.extraArgs = append([]string(nil), args...)
	}
}

// Client wraps bioformats2raw CLI interactions.
type Client struct {
	binary    string
	timeout   time.Duration
	series    int
	extraArgs []string
	exec      services.Executor
	logger    *slog.Logger
}

// New constructs a bioformats2raw client. A zero timeout disables the
// per-invocation deadline.
func New(binary string, timeout time.Duration, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("bioformats2raw binary required")
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

// Convert writes source into rawDir. Any existing rawDir is removed first
// because bioformats2raw refuses to write into a populated directory.
func (c *Client) Convert(ctx context.Context, source, rawDir string) error {
	if rawDir == "" {
		return services.Wrap(services.ErrInvalidInputPath, Stage, "prepare", "intermediate directory required", nil)
	}
	info, err := os.Stat(source)
	if err != nil {
		return services.Wrap(services.ErrInvalidInputPath, Stage, "stat source", source, err)
	}
	if !info.Mode().IsRegular() {
		return services.Wrap(services.ErrInvalidInputPath, Stage, "stat source", source+" is not a regular file", nil)
	}
	if err := os.RemoveAll(rawDir); err != nil {
		return services.Wrap(services.ErrExternalTool, Stage, "prepare", "remove stale intermediate", err)
	}
	if err := os.MkdirAll(filepath.Dir(rawDir), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, Stage, "prepare", "create output root", err)
	}

	args := []string{source, rawDir, "--series=" + strconv.Itoa(c.series)}
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
		return services.Wrap(services.ErrExternalTool, Stage, "convert", filepath.Base(source), err)
	}

	if _, err := os.Stat(rawDir); err != nil {
		return services.Wrap(services.ErrExternalTool, Stage, "convert", fmt.Sprintf("no intermediate produced at %s", rawDir), err)
	}
	return nil
}

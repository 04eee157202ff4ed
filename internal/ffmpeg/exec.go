package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// runFn runs a command and returns its stdout and stderr.
type runFn func(ctx context.Context, path string, args []string) (stdout []byte, stderr string, err error)

// Executor runs FFmpeg commands with injectable dependencies.
type Executor struct {
	run runFn
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRun sets a custom run function (for testing).
func WithRun(fn runFn) ExecutorOption {
	return func(e *Executor) { e.run = fn }
}

// NewExecutor creates an Executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{run: defaultRun}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOutput executes FFmpeg and returns its stderr output.
// FFmpeg writes diagnostics (probe info, silencedetect lines) to stderr, and
// the output is returned even on failure since it is often still useful.
func (e *Executor) RunOutput(ctx context.Context, ffmpegPath string, args []string) (string, error) {
	_, stderr, err := e.run(ctx, ffmpegPath, args)
	if err != nil {
		return stderr, fmt.Errorf("%w: %w", ErrExecFailed, err)
	}
	return stderr, nil
}

// Stdout executes FFmpeg and returns its stdout, typically a piped media stream.
// On failure the last lines of stderr are included in the error.
func (e *Executor) Stdout(ctx context.Context, ffmpegPath string, args []string) ([]byte, error) {
	stdout, stderr, err := e.run(ctx, ffmpegPath, args)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w: %s", ErrExecFailed, err, tail(stderr, 3))
	}
	return stdout, nil
}

func defaultRun(ctx context.Context, ffmpegPath string, args []string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.String(), err
}

// tail returns the last n non-empty lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// Package runner executes external programs and captures their output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelayAfterKill is the grace period for a process to exit after context
// cancellation before it is forcibly killed.
const waitDelayAfterKill = 500 * time.Millisecond

// DefaultMaxOutputBytes bounds the captured stdout and stderr of one run.
const DefaultMaxOutputBytes = 1 << 20

// Result is the outcome of one program execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExitError is returned when a program exits non-zero and the caller did
// not ask for AllowFailure.
type ExitError struct {
	Args []string
	Result
}

// Error returns the formatted error string.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("runner: %s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Runner runs external programs.
type Runner interface {
	Run(ctx context.Context, args []string, opts ...Option) (*Result, error)
}

// Settings is the resolved form of a Run call's options.
type Settings struct {
	Capture      bool
	AllowFailure bool
	Stdin        []byte
	Env          []string
}

// Option adjusts a single Run call.
type Option func(*Settings)

// Apply resolves opts on top of the defaults (capture on, failure raised).
// Runner implementations, including test doubles, use it to read options.
func Apply(opts ...Option) Settings {
	s := Settings{Capture: true}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Capture controls whether output is captured (the default) or passed
// through to the runner's own stdout and stderr.
func Capture(capture bool) Option {
	return func(s *Settings) { s.Capture = capture }
}

// AllowFailure makes Run return the Result with a nil error on non-zero
// exit. Failures to start the program are still returned.
func AllowFailure() Option {
	return func(s *Settings) { s.AllowFailure = true }
}

// Stdin feeds data to the program's standard input.
func Stdin(data []byte) Option {
	return func(s *Settings) { s.Stdin = data }
}

// Env appends KEY=VALUE pairs to the inherited environment.
func Env(kv ...string) Option {
	return func(s *Settings) { s.Env = append(s.Env, kv...) }
}

// Exec runs programs with os/exec.
type Exec struct {
	maxOutput int
	stdout    io.Writer
	stderr    io.Writer
	logger    *slog.Logger
}

// NewExec returns a Runner backed by os/exec. Uncaptured output goes to
// os.Stdout and os.Stderr.
func NewExec(logger *slog.Logger) *Exec {
	return &Exec{
		maxOutput: DefaultMaxOutputBytes,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		logger:    logger.With("component", "runner"),
	}
}

// Run executes args[0] with the remaining arguments.
func (e *Exec) Run(ctx context.Context, args []string, opts ...Option) (*Result, error) {
	if len(args) == 0 {
		return nil, errors.New("runner: empty command")
	}
	o := Apply(opts...)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.WaitDelay = waitDelayAfterKill
	if len(o.Env) > 0 {
		cmd.Env = append(os.Environ(), o.Env...)
	}
	if o.Stdin != nil {
		cmd.Stdin = bytes.NewReader(o.Stdin)
	}

	stdoutW := newLimitedWriter(int64(e.maxOutput))
	stderrW := newLimitedWriter(int64(e.maxOutput))
	if o.Capture {
		cmd.Stdout = stdoutW
		cmd.Stderr = stderrW
	} else {
		cmd.Stdout = e.stdout
		cmd.Stderr = io.MultiWriter(e.stderr, stderrW)
	}

	e.logger.Debug("starting external process", "args", args)
	runErr := cmd.Run()

	res := &Result{
		Stdout: string(stdoutW.buf),
		Stderr: string(stderrW.buf),
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("runner: %s: %w", args[0], runErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	e.logger.Debug("process finished", "args", args, "exit_code", res.ExitCode)

	if res.ExitCode != 0 && !o.AllowFailure {
		return res, &ExitError{Args: args, Result: *res}
	}
	return res, nil
}

// limitedWriter is an io.Writer that discards bytes beyond a maximum limit.
type limitedWriter struct {
	buf []byte
	max int64
}

func newLimitedWriter(max int64) *limitedWriter {
	return &limitedWriter{max: max}
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	remaining := w.max - int64(len(w.buf))
	if remaining > 0 {
		n := int64(len(p))
		if n > remaining {
			n = remaining
		}
		w.buf = append(w.buf, p[:n]...)
	}
	// Always report full length so the process does not see a short write.
	return len(p), nil
}

// Package runner invokes OS utilities and buffers their output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner runs a command line and returns its full stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// ToolError reports a utility that could not be started or exited non-zero.
// ExitStatus is -1 when the process never produced an exit code.
type ToolError struct {
	Tool       string
	Args       []string
	ExitStatus int
	Stderr     string
	Err        error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Tool, strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// waitDelay bounds the wait for output pipes after a killed process.
const waitDelay = 2 * time.Second

// ExecRunner runs commands with os/exec. A zero Timeout means no limit.
type ExecRunner struct {
	Timeout time.Duration
}

func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("runner: empty command")
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	stderr := &bytes.Buffer{}
	stdout := &bytes.Buffer{}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec
	cmd.Stderr = stderr
	cmd.Stdout = stdout
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		status := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			status = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return "", &ToolError{
			Tool:       args[0],
			Args:       args[1:],
			ExitStatus: status,
			Stderr:     stderr.String(),
			Err:        err,
		}
	}

	return stdout.String(), nil
}

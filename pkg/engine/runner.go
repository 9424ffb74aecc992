package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// ExecRunner runs commands as local processes.
type ExecRunner struct{}

// NewExecRunner creates a process-backed command runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command, capturing combined output. A non-zero exit is
// reported through the result, not the error.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (CommandResult, error) {
	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	var buf bytes.Buffer
	c.Stdout = &buf
	c.Stderr = &buf

	err := c.Run()
	result := CommandResult{Output: buf.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr):
		if ctx.Err() != nil {
			// The process died because the context expired; report that
			// rather than the kill's exit code.
			return result, ctx.Err()
		}
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	default:
		return result, err
	}
}

package engine

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/vertextoedge/localai-desktop/internal/port"
)

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Ensure ExecRunner implements port.CommandRunner
var _ port.CommandRunner = (*ExecRunner)(nil)

// NewExecRunner creates a new ExecRunner
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes name with args and waits for it to exit
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*port.CommandResult, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &port.CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, err
}

package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"slices"
	"time"
)

// Exit codes reported for failures that are not a process exit status.
const (
	ExitCodeGeneric  = 1
	ExitCodeTimeout  = 124
	ExitCodeNotFound = 127
	ExitCodeCanceled = 130
)

// waitDelay bounds how long a killed command may keep its output pipes open
// through orphaned children.
const waitDelay = 5 * time.Second

// ExitCode maps the error of a finished command to an exit code.
func ExitCode(ctx context.Context, err error) int {
	if err == nil {
		return 0
	}
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ExitCodeTimeout
	case context.Canceled:
		return ExitCodeCanceled
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if code := ee.ExitCode(); code > 0 {
			return code
		}
		return ExitCodeGeneric
	}
	if errors.Is(err, exec.ErrNotFound) {
		return ExitCodeNotFound
	}
	return ExitCodeGeneric
}

// EnvList renders env as sorted KEY=VALUE pairs for exec.Cmd.
func EnvList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	slices.Sort(out)
	return out
}

type command struct {
	name   string
	args   []string
	dir    string
	env    map[string]string
	output io.Writer
}

// runCommand executes c, streaming combined output to c.output while
// capturing it. The returned result is never nil.
func runCommand(ctx context.Context, c command) (*StepResult, error) {
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Dir = c.dir
	cmd.Env = EnvList(c.env)
	cmd.WaitDelay = waitDelay

	var buf bytes.Buffer
	var w io.Writer = &buf
	if c.output != nil {
		w = io.MultiWriter(&buf, c.output)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	result := &StepResult{ExitCode: ExitCode(ctx, err), Output: buf.Bytes()}
	if err != nil {
		return result, fmt.Errorf("%s exited with code %d: %w", c.name, result.ExitCode, err)
	}
	return result, nil
}

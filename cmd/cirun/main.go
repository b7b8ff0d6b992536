package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

var version = "dev"

const (
	_ = iota
	exitToolErrors
	exitUsage
	exitNotTriggered
	exitInvalidWorkflow
	exitDotenvError
	exitLoadSettingsFailed
)

// exitError carries the process exit code for an error returned by a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps an error to the process exit code. A silent exitError has
// already been reported.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitToolErrors
}

// stepExitCode clamps a step exit code to what a process can return.
func stepExitCode(code int) int {
	if code < 1 || code > 255 {
		return exitToolErrors
	}
	return code
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}
	var ee *exitError
	if !errors.As(err, &ee) || ee.err != nil {
		slog.Error("cirun failed", "error", err)
	}
	os.Exit(exitCode(err))
}

// includeEnv loads .env into the process environment when present.
func includeEnv() (bool, error) {
	err := godotenv.Load()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, withExitCode(exitDotenvError, fmt.Errorf("failed to load .env: %w", err))
	}
	return true, nil
}

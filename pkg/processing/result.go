package processing

import (
	"errors"
	"fmt"
	"time"

	"github.com/systemstart/cirun/pkg/api"
)

// ErrNoSteps is returned when Execute is called with an empty step list.
var ErrNoSteps = errors.New("no steps to execute")

// ErrNotTriggered is returned when an event does not match a workflow's
// trigger. No run is created.
var ErrNotTriggered = errors.New("event does not match workflow trigger")

// Status is the terminal state of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StepRecord describes one executed step.
type StepRecord struct {
	Index     int           `json:"index"`
	Name      string        `json:"name"`
	ExitCode  int           `json:"exitCode"`
	Duration  time.Duration `json:"duration"`
	LogPath   string        `json:"logPath,omitempty"`
	LogDigest string        `json:"logDigest,omitempty"`
}

// RunResult is the terminal result of a run: either success, or failed at
// FailedStep (1-based) with ExitCode. Steps lists every step that started.
type RunResult struct {
	RunID      string       `json:"runId"`
	Workflow   string       `json:"workflow"`
	Event      api.Event    `json:"event"`
	Status     Status       `json:"status"`
	FailedStep int          `json:"failedStep,omitempty"`
	ExitCode   int          `json:"exitCode"`
	Steps      []StepRecord `json:"steps"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`

	Failure *StepFailure `json:"-"`
}

// Succeeded reports whether every step exited 0.
func (r *RunResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Err returns the step failure, or nil on success.
func (r *RunResult) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

func (r *RunResult) fail(f *StepFailure) {
	r.Status = StatusFailed
	r.FailedStep = f.Index
	r.ExitCode = f.ExitCode
	r.Failure = f
}

// StepFailure is the single failure kind of a run: a step that did not exit 0.
// Build, format, lint and test failures are reported the same way.
type StepFailure struct {
	Index    int
	Name     string
	ExitCode int
	Output   []byte
	Err      error
}

func (f *StepFailure) Error() string {
	return fmt.Sprintf("step %d (%s) failed with exit code %d", f.Index, f.Name, f.ExitCode)
}

func (f *StepFailure) Unwrap() error { return f.Err }

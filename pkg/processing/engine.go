package processing

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/systemstart/cirun/pkg/steps"
)

// Observer is notified after every step that ran. It may annotate rec.
type Observer interface {
	StepFinished(rec *StepRecord, output []byte)
}

// Executor runs an ordered list of steps in one workspace.
type Executor struct {
	WorkDir   string
	SourceDir string
	Output    io.Writer
	Data      map[string]any // template data shared by every step
	Observer  Observer
}

// Execute runs steps strictly in order and stops at the first step whose exit
// code is not 0. Each step sees env merged with its own overrides, overrides
// winning. Exports of a successful step are added to env for later steps.
//
// The returned result is always either success or failed; an error is only
// returned when steps is empty.
func (e *Executor) Execute(ctx context.Context, list []steps.Step, env map[string]string) (*RunResult, error) {
	if len(list) == 0 {
		return nil, ErrNoSteps
	}

	result := &RunResult{Status: StatusSuccess, StartedAt: time.Now()}
	runEnv := MergeEnv(env, nil)

	for i, step := range list {
		index := i + 1

		if err := ctx.Err(); err != nil {
			slog.Warn("run stopped before step", "index", index, "step", step.Name(), "error", err)
			result.fail(&StepFailure{Index: index, Name: step.Name(), ExitCode: steps.ExitCode(ctx, err), Err: err})
			break
		}

		stepEnv := MergeEnv(runEnv, step.Env())
		slog.Info("running step", "index", index, "step", step.Name())

		start := time.Now()
		res, err := step.Run(ctx, steps.StepContext{
			WorkDir:      e.WorkDir,
			SourceDir:    e.SourceDir,
			Env:          stepEnv,
			TemplateData: e.templateData(stepEnv),
			Output:       e.Output,
		})
		code, output := outcome(res, err)

		rec := StepRecord{Index: index, Name: step.Name(), ExitCode: code, Duration: time.Since(start)}
		if e.Observer != nil {
			e.Observer.StepFinished(&rec, output)
		}
		result.Steps = append(result.Steps, rec)

		if code != 0 {
			slog.Error("step failed", "index", index, "step", step.Name(), "exitCode", code, "error", err)
			result.fail(&StepFailure{Index: index, Name: step.Name(), ExitCode: code, Output: output, Err: err})
			break
		}

		slog.Info("step succeeded", "index", index, "step", step.Name(), "duration", rec.Duration)
		if res != nil {
			maps.Copy(runEnv, res.Exports)
		}
	}

	result.FinishedAt = time.Now()
	return result, nil
}

// outcome normalises what a step returned into an exit code and output.
// An error always yields a non-zero code.
func outcome(res *steps.StepResult, err error) (int, []byte) {
	var (
		code   int
		output []byte
	)
	if res != nil {
		code, output = res.ExitCode, res.Output
	}
	if err != nil && code == 0 {
		code = steps.ExitCodeGeneric
	}
	return code, output
}

func (e *Executor) templateData(env map[string]string) map[string]any {
	data := make(map[string]any, len(e.Data)+1)
	maps.Copy(data, e.Data)
	data["Env"] = env
	return data
}

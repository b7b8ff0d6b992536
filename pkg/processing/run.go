package processing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"
	"github.com/systemstart/cirun/pkg/api"
	"github.com/systemstart/cirun/pkg/steps"
	"github.com/systemstart/cirun/pkg/storage"
)

// RunOptions configures how a workflow run is hosted. The zero value runs in
// a temporary workspace that is removed afterwards, with no timeout.
type RunOptions struct {
	RunID         string // generated when empty
	WorkspaceRoot string // parent of the run workspace; os.TempDir when empty
	KeepWorkspace bool
	SourceDir     string // checkout source; the workflow's repository when empty
	EnvFile       string
	PassEnv       []string // host variables to inherit; DefaultPassEnv when nil
	NoColor       bool
	Timeout       time.Duration // whole-run limit; zero means none
	Output        io.Writer
	Logs          *storage.LogStore
}

// Dispatch evaluates the workflow trigger against ev and runs the workflow
// only when it matches. A non-matching event returns ErrNotTriggered and
// creates nothing.
func Dispatch(ctx context.Context, w *api.Workflow, ev api.Event, opts RunOptions) (*RunResult, error) {
	if !w.On.Matches(ev) {
		slog.Debug("event does not match trigger", "workflow", w.DisplayName(), "event", ev.Kind, "branch", ev.Branch)
		return nil, ErrNotTriggered
	}
	return RunWorkflow(ctx, w, ev, opts)
}

// Outcome pairs a workflow with the result of dispatching an event to it.
type Outcome struct {
	Workflow *api.Workflow
	Result   *RunResult
	Err      error
}

// Triggered reports whether a run was created.
func (o Outcome) Triggered() bool {
	return !errors.Is(o.Err, ErrNotTriggered)
}

// DispatchAll dispatches ev to every workflow. Matching workflows run
// concurrently, each in its own workspace; outcomes keep the input order.
// opts.RunID is ignored.
func DispatchAll(ctx context.Context, workflows []*api.Workflow, ev api.Event, opts RunOptions) []Outcome {
	opts.RunID = ""
	return runEach(workflows, func(w *api.Workflow) (*RunResult, error) {
		return Dispatch(ctx, w, ev, opts)
	})
}

// RunAll runs every workflow for ev without consulting its trigger, for
// callers that already selected the workflows. Runs are concurrent like
// DispatchAll, and opts.RunID is ignored.
func RunAll(ctx context.Context, workflows []*api.Workflow, ev api.Event, opts RunOptions) []Outcome {
	opts.RunID = ""
	return runEach(workflows, func(w *api.Workflow) (*RunResult, error) {
		return RunWorkflow(ctx, w, ev, opts)
	})
}

func runEach(workflows []*api.Workflow, run func(*api.Workflow) (*RunResult, error)) []Outcome {
	return iter.Map(workflows, func(w **api.Workflow) Outcome {
		res, err := run(*w)
		return Outcome{Workflow: *w, Result: res, Err: err}
	})
}

// RunWorkflow runs every step of w for ev in a fresh workspace. Step
// failures are reported in the result; the error is reserved for runs that
// could not be set up.
func RunWorkflow(ctx context.Context, w *api.Workflow, ev api.Event, opts RunOptions) (*RunResult, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	list, err := steps.NewSteps(w.Steps)
	if err != nil {
		return nil, err
	}

	sourceDir := opts.SourceDir
	if sourceDir == "" {
		if sourceDir, err = RepositoryRoot(w); err != nil {
			return nil, err
		}
	}

	workspace, err := createWorkspace(opts.WorkspaceRoot, runID)
	if err != nil {
		return nil, err
	}
	if !opts.KeepWorkspace {
		defer removeWorkspace(workspace)
	}

	env, err := runEnv(w, ev, runID, workspace, opts)
	if err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	slog.Info("starting run", "runId", runID, "workflow", w.DisplayName(), "event", ev.Kind, "branch", ev.Branch, "workspace", workspace)

	exec := &Executor{
		WorkDir:   workspace,
		SourceDir: sourceDir,
		Output:    opts.Output,
		Data: map[string]any{
			"RunID":    runID,
			"Workflow": w.DisplayName(),
			"Event":    ev,
		},
	}
	if opts.Logs != nil {
		exec.Observer = &logObserver{store: opts.Logs, runID: runID}
	}

	result, err := exec.Execute(ctx, list, env)
	if err != nil {
		return nil, fmt.Errorf("executing workflow %s: %w", w.DisplayName(), err)
	}
	result.RunID = runID
	result.Workflow = w.DisplayName()
	result.Event = ev

	if result.Succeeded() {
		slog.Info("run succeeded", "runId", runID, "workflow", result.Workflow)
	} else {
		slog.Error("run failed", "runId", runID, "workflow", result.Workflow, "error", result.Err())
	}
	return result, nil
}

// runEnv assembles the environment of one run. Later layers win: host
// passthrough, env file, workflow env, colour flag, run metadata.
func runEnv(w *api.Workflow, ev api.Event, runID, workspace string, opts RunOptions) (map[string]string, error) {
	pass := opts.PassEnv
	if pass == nil {
		pass = DefaultPassEnv
	}
	env := PassEnv(pass)

	if opts.EnvFile != "" {
		fileEnv, err := LoadEnvFile(opts.EnvFile)
		if err != nil {
			return nil, err
		}
		maps.Copy(env, fileEnv)
	}

	maps.Copy(env, w.Env)
	maps.Copy(env, ColorEnv(opts.NoColor))
	maps.Copy(env, map[string]string{
		"CI":              "true",
		"CIRUN_RUN_ID":    runID,
		"CIRUN_WORKFLOW":  w.DisplayName(),
		"CIRUN_EVENT":     string(ev.Kind),
		"CIRUN_BRANCH":    ev.Branch,
		"CIRUN_WORKSPACE": workspace,
	})
	return env, nil
}

type logObserver struct {
	store *storage.LogStore
	runID string
}

func (o *logObserver) StepFinished(rec *StepRecord, output []byte) {
	path, digest, err := o.store.Save(o.runID, rec.Index, rec.Name, output)
	if err != nil {
		slog.Warn("failed to save step log", "runId", o.runID, "step", rec.Name, "error", err)
		return
	}
	rec.LogPath = path
	rec.LogDigest = digest
}

package steps

import (
	"context"
	"io"
)

// StepContext provides the runtime context for a step.
type StepContext struct {
	WorkDir      string            // run workspace
	SourceDir    string            // default checkout source
	Env          map[string]string // run environment merged with the step's overrides
	TemplateData map[string]any
	Output       io.Writer // receives combined stdout/stderr while the step runs; may be nil
}

// StepResult holds the outcome of a step.
type StepResult struct {
	ExitCode int
	Output   []byte            // captured combined output
	Exports  map[string]string // environment handed to later steps
}

// Step is the interface all workflow steps implement.
//
// Run returns a non-nil error exactly when the step did not succeed; the
// result then carries the exit code the failure maps to.
type Step interface {
	Name() string
	Env() map[string]string
	Run(ctx context.Context, sctx StepContext) (*StepResult, error)
}

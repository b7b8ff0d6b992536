package api

import (
	_ "embed"
	"fmt"
)

//go:embed default_workflow.yaml
var defaultWorkflow []byte

// DefaultWorkflowYAML returns the built-in workflow definition as written by
// `cirun init`.
func DefaultWorkflowYAML() []byte {
	out := make([]byte, len(defaultWorkflow))
	copy(out, defaultWorkflow)
	return out
}

// DefaultWorkflow parses and validates the built-in workflow: checkout,
// toolchain setup, build, format check, lint check and tests, triggered by
// pushes and pull requests to main.
func DefaultWorkflow() (*Workflow, error) {
	w, err := ParseWorkflow(defaultWorkflow)
	if err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("validating built-in workflow: %w", err)
	}
	return w, nil
}

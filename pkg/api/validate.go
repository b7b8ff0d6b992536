package api

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var validStepTypes = map[string]bool{
	StepTypeRun:       true,
	StepTypeCheckout:  true,
	StepTypeToolchain: true,
	StepTypeGenerate:  true,
}

var validToolchainManagers = map[string]bool{
	ToolchainManagerRustup: true,
}

// Validate checks the workflow configuration for errors.
func (w *Workflow) Validate() error {
	if w.On.Empty() {
		return fmt.Errorf("workflow has no push or pull_request trigger")
	}
	if err := validateTrigger(w.On); err != nil {
		return err
	}

	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow has no steps")
	}

	names := make(map[string]int)
	for i, step := range w.Steps {
		if step.Name == "" {
			return fmt.Errorf("step %d: name is required", i)
		}
		if prev, exists := names[step.Name]; exists {
			return fmt.Errorf("step %d: duplicate step name %q (first defined at step %d)", i, step.Name, prev)
		}
		names[step.Name] = i

		kind := step.Kind()
		if !validStepTypes[kind] {
			return fmt.Errorf("step %q: unknown type %q", step.Name, kind)
		}
		if step.TimeoutMinutes < 0 {
			return fmt.Errorf("step %q: timeout-minutes must not be negative", step.Name)
		}
		if wd := step.WorkingDirectory; wd != "" && !filepath.IsLocal(wd) {
			return fmt.Errorf("step %q: working-directory %q must be a relative path inside the workspace", step.Name, wd)
		}

		if err := validateStepConfig(step, kind); err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
	}

	return nil
}

func validateTrigger(t Trigger) error {
	for _, f := range []*BranchFilter{t.Push, t.PullRequest} {
		if f == nil {
			continue
		}
		for _, p := range f.patterns() {
			if !doublestar.ValidatePattern(p) {
				return fmt.Errorf("invalid branch pattern %q", p)
			}
		}
	}
	return nil
}

func validateStepConfig(step StepConfig, kind string) error {
	switch kind {
	case StepTypeRun:
		if strings.TrimSpace(step.Run) == "" {
			return fmt.Errorf("run command is required")
		}
	case StepTypeCheckout:
		return validateCheckoutConfig(step)
	case StepTypeToolchain:
		return validateToolchainConfig(step)
	case StepTypeGenerate:
		return validateGenerateConfig(step)
	}
	return nil
}

func validateCheckoutConfig(step StepConfig) error {
	if step.Checkout == nil {
		return nil
	}
	if step.Checkout.Depth < 0 {
		return fmt.Errorf("checkout.depth must not be negative")
	}
	for _, p := range append(step.Checkout.Files.Include, step.Checkout.Files.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("checkout.files: invalid pattern %q", p)
		}
	}
	return nil
}

func validateToolchainConfig(step StepConfig) error {
	if step.Toolchain == nil {
		return fmt.Errorf("toolchain config is required")
	}
	if step.Toolchain.Version == "" {
		return fmt.Errorf("toolchain.version is required")
	}
	if m := step.Toolchain.Manager; m != "" && !validToolchainManagers[m] {
		return fmt.Errorf("toolchain.manager %q is not supported (valid: %s)", m, ToolchainManagerRustup)
	}
	return nil
}

func validateGenerateConfig(step StepConfig) error {
	if step.Generate == nil {
		return fmt.Errorf("generate config is required")
	}
	out := step.Generate.Output
	if out == "" {
		return fmt.Errorf("generate.output is required")
	}
	if !filepath.IsLocal(out) {
		return fmt.Errorf("generate.output %q must be a relative path inside the workspace", out)
	}
	return nil
}

package steps

import (
	"fmt"

	"github.com/systemstart/cirun/pkg/api"
)

// NewStep creates a Step implementation from a StepConfig. The step's
// timeout-minutes applies whatever its kind.
func NewStep(cfg api.StepConfig) (Step, error) {
	s, err := newStep(cfg)
	if err != nil {
		return nil, err
	}
	return withTimeout(s, cfg.Timeout()), nil
}

func newStep(cfg api.StepConfig) (Step, error) {
	switch cfg.Kind() {
	case api.StepTypeRun:
		return NewRunStep(cfg), nil
	case api.StepTypeCheckout:
		return NewCheckoutStep(cfg), nil
	case api.StepTypeToolchain:
		if cfg.Toolchain == nil {
			return nil, fmt.Errorf("step %q: toolchain config is required", cfg.Name)
		}
		return NewToolchainStep(cfg), nil
	case api.StepTypeGenerate:
		if cfg.Generate == nil {
			return nil, fmt.Errorf("step %q: generate config is required", cfg.Name)
		}
		return NewGenerateStep(cfg), nil
	default:
		return nil, fmt.Errorf("unknown step type: %s", cfg.Kind())
	}
}

// NewSteps builds the steps of a workflow in declaration order.
func NewSteps(cfgs []api.StepConfig) ([]Step, error) {
	out := make([]Step, 0, len(cfgs))
	for _, cfg := range cfgs {
		s, err := NewStep(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating step %q: %w", cfg.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

package steps

import (
	"context"
	"time"
)

// timedStep bounds a step by its timeout-minutes setting.
type timedStep struct {
	Step
	timeout time.Duration
}

// withTimeout wraps s so that its context expires after d. A zero d
// returns s unchanged.
func withTimeout(s Step, d time.Duration) Step {
	if d <= 0 {
		return s
	}
	return &timedStep{Step: s, timeout: d}
}

func (s *timedStep) Run(ctx context.Context, sctx StepContext) (*StepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.Step.Run(ctx, sctx)
}

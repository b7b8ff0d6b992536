package steps

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/systemstart/cirun/pkg/api"
)

type generateStep struct {
	name string
	env  map[string]string
	cfg  *api.GenerateConfig
}

// NewGenerateStep creates a step that renders a file into the workspace,
// e.g. a .cargo/config.toml for the later build steps.
func NewGenerateStep(cfg api.StepConfig) Step {
	return &generateStep{name: cfg.Name, env: cfg.Env, cfg: cfg.Generate}
}

func (s *generateStep) Name() string { return s.name }

func (s *generateStep) Env() map[string]string { return s.env }

func (s *generateStep) Run(_ context.Context, sctx StepContext) (*StepResult, error) {
	if !filepath.IsLocal(s.cfg.Output) {
		return &StepResult{ExitCode: ExitCodeGeneric}, fmt.Errorf("output %q is outside the workspace", s.cfg.Output)
	}

	content, err := renderTemplate(s.name, s.cfg.Template, sctx.TemplateData)
	if err != nil {
		return &StepResult{ExitCode: ExitCodeGeneric}, err
	}

	outPath := filepath.Join(sctx.WorkDir, s.cfg.Output)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return &StepResult{ExitCode: ExitCodeGeneric}, fmt.Errorf("creating parent directories: %w", err)
	}

	if err := os.WriteFile(outPath, []byte(content), 0o600); err != nil {
		return &StepResult{ExitCode: ExitCodeGeneric}, fmt.Errorf("writing output file: %w", err)
	}

	slog.Info("generate step wrote file", "step", s.name, "output", s.cfg.Output)
	msg := fmt.Sprintf("wrote %s\n", s.cfg.Output)
	if sctx.Output != nil {
		_, _ = fmt.Fprint(sctx.Output, msg)
	}
	return &StepResult{Output: []byte(msg)}, nil
}

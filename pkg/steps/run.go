package steps

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/systemstart/cirun/pkg/api"
)

type runStep struct {
	name string
	cfg  api.StepConfig
}

// NewRunStep creates a step that runs a shell command.
func NewRunStep(cfg api.StepConfig) Step {
	return &runStep{name: cfg.Name, cfg: cfg}
}

func (s *runStep) Name() string { return s.name }

func (s *runStep) Env() map[string]string { return s.cfg.Env }

func (s *runStep) Run(ctx context.Context, sctx StepContext) (*StepResult, error) {
	script, err := renderTemplate(s.name, s.cfg.Run, sctx.TemplateData)
	if err != nil {
		return &StepResult{ExitCode: ExitCodeGeneric}, err
	}

	dir := sctx.WorkDir
	if wd := s.cfg.WorkingDirectory; wd != "" {
		if !filepath.IsLocal(wd) {
			return &StepResult{ExitCode: ExitCodeGeneric}, fmt.Errorf("working directory %q is outside the workspace", wd)
		}
		dir = filepath.Join(sctx.WorkDir, wd)
	}

	name, args := shellCommand(s.cfg.Shell, script)
	slog.Info("running command", "step", s.name, "shell", name, "dir", dir)

	result, err := runCommand(ctx, command{
		name:   name,
		args:   args,
		dir:    dir,
		env:    sctx.Env,
		output: sctx.Output,
	})
	if err != nil {
		return result, fmt.Errorf("command failed: %w", err)
	}
	return result, nil
}

// shellCommand builds the interpreter invocation for script. sh and bash
// stop at the first failing line; any other shell is called with -c.
func shellCommand(shell, script string) (string, []string) {
	switch shell {
	case "", api.ShellSh:
		return api.ShellSh, []string{"-e", "-c", script}
	case api.ShellBash:
		return api.ShellBash, []string{"--noprofile", "--norc", "-e", "-o", "pipefail", "-c", script}
	default:
		return shell, []string{"-c", script}
	}
}

package steps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/systemstart/cirun/pkg/api"
)

// RustupToolchainEnv selects the toolchain for every later cargo/rustc call.
const RustupToolchainEnv = "RUSTUP_TOOLCHAIN"

type toolchainStep struct {
	name string
	env  map[string]string
	cfg  *api.ToolchainConfig
}

// NewToolchainStep creates a step that installs and selects a toolchain.
func NewToolchainStep(cfg api.StepConfig) Step {
	return &toolchainStep{name: cfg.Name, env: cfg.Env, cfg: cfg.Toolchain}
}

func (s *toolchainStep) Name() string { return s.name }

func (s *toolchainStep) Env() map[string]string { return s.env }

func (s *toolchainStep) Run(ctx context.Context, sctx StepContext) (*StepResult, error) {
	manager := s.cfg.Manager
	if manager == "" {
		manager = api.ToolchainManagerRustup
	}
	if manager != api.ToolchainManagerRustup {
		return &StepResult{ExitCode: ExitCodeGeneric}, fmt.Errorf("unsupported toolchain manager %q", manager)
	}

	slog.Info("installing toolchain", "step", s.name, "manager", manager, "version", s.cfg.Version)

	result, err := runCommand(ctx, command{
		name:   manager,
		args:   rustupArgs(s.cfg),
		dir:    sctx.WorkDir,
		env:    sctx.Env,
		output: sctx.Output,
	})
	if err != nil {
		return result, fmt.Errorf("toolchain install failed: %w", err)
	}

	result.Exports = map[string]string{RustupToolchainEnv: s.cfg.Version}
	return result, nil
}

func rustupArgs(cfg *api.ToolchainConfig) []string {
	profile := cfg.Profile
	if profile == "" {
		profile = api.DefaultToolchainProfile
	}
	args := []string{"toolchain", "install", cfg.Version, "--profile", profile}
	for _, c := range cfg.Components {
		args = append(args, "--component", c)
	}
	return args
}

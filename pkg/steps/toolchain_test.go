package steps

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/systemstart/cirun/pkg/api"
)

func TestRustupArgs(t *testing.T) {
	got := rustupArgs(&api.ToolchainConfig{Version: "1.80.0", Components: []string{"rustfmt", "clippy"}})
	want := []string{
		"toolchain", "install", "1.80.0", "--profile", "minimal",
		"--component", "rustfmt", "--component", "clippy",
	}
	if !slices.Equal(got, want) {
		t.Errorf("rustupArgs() = %v, want %v", got, want)
	}
}

func TestToolchainStep_ExportsToolchain(t *testing.T) {
	bin := t.TempDir()
	writeTestFile(t, bin, "rustup", "#!/bin/sh\necho rustup \"$@\"\n")
	if err := os.Chmod(filepath.Join(bin, "rustup"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	step := NewToolchainStep(api.StepConfig{
		Name:      "toolchain",
		Toolchain: &api.ToolchainConfig{Version: "stable", Components: []string{"clippy"}},
	})

	result, err := step.Run(context.Background(), StepContext{WorkDir: t.TempDir(), Env: testEnv()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(result.Output), "rustup toolchain install stable") {
		t.Errorf("unexpected output %q", result.Output)
	}
	if result.Exports[RustupToolchainEnv] != "stable" {
		t.Errorf("expected %s=stable export, got %v", RustupToolchainEnv, result.Exports)
	}
}

func TestToolchainStep_UnsupportedManager(t *testing.T) {
	step := NewToolchainStep(api.StepConfig{
		Name:      "toolchain",
		Toolchain: &api.ToolchainConfig{Manager: "asdf", Version: "1"},
	})

	result, err := step.Run(context.Background(), StepContext{WorkDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error")
	}
	if result.ExitCode == 0 || result.Exports != nil {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestToolchainStep_Timeout(t *testing.T) {
	bin := t.TempDir()
	writeTestFile(t, bin, "rustup", "#!/bin/sh\nexec sleep 3\n")
	if err := os.Chmod(filepath.Join(bin, "rustup"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	step, err := NewStep(api.StepConfig{
		Name:           "toolchain",
		Toolchain:      &api.ToolchainConfig{Version: "stable"},
		TimeoutMinutes: 0.001,
	})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	result, err := step.Run(context.Background(), StepContext{WorkDir: t.TempDir(), Env: testEnv()})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if result.ExitCode != ExitCodeTimeout {
		t.Errorf("ExitCode = %d, want %d", result.ExitCode, ExitCodeTimeout)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("step ran for %v despite its timeout", elapsed)
	}
	if result.Exports != nil {
		t.Errorf("timed out toolchain step exported %v", result.Exports)
	}
}

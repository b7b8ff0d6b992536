package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cirun.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NO_COLOR", "")
	if err := os.Unsetenv("NO_COLOR"); err != nil {
		t.Fatal(err)
	}

	s, err := Load("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.LogType != "tint" || s.LogLevel != "info" {
		t.Errorf("unexpected logging defaults: %+v", s)
	}
	if s.NoColor || s.KeepWorkspace {
		t.Errorf("unexpected boolean defaults: %+v", s)
	}
	if s.Timeout != 0 {
		t.Errorf("expected no default timeout, got %s", s.Timeout)
	}
	if s.Addr != ":8080" || s.Workflows != ".github/workflows" {
		t.Errorf("unexpected server defaults: %+v", s)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log-type: json
log-level: debug
no-color: true
keep-workspace: true
log-dir: /var/log/cirun
timeout: 30m
pass-env: [SSH_AUTH_SOCK]
`)

	s, err := Load(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.LogType != "json" || s.LogLevel != "debug" {
		t.Errorf("logging settings not read: %+v", s)
	}
	if !s.NoColor || !s.KeepWorkspace {
		t.Errorf("boolean settings not read: %+v", s)
	}
	if s.LogDir != "/var/log/cirun" {
		t.Errorf("log-dir = %q", s.LogDir)
	}
	if s.Timeout != 30*time.Minute {
		t.Errorf("timeout = %s, want 30m", s.Timeout)
	}
	if !slices.Equal(s.PassEnv, []string{"SSH_AUTH_SOCK"}) {
		t.Errorf("pass-env = %v", s.PassEnv)
	}
}

func TestLoad_DiscoveredFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".cirun.yaml"), []byte("addr: 127.0.0.1:9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := Load("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Addr != "127.0.0.1:9000" {
		t.Errorf("addr = %q", s.Addr)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_InvalidTimeout(t *testing.T) {
	path := writeConfig(t, "timeout: -5m\n")
	if _, err := Load(path, nil); err == nil {
		t.Error("expected error for negative timeout")
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, "log-level: warn\nworkspace-root: /from/file\nlog-type: json\n")
	t.Setenv("CIRUN_LOG_LEVEL", "error")
	t.Setenv("CIRUN_WORKSPACE_ROOT", "/from/env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("workspace-root", "", "")
	flags.String("log-type", "tint", "")
	if err := flags.Parse([]string{"--workspace-root", "/from/flag"}); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path, flags)
	if err != nil {
		t.Fatal(err)
	}
	if s.LogLevel != "error" {
		t.Errorf("env should override file: log-level = %q", s.LogLevel)
	}
	if s.WorkspaceRoot != "/from/flag" {
		t.Errorf("flag should override env: workspace-root = %q", s.WorkspaceRoot)
	}
	if s.LogType != "json" {
		t.Errorf("unset flag should not override file: log-type = %q", s.LogType)
	}
}

func TestLoad_NoColorEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")

	s, err := Load("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !s.NoColor {
		t.Error("NO_COLOR should disable colour")
	}
}

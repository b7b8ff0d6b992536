package processing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/systemstart/cirun/pkg/api"
)

const validWorkflow = `
name: CI
on:
  push:
    branches: [main]
steps:
  - name: Build
    run: echo build
`

func writeWorkflow(t *testing.T, dir, name, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDiscoverWorkflows(t *testing.T) {
	root := t.TempDir()
	writeWorkflow(t, filepath.Join(root, ".github", "workflows"), "rust.yml", validWorkflow)
	writeWorkflow(t, filepath.Join(root, ".github", "workflows"), "docs.yaml", validWorkflow)
	writeWorkflow(t, filepath.Join(root, ".cirun"), "local.yml", validWorkflow)
	writeWorkflow(t, filepath.Join(root, ".github", "workflows"), "README.md", "not a workflow")
	writeWorkflow(t, filepath.Join(root, "other"), "ci.yml", validWorkflow)

	workflows, err := DiscoverWorkflows(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(workflows) != 3 {
		t.Fatalf("expected 3 workflows, got %d", len(workflows))
	}

	var names []string
	for _, w := range workflows {
		names = append(names, filepath.Base(w.FilePath))
	}
	if got := strings.Join(names, ","); got != "local.yml,docs.yaml,rust.yml" {
		t.Errorf("unexpected discovery order %s", got)
	}
}

func TestDiscoverWorkflows_None(t *testing.T) {
	workflows, err := DiscoverWorkflows(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(workflows) != 0 {
		t.Fatalf("expected no workflows, got %d", len(workflows))
	}
}

func TestDiscoverWorkflows_InvalidFile(t *testing.T) {
	root := t.TempDir()
	writeWorkflow(t, filepath.Join(root, ".cirun"), "broken.yml", "steps: []\n")

	_, err := DiscoverWorkflows(root)
	if err == nil {
		t.Fatal("expected error for invalid workflow")
	}
	if !strings.Contains(err.Error(), "broken.yml") {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestLoadWorkflowDir(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "a.yml", validWorkflow)
	writeWorkflow(t, filepath.Join(dir, "nested"), "b.yml", validWorkflow)

	workflows, err := LoadWorkflowDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(workflows) != 1 {
		t.Fatalf("expected only the top-level workflow, got %d", len(workflows))
	}
}

func TestRepositoryRoot(t *testing.T) {
	root := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		dir  string
		want string
	}{
		{"github workflows", filepath.Join(root, ".github", "workflows"), root},
		{"cirun dir", filepath.Join(root, ".cirun"), root},
		{"plain dir", filepath.Join(root, "ci"), filepath.Join(root, "ci")},
		{"built-in", "", wd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RepositoryRoot(&api.Workflow{Dir: tt.dir})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("RepositoryRoot() = %q, want %q", got, tt.want)
			}
		})
	}
}

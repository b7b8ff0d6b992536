package processing

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/systemstart/cirun/pkg/api"
)

// WorkflowPattern matches workflow file names.
const WorkflowPattern = "*.{yml,yaml}"

var repositoryWorkflowDirs = []string{".github/workflows", ".cirun"}

// DiscoverWorkflows loads every workflow file below root's
// .github/workflows and .cirun directories, sorted by path.
func DiscoverWorkflows(root string) ([]*api.Workflow, error) {
	patterns := make([]string, 0, len(repositoryWorkflowDirs))
	for _, dir := range repositoryWorkflowDirs {
		patterns = append(patterns, dir+"/"+WorkflowPattern)
	}
	return loadMatching(root, patterns...)
}

// LoadWorkflowDir loads every *.yml and *.yaml file directly inside dir.
func LoadWorkflowDir(dir string) ([]*api.Workflow, error) {
	return loadMatching(dir, WorkflowPattern)
}

func loadMatching(root string, patterns ...string) ([]*api.Workflow, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root path: %w", err)
	}

	fsys := os.DirFS(absRoot)
	var matches []string
	for _, pattern := range patterns {
		found, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("globbing %s: %w", pattern, err)
		}
		matches = append(matches, found...)
	}
	slices.Sort(matches)
	matches = slices.Compact(matches)

	workflows := make([]*api.Workflow, 0, len(matches))
	for _, m := range matches {
		w, err := api.LoadWorkflow(filepath.Join(absRoot, filepath.FromSlash(m)))
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", m, err)
		}
		workflows = append(workflows, w)
	}
	return workflows, nil
}

// RepositoryRoot guesses the repository a workflow belongs to: the parent of
// .github/workflows or .cirun, else the workflow's own directory. Workflows
// not loaded from disk resolve to the current directory.
func RepositoryRoot(w *api.Workflow) (string, error) {
	if w.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolving working directory: %w", err)
		}
		return wd, nil
	}

	dir := filepath.Clean(w.Dir)
	switch {
	case filepath.Base(dir) == "workflows" && filepath.Base(filepath.Dir(dir)) == ".github":
		return filepath.Dir(filepath.Dir(dir)), nil
	case filepath.Base(dir) == ".cirun":
		return filepath.Dir(dir), nil
	default:
		return dir, nil
	}
}

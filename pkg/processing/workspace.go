package processing

import (
	"fmt"
	"log/slog"
	"os"
)

// createWorkspace makes a fresh, empty directory for one run.
func createWorkspace(root, runID string) (string, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o750); err != nil {
			return "", fmt.Errorf("creating workspace root: %w", err)
		}
	}
	prefix := "cirun-"
	if len(runID) >= 8 {
		prefix += runID[:8] + "-"
	}
	dir, err := os.MkdirTemp(root, prefix)
	if err != nil {
		return "", fmt.Errorf("creating workspace: %w", err)
	}
	return dir, nil
}

func removeWorkspace(dir string) {
	slog.Debug("removing workspace", "path", dir)
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("failed to remove workspace", "path", dir, "error", err)
	}
}

package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/systemstart/cirun/pkg/api"
	"github.com/systemstart/cirun/pkg/processing"
)

// Registry holds the workflow definitions of one directory. Reloads swap
// the whole set, so readers always see a consistent snapshot.
type Registry struct {
	dir string

	mu        sync.RWMutex
	workflows []*api.Workflow
}

// NewRegistry loads the workflows in dir.
func NewRegistry(dir string) (*Registry, error) {
	r := &Registry{dir: dir}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewStaticRegistry serves a fixed set of workflows that never reloads.
func NewStaticRegistry(workflows ...*api.Workflow) *Registry {
	return &Registry{workflows: workflows}
}

// Dir returns the watched directory, empty for a static registry.
func (r *Registry) Dir() string { return r.dir }

// Workflows returns the current snapshot.
func (r *Registry) Workflows() []*api.Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.workflows)
}

// Reload re-reads the directory. On error the previous set stays active.
func (r *Registry) Reload() error {
	if r.dir == "" {
		return nil
	}
	workflows, err := processing.LoadWorkflowDir(r.dir)
	if err != nil {
		return fmt.Errorf("reloading workflows from %s: %w", r.dir, err)
	}

	r.mu.Lock()
	r.workflows = workflows
	r.mu.Unlock()

	slog.Info("workflows loaded", "dir", r.dir, "count", len(workflows))
	return nil
}

// Watch reloads the registry whenever a workflow file in the directory is
// created, written, removed or renamed. The watch is established before
// Watch returns; events are handled until ctx is done.
func (r *Registry) Watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", r.dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isWorkflowEvent(ev) {
					continue
				}
				slog.Debug("workflow file changed", "file", ev.Name, "op", ev.Op.String())
				if err := r.Reload(); err != nil {
					slog.Error("failed to reload workflows", "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("workflow watcher error", "error", err)
			}
		}
	}()
	return nil
}

func isWorkflowEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	ok, _ := doublestar.Match(processing.WorkflowPattern, filepath.Base(ev.Name))
	return ok
}

package steps

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/systemstart/cirun/pkg/api"
)

type checkoutStep struct {
	name string
	env  map[string]string
	cfg  api.CheckoutConfig
}

// NewCheckoutStep creates a step that fills the workspace with the
// repository contents.
func NewCheckoutStep(cfg api.StepConfig) Step {
	s := &checkoutStep{name: cfg.Name, env: cfg.Env}
	if cfg.Checkout != nil {
		s.cfg = *cfg.Checkout
	}
	return s
}

func (s *checkoutStep) Name() string { return s.name }

func (s *checkoutStep) Env() map[string]string { return s.env }

func (s *checkoutStep) Run(ctx context.Context, sctx StepContext) (*StepResult, error) {
	source := s.cfg.Source
	if source == "" {
		source = sctx.SourceDir
	}
	if source == "" {
		return &StepResult{ExitCode: ExitCodeGeneric}, fmt.Errorf("checkout source is not set")
	}

	if isGitRemote(source) || s.cfg.Ref != "" {
		return s.clone(ctx, sctx, source)
	}

	slog.Info("copying repository", "step", s.name, "source", source, "workspace", sctx.WorkDir)
	n, err := copyFiltered(source, sctx.WorkDir, s.cfg.Files)
	if err != nil {
		return &StepResult{ExitCode: ExitCodeGeneric, Output: []byte(err.Error() + "\n")}, fmt.Errorf("checkout failed: %w", err)
	}

	msg := fmt.Sprintf("copied %d files from %s\n", n, source)
	if sctx.Output != nil {
		_, _ = io.WriteString(sctx.Output, msg)
	}
	return &StepResult{Output: []byte(msg)}, nil
}

func (s *checkoutStep) clone(ctx context.Context, sctx StepContext, source string) (*StepResult, error) {
	args := []string{"clone", "--quiet"}
	if s.cfg.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(s.cfg.Depth))
		if s.cfg.Ref != "" {
			args = append(args, "--no-single-branch")
		}
	}
	args = append(args, source, sctx.WorkDir)

	slog.Info("cloning repository", "step", s.name, "source", source, "ref", s.cfg.Ref)

	result, err := s.git(ctx, sctx, args...)
	if err != nil {
		return result, fmt.Errorf("git clone failed: %w", err)
	}
	if s.cfg.Ref == "" {
		return result, nil
	}

	// ref may name a branch, tag or commit.
	checkout, err := s.git(ctx, sctx, "checkout", "--quiet", s.cfg.Ref)
	checkout.Output = append(result.Output, checkout.Output...)
	if err != nil {
		return checkout, fmt.Errorf("git checkout %s failed: %w", s.cfg.Ref, err)
	}
	return checkout, nil
}

func (s *checkoutStep) git(ctx context.Context, sctx StepContext, args ...string) (*StepResult, error) {
	return runCommand(ctx, command{
		name:   "git",
		args:   args,
		dir:    sctx.WorkDir,
		env:    sctx.Env,
		output: sctx.Output,
	})
}

func isGitRemote(source string) bool {
	return strings.Contains(source, "://") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasSuffix(source, ".git")
}

// copyFiltered copies src into dst, skipping paths matched by the exclude
// patterns and files not matched by the include patterns. It returns the
// number of files copied.
func copyFiltered(src, dst string, filter api.FileFilter) (int, error) {
	include := filter.Include
	if len(include) == 0 {
		include = []string{api.DefaultFileInclude}
	}
	exclude := append(append([]string{}, api.DefaultCheckoutExclude...), filter.Exclude...)

	copied := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk error at %s: %w", path, err)
		}
		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			return fmt.Errorf("computing relative path for %s: %w", path, relErr)
		}
		if rel == "." {
			return nil
		}

		slashed := filepath.ToSlash(rel)
		if matchesAny(exclude, slashed) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && !matchesAny(include, slashed) {
			return nil
		}

		if err := copyEntry(dst, rel, path, d); err != nil {
			return err
		}
		if !d.IsDir() {
			copied++
		}
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("copying tree: %w", err)
	}
	return copied, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

func copyEntry(dst, rel, srcPath string, d fs.DirEntry) error {
	target := filepath.Join(dst, rel)

	if d.IsDir() {
		if err := os.MkdirAll(target, 0o750); err != nil {
			return fmt.Errorf("creating directory %s: %w", target, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("creating directory for %s: %w", target, err)
	}

	if d.Type()&fs.ModeSymlink != 0 {
		link, err := os.Readlink(srcPath)
		if err != nil {
			return fmt.Errorf("reading link %s: %w", srcPath, err)
		}
		if err := os.Symlink(link, target); err != nil {
			return fmt.Errorf("creating link %s: %w", target, err)
		}
		return nil
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", srcPath, err)
	}

	info, err := d.Info()
	if err != nil {
		return fmt.Errorf("stat %s: %w", srcPath, err)
	}

	if err := os.WriteFile(target, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return nil
}

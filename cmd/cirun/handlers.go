package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/systemstart/cirun/pkg/api"
	"github.com/systemstart/cirun/pkg/git"
	"github.com/systemstart/cirun/pkg/processing"
	"github.com/systemstart/cirun/pkg/report"
	"github.com/systemstart/cirun/pkg/server"
	"github.com/systemstart/cirun/pkg/storage"
)

const defaultWorkflowPath = ".github/workflows/rust.yml"

// eventFlags are shared by the commands that evaluate a trigger event.
type eventFlags struct {
	kind        string
	branch      string
	useDefault  bool
	ignoreEvent bool
}

func (f *eventFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.kind, "event", "e", string(api.EventPush), "Event kind: push or pull_request")
	cmd.Flags().StringVarP(&f.branch, "branch", "b", "", "Branch of the event (default: current git branch)")
	cmd.Flags().BoolVar(&f.useDefault, "default", false, "Use the built-in Rust workflow")
}

func (f *eventFlags) event() (api.Event, error) {
	kind, err := api.ParseEventKind(f.kind)
	if err != nil {
		return api.Event{}, withExitCode(exitUsage, err)
	}
	branch := f.branch
	if branch == "" {
		branch, err = git.DetectBranch(".")
		if err != nil {
			return api.Event{}, withExitCode(exitUsage, fmt.Errorf("cannot detect branch, use --branch: %w", err))
		}
	}
	return api.Event{Kind: kind, Branch: branch}, nil
}

// workflows resolves the workflows a command acts on: the named file, the
// built-in workflow, or those discovered in the working directory. With
// nothing discovered the built-in workflow is used.
func (f *eventFlags) workflows(args []string) ([]*api.Workflow, error) {
	if f.useDefault {
		w, err := api.DefaultWorkflow()
		if err != nil {
			return nil, err
		}
		return []*api.Workflow{w}, nil
	}
	if len(args) == 1 {
		w, err := api.LoadWorkflow(args[0])
		if err != nil {
			return nil, withExitCode(exitInvalidWorkflow, err)
		}
		return []*api.Workflow{w}, nil
	}

	found, err := processing.DiscoverWorkflows(".")
	if err != nil {
		return nil, withExitCode(exitInvalidWorkflow, err)
	}
	if len(found) > 0 {
		return found, nil
	}
	slog.Info("no workflow files found, using built-in workflow")
	w, err := api.DefaultWorkflow()
	if err != nil {
		return nil, err
	}
	return []*api.Workflow{w}, nil
}

func runOptions(out io.Writer) processing.RunOptions {
	opts := processing.RunOptions{
		WorkspaceRoot: settings.WorkspaceRoot,
		KeepWorkspace: settings.KeepWorkspace,
		EnvFile:       settings.EnvFile,
		NoColor:       settings.NoColor,
		Timeout:       settings.Timeout,
		Output:        out,
	}
	if len(settings.PassEnv) > 0 {
		opts.PassEnv = append(append([]string{}, processing.DefaultPassEnv...), settings.PassEnv...)
	}
	if settings.LogDir != "" {
		opts.Logs = storage.NewLogStore(settings.LogDir)
	}
	return opts
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func newRunCmd() *cobra.Command {
	var ef eventFlags
	cmd := &cobra.Command{
		Use:   "run [workflow.yml]",
		Short: "Run a workflow for an event",
		Long: `Run the workflow in a fresh workspace if the event matches its trigger.
The exit code is 0 when every step succeeded, otherwise the exit code of the
failing step.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflows(cmd, &ef, args)
		},
	}
	ef.register(cmd)
	cmd.Flags().BoolVarP(&ef.ignoreEvent, "force", "f", false, "Run even if the event does not match the trigger")
	cmd.Flags().String("workspace-root", "", "Directory for run workspaces (default: system temp dir)")
	cmd.Flags().Bool("keep-workspace", false, "Keep the workspace after the run")
	cmd.Flags().String("log-dir", "", "Persist step logs below this directory")
	cmd.Flags().String("env-file", "", "dotenv file added to the run environment")
	cmd.Flags().StringSlice("pass-env", nil, "Additional host variables passed to steps")
	cmd.Flags().Duration("timeout", 0, "Limit for the whole run (0 = none)")
	return cmd
}

func runWorkflows(cmd *cobra.Command, ef *eventFlags, args []string) error {
	ev, err := ef.event()
	if err != nil {
		return err
	}
	workflows, err := ef.workflows(args)
	if err != nil {
		return err
	}

	var eligible []*api.Workflow
	for _, w := range workflows {
		if ef.ignoreEvent || w.On.Matches(ev) {
			eligible = append(eligible, w)
		}
	}
	if len(eligible) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no workflow is triggered by %s on %s\n", ev.Kind, ev.Branch)
		return withExitCode(exitNotTriggered, nil)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	var outcomes []processing.Outcome
	if len(eligible) == 1 {
		res, err := processing.RunWorkflow(ctx, eligible[0], ev, runOptions(out))
		outcomes = []processing.Outcome{{Workflow: eligible[0], Result: res, Err: err}}
	} else {
		outcomes = processing.RunAll(ctx, eligible, ev, runOptions(nil))
	}
	return reportOutcomes(out, outcomes, len(eligible) > 1)
}

// reportOutcomes prints a summary per run and returns the error that decides
// the exit code: the first failing run's step exit code.
func reportOutcomes(out io.Writer, outcomes []processing.Outcome, showOutput bool) error {
	var exit error
	for _, o := range outcomes {
		if o.Err != nil {
			if exit == nil {
				exit = withExitCode(exitToolErrors, o.Err)
			}
			continue
		}
		fmt.Fprint(out, report.Render(o.Result, !settings.NoColor))
		if o.Result.Succeeded() {
			continue
		}
		var failure *processing.StepFailure
		if showOutput && errors.As(o.Result.Err(), &failure) && len(failure.Output) > 0 {
			fmt.Fprintf(out, "output of %q:\n%s\n", failure.Name, failure.Output)
		}
		if exit == nil {
			exit = withExitCode(stepExitCode(o.Result.ExitCode), nil)
		}
	}
	return exit
}

func newMatchCmd() *cobra.Command {
	var ef eventFlags
	cmd := &cobra.Command{
		Use:   "match [workflow.yml]",
		Short: "Check whether an event would start a run",
		Long:  `Print for each workflow whether the event matches its trigger. Exits 0 if at least one workflow would run.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := ef.event()
			if err != nil {
				return err
			}
			workflows, err := ef.workflows(args)
			if err != nil {
				return err
			}

			eligible := false
			for _, w := range workflows {
				verdict := "not triggered"
				if w.On.Matches(ev) {
					verdict = "triggered"
					eligible = true
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s by %s on %s\n", w.DisplayName(), verdict, ev.Kind, ev.Branch)
			}
			if !eligible {
				return withExitCode(exitNotTriggered, nil)
			}
			return nil
		},
	}
	ef.register(cmd)
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [files...]",
		Short: "Validate workflow files",
		Long:  `Validate the named workflow files, or every workflow discovered in .github/workflows and .cirun.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				workflows, err := processing.DiscoverWorkflows(".")
				if err != nil {
					return withExitCode(exitInvalidWorkflow, err)
				}
				if len(workflows) == 0 {
					return withExitCode(exitInvalidWorkflow, errors.New("no workflow files found in .github/workflows or .cirun"))
				}
				for _, w := range workflows {
					fmt.Fprintf(out, "ok %s\n", w.FilePath)
				}
				return nil
			}

			failed := 0
			for _, path := range args {
				if _, err := api.LoadWorkflow(path); err != nil {
					fmt.Fprintf(out, "invalid %s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "ok %s\n", path)
			}
			if failed > 0 {
				return withExitCode(exitInvalidWorkflow, fmt.Errorf("%d of %d workflow files are invalid", failed, len(args)))
			}
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default workflow file",
		Long: `Write the built-in Rust workflow to .github/workflows/rust.yml. If the file
already exists, use --force to overwrite it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("workflow file %s already exists. Use --force to overwrite", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return fmt.Errorf("creating workflow directory: %w", err)
			}
			if err := os.WriteFile(path, api.DefaultWorkflowYAML(), 0o644); err != nil {
				return fmt.Errorf("writing workflow file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Workflow written to: %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "output", "o", defaultWorkflowPath, "Path of the workflow file")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing workflow file")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive trigger events over HTTP",
		Long: `Serve a webhook endpoint. POST /events with {"kind":"push","branch":"main"}
starts a run for every matching workflow in the workflow directory, which is
reloaded when its files change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := server.NewRegistry(settings.Workflows)
			if err != nil {
				return withExitCode(exitInvalidWorkflow, err)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if err := registry.Watch(ctx); err != nil {
				return err
			}

			srv := server.New(ctx, registry, runOptions(nil))
			err = srv.ListenAndServe(ctx, settings.Addr)
			srv.Wait()
			return err
		},
	}
	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().String("workflows", ".github/workflows", "Directory of workflow files")
	cmd.Flags().String("workspace-root", "", "Directory for run workspaces (default: system temp dir)")
	cmd.Flags().Bool("keep-workspace", false, "Keep workspaces after runs")
	cmd.Flags().String("log-dir", "", "Persist step logs below this directory")
	cmd.Flags().String("env-file", "", "dotenv file added to every run environment")
	cmd.Flags().Duration("timeout", 0, "Limit for each run (0 = none)")
	return cmd
}

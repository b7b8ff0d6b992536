package api

import "time"

const (
	StepTypeRun       = "run"
	StepTypeCheckout  = "checkout"
	StepTypeToolchain = "toolchain"
	StepTypeGenerate  = "generate"

	ShellSh   = "sh"
	ShellBash = "bash"

	ToolchainManagerRustup  = "rustup"
	DefaultToolchainProfile = "minimal"

	DefaultFileInclude = "**"
)

// DefaultCheckoutExclude lists the paths a local checkout never copies.
var DefaultCheckoutExclude = []string{".git", ".git/**"}

// Workflow is the workflow file format.
type Workflow struct {
	Name  string            `yaml:"name"`
	On    Trigger           `yaml:"on"`
	Env   map[string]string `yaml:"env,omitempty"`
	Steps []StepConfig      `yaml:"steps"`

	// Set by the loader, not from YAML.
	Dir      string `yaml:"-"`
	FilePath string `yaml:"-"`
}

// DisplayName returns the workflow name, falling back to its file path.
func (w *Workflow) DisplayName() string {
	if w.Name != "" {
		return w.Name
	}
	if w.FilePath != "" {
		return w.FilePath
	}
	return "workflow"
}

// StepConfig defines a single step within a workflow.
type StepConfig struct {
	Name             string            `yaml:"name"`
	Type             string            `yaml:"type,omitempty"`
	Run              string            `yaml:"run,omitempty"`
	Shell            string            `yaml:"shell,omitempty"`
	WorkingDirectory string            `yaml:"working-directory,omitempty"`
	Env              map[string]string `yaml:"env,omitempty"`
	TimeoutMinutes   float64           `yaml:"timeout-minutes,omitempty"`
	Checkout         *CheckoutConfig   `yaml:"checkout,omitempty"`
	Toolchain        *ToolchainConfig  `yaml:"toolchain,omitempty"`
	Generate         *GenerateConfig   `yaml:"generate,omitempty"`
}

// Kind resolves the step type. An explicit type wins; otherwise the
// configured block decides and plain commands default to run.
func (s StepConfig) Kind() string {
	switch {
	case s.Type != "":
		return s.Type
	case s.Checkout != nil:
		return StepTypeCheckout
	case s.Toolchain != nil:
		return StepTypeToolchain
	case s.Generate != nil:
		return StepTypeGenerate
	default:
		return StepTypeRun
	}
}

// Timeout converts timeout-minutes into a duration. Zero means no limit.
func (s StepConfig) Timeout() time.Duration {
	if s.TimeoutMinutes <= 0 {
		return 0
	}
	return time.Duration(s.TimeoutMinutes * float64(time.Minute))
}

// FileFilter defines include/exclude glob patterns.
type FileFilter struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// CheckoutConfig configures the checkout step.
type CheckoutConfig struct {
	Source string     `yaml:"source,omitempty"`
	Ref    string     `yaml:"ref,omitempty"`
	Depth  int        `yaml:"depth,omitempty"`
	Files  FileFilter `yaml:"files,omitempty"`
}

// ToolchainConfig configures the toolchain step.
type ToolchainConfig struct {
	Manager    string   `yaml:"manager,omitempty"`
	Version    string   `yaml:"version"`
	Profile    string   `yaml:"profile,omitempty"`
	Components []string `yaml:"components,omitempty"`
}

// GenerateConfig configures the generate step, which renders a template into
// a file inside the workspace.
type GenerateConfig struct {
	Output   string `yaml:"output"`
	Template string `yaml:"template"`
}

package report

import (
	"strings"
	"testing"
	"time"

	"github.com/systemstart/cirun/pkg/api"
	"github.com/systemstart/cirun/pkg/processing"
)

func failedResult() *processing.RunResult {
	return &processing.RunResult{
		RunID:      "run-1",
		Workflow:   "Rust",
		Event:      api.Event{Kind: api.EventPush, Branch: "main"},
		Status:     processing.StatusFailed,
		FailedStep: 2,
		ExitCode:   101,
		Steps: []processing.StepRecord{
			{Index: 1, Name: "Build", Duration: 1500 * time.Millisecond},
			{Index: 2, Name: "Check formatting", ExitCode: 101, Duration: 200 * time.Millisecond},
		},
		Failure: &processing.StepFailure{Index: 2, Name: "Check formatting", ExitCode: 101},
	}
}

func TestRender_Failed(t *testing.T) {
	out := Render(failedResult(), false)

	for _, want := range []string{
		"Workflow Rust",
		"push on main",
		"Run run-1",
		"✓  1  Build",
		"✗  2  Check formatting  exit 101",
		"Failed at step 2 (Check formatting) with exit code 101",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRender_Success(t *testing.T) {
	r := &processing.RunResult{
		Workflow: "Rust",
		Status:   processing.StatusSuccess,
		Steps: []processing.StepRecord{
			{Index: 1, Name: "Build"},
			{Index: 2, Name: "Run tests"},
		},
	}

	out := Render(r, false)
	if !strings.Contains(out, "Success: 2 steps passed") {
		t.Errorf("unexpected verdict:\n%s", out)
	}
	if strings.Contains(out, "✗") {
		t.Errorf("successful run shows a failure mark:\n%s", out)
	}
}

func TestRender_NoColor(t *testing.T) {
	if out := Render(failedResult(), false); strings.Contains(out, "\x1b[") {
		t.Errorf("expected no ANSI escapes:\n%q", out)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{1234567 * time.Nanosecond, "1ms"},
		{1234 * time.Millisecond, "1.23s"},
		{90*time.Second + 400*time.Millisecond, "1m30s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

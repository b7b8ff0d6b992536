package steps

import (
	"strings"
	"testing"
)

func TestRenderCommand(t *testing.T) {
	data := map[string]any{
		"Env":   map[string]string{"PROFILE": "release"},
		"Event": map[string]any{"Branch": "main"},
	}

	tests := []struct {
		name    string
		text    string
		want    string
		wantErr string
	}{
		{name: "plain", text: "cargo build --verbose", want: "cargo build --verbose"},
		{name: "env lookup", text: "cargo build --{{ .Env.PROFILE }}", want: "cargo build --release"},
		{name: "sprig function", text: "echo {{ .Event.Branch | upper }}", want: "echo MAIN"},
		{name: "missing key", text: "echo {{ .Env.MISSING }}", wantErr: "executing template"},
		{name: "bad syntax", text: "echo {{ .Env", wantErr: "parsing template"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderTemplate("step", tt.text, data)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("renderTemplate() = %q, want %q", got, tt.want)
			}
		})
	}
}

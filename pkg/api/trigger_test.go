package api

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestTrigger_Matches(t *testing.T) {
	trigger := Trigger{
		Push:        &BranchFilter{Branches: []string{"main", "release/*"}},
		PullRequest: &BranchFilter{Branches: []string{"main"}},
	}

	tests := []struct {
		name string
		ev   Event
		want bool
	}{
		{"push to main", Event{Kind: EventPush, Branch: "main"}, true},
		{"push with full ref", Event{Kind: EventPush, Branch: "refs/heads/main"}, true},
		{"push to release branch", Event{Kind: EventPush, Branch: "release/1.0"}, true},
		{"single star stops at slash", Event{Kind: EventPush, Branch: "release/1.0/hotfix"}, false},
		{"push to other branch", Event{Kind: EventPush, Branch: "develop"}, false},
		{"pull request to main", Event{Kind: EventPullRequest, Branch: "main"}, true},
		{"pull request to release", Event{Kind: EventPullRequest, Branch: "release/1.0"}, false},
		{"unknown kind", Event{Kind: "tag", Branch: "main"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trigger.Matches(tt.ev); got != tt.want {
				t.Errorf("Matches(%+v) = %v, want %v", tt.ev, got, tt.want)
			}
		})
	}
}

func TestTrigger_UnconfiguredEvent(t *testing.T) {
	trigger := Trigger{Push: &BranchFilter{}}
	if trigger.Matches(Event{Kind: EventPullRequest, Branch: "main"}) {
		t.Fatal("pull_request is not configured and must not match")
	}
	if !trigger.Matches(Event{Kind: EventPush, Branch: "anything"}) {
		t.Fatal("an empty branch list matches every branch")
	}
}

func TestBranchFilter_Ignore(t *testing.T) {
	f := BranchFilter{Branches: []string{"**"}, BranchesIgnore: []string{"wip/**"}}
	if !f.Matches("feature/x") {
		t.Error("expected feature/x to match")
	}
	if f.Matches("wip/a/b") {
		t.Error("expected wip/a/b to be ignored")
	}
}

func TestTrigger_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		push, pr   bool
		ignored    int
		pushBranch string
		wantErr    bool
	}{
		{name: "scalar", doc: "on: push", push: true},
		{name: "sequence", doc: "on: [push, pull_request]", push: true, pr: true},
		{name: "mapping with null", doc: "on:\n  push:\n  pull_request:\n", push: true, pr: true},
		{
			name:       "mapping with branches",
			doc:        "on:\n  push:\n    branches: [main]\n",
			push:       true,
			pushBranch: "main",
		},
		{name: "unknown events ignored", doc: "on: [push, workflow_dispatch]", push: true, ignored: 1},
		{name: "nested sequence", doc: "on: [[push]]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w struct {
				On Trigger `yaml:"on"`
			}
			err := yaml.Unmarshal([]byte(tt.doc), &w)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (w.On.Push != nil) != tt.push {
				t.Errorf("push configured = %v, want %v", w.On.Push != nil, tt.push)
			}
			if (w.On.PullRequest != nil) != tt.pr {
				t.Errorf("pull_request configured = %v, want %v", w.On.PullRequest != nil, tt.pr)
			}
			if len(w.On.Ignored) != tt.ignored {
				t.Errorf("ignored = %v, want %d entries", w.On.Ignored, tt.ignored)
			}
			if tt.pushBranch != "" && (len(w.On.Push.Branches) != 1 || w.On.Push.Branches[0] != tt.pushBranch) {
				t.Errorf("push branches = %v, want [%s]", w.On.Push.Branches, tt.pushBranch)
			}
		})
	}
}

func TestEvent_Validate(t *testing.T) {
	if err := (Event{Kind: EventPush, Branch: "main"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Event{Kind: "release", Branch: "main"}).Validate(); err == nil {
		t.Error("expected error for unknown kind")
	}
	if err := (Event{Kind: EventPush}).Validate(); err == nil {
		t.Error("expected error for missing branch")
	}
}

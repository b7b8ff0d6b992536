package api

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// EventKind names the repository event that may start a run.
type EventKind string

const (
	EventPush        EventKind = "push"
	EventPullRequest EventKind = "pull_request"
)

// ParseEventKind validates an event name.
func ParseEventKind(name string) (EventKind, error) {
	switch k := EventKind(name); k {
	case EventPush, EventPullRequest:
		return k, nil
	default:
		return "", fmt.Errorf("unknown event kind %q (valid: %s, %s)", name, EventPush, EventPullRequest)
	}
}

// Event is an incoming trigger event.
type Event struct {
	Kind   EventKind `json:"kind"`
	Branch string    `json:"branch"`
}

// Validate checks that the event can be evaluated against a trigger.
func (e Event) Validate() error {
	if _, err := ParseEventKind(string(e.Kind)); err != nil {
		return err
	}
	if strings.TrimSpace(e.Branch) == "" {
		return fmt.Errorf("event branch is required")
	}
	return nil
}

// BranchFilter restricts an event to matching branch names.
// An empty Branches list matches every branch.
type BranchFilter struct {
	Branches       []string `yaml:"branches,omitempty"`
	BranchesIgnore []string `yaml:"branches-ignore,omitempty"`
}

// Matches reports whether branch passes the filter.
func (f BranchFilter) Matches(branch string) bool {
	branch = strings.TrimPrefix(branch, "refs/heads/")
	if len(f.Branches) > 0 && !matchAny(f.Branches, branch) {
		return false
	}
	return !matchAny(f.BranchesIgnore, branch)
}

func (f BranchFilter) patterns() []string {
	return append(append([]string{}, f.Branches...), f.BranchesIgnore...)
}

func matchAny(patterns []string, branch string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, branch); err == nil && ok {
			return true
		}
	}
	return false
}

// Trigger holds the events a workflow reacts to. A nil filter means the
// event is not configured.
type Trigger struct {
	Push        *BranchFilter `yaml:"push,omitempty"`
	PullRequest *BranchFilter `yaml:"pull_request,omitempty"`

	// Event names present in the file that this runner does not handle.
	Ignored []string `yaml:"-"`
}

// Matches reports whether ev is eligible to start a run. It has no side
// effects and is evaluated before a run is created.
func (t Trigger) Matches(ev Event) bool {
	f := t.filter(ev.Kind)
	if f == nil {
		return false
	}
	return f.Matches(ev.Branch)
}

// Empty reports whether no supported event is configured.
func (t Trigger) Empty() bool {
	return t.Push == nil && t.PullRequest == nil
}

func (t Trigger) filter(kind EventKind) *BranchFilter {
	switch kind {
	case EventPush:
		return t.Push
	case EventPullRequest:
		return t.PullRequest
	default:
		return nil
	}
}

// UnmarshalYAML accepts the three trigger shapes: a single event name,
// a list of event names, or a mapping of event names to branch filters.
func (t *Trigger) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		t.enable(node.Value, nil)
		return nil
	case yaml.SequenceNode:
		for _, n := range node.Content {
			if n.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: event name must be a string", n.Line)
			}
			t.enable(n.Value, nil)
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			f := &BranchFilter{}
			if val.ShortTag() != "!!null" {
				if err := val.Decode(f); err != nil {
					return fmt.Errorf("trigger %q: %w", key.Value, err)
				}
			}
			t.enable(key.Value, f)
		}
		return nil
	default:
		return fmt.Errorf("line %d: unsupported trigger definition", node.Line)
	}
}

func (t *Trigger) enable(name string, f *BranchFilter) {
	if f == nil {
		f = &BranchFilter{}
	}
	switch EventKind(name) {
	case EventPush:
		t.Push = f
	case EventPullRequest:
		t.PullRequest = f
	default:
		t.Ignored = append(t.Ignored, name)
	}
}

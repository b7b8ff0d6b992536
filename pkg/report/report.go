package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/systemstart/cirun/pkg/processing"
)

type styles struct {
	header  lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	info    lipgloss.Style
	divider lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{header: plain, success: plain, failure: plain, info: plain, divider: plain}
	}
	return styles{
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true),
		failure: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		info:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		divider: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Render formats a run result as a terminal summary: a header, one line per
// executed step and the verdict.
func Render(r *processing.RunResult, color bool) string {
	st := newStyles(color)

	var b strings.Builder
	b.WriteString(st.header.Render("Workflow " + r.Workflow))
	if r.Event.Kind != "" {
		b.WriteString(st.info.Render(fmt.Sprintf("  %s on %s", r.Event.Kind, r.Event.Branch)))
	}
	b.WriteByte('\n')
	if r.RunID != "" {
		b.WriteString(st.info.Render("Run " + r.RunID))
		b.WriteByte('\n')
	}
	b.WriteString(st.divider.Render(strings.Repeat("─", 48)))
	b.WriteByte('\n')

	width := 0
	for _, s := range r.Steps {
		width = max(width, lipgloss.Width(s.Name))
	}

	for _, s := range r.Steps {
		mark := st.success.Render("✓")
		if s.ExitCode != 0 {
			mark = st.failure.Render("✗")
		}
		line := fmt.Sprintf("%s %2d  %-*s  exit %-3d  %s", mark, s.Index, width, s.Name, s.ExitCode, formatDuration(s.Duration))
		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteString(st.divider.Render(strings.Repeat("─", 48)))
	b.WriteByte('\n')
	b.WriteString(verdict(r, st))
	b.WriteByte('\n')
	return b.String()
}

func verdict(r *processing.RunResult, st styles) string {
	if r.Succeeded() {
		return st.success.Render(fmt.Sprintf("Success: %d steps passed", len(r.Steps)))
	}
	name := ""
	if r.Failure != nil {
		name = " (" + r.Failure.Name + ")"
	}
	return st.failure.Render(fmt.Sprintf("Failed at step %d%s with exit code %d", r.FailedStep, name, r.ExitCode))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

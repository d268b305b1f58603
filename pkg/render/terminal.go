package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dkoosis/commitq/pkg/pattern"
)

// statusColumn is the padded width of the status tag in report rows.
const statusColumn = 15

// Terminal renders patterns as styled terminal output via lipgloss.
type Terminal struct {
	theme Theme
	width int
}

// NewTerminal creates a terminal renderer with the given theme.
func NewTerminal(theme Theme, width int) *Terminal {
	if width <= 0 {
		width = defaultWidth
	}
	return &Terminal{theme: theme, width: width}
}

// Render formats all patterns for terminal display. A Summary and the
// ResultTable that follows it share one report box.
func (t *Terminal) Render(patterns []pattern.Pattern) string {
	var sections []string
	var summary *pattern.Summary
	for _, p := range patterns {
		switch v := p.(type) {
		case *pattern.Summary:
			summary = v
		case *pattern.ResultTable:
			sections = append(sections, t.renderReport(summary, v))
			summary = nil
		case *pattern.Response:
			sections = append(sections, t.renderResponse(v))
		}
	}
	if summary != nil {
		sections = append(sections, t.renderReport(summary, nil))
	}
	return strings.Join(sections, "\n")
}

func (t *Terminal) renderResponse(r *pattern.Response) string {
	var sb strings.Builder

	head := "─── Response for "
	sb.WriteString(head)
	sb.WriteString(t.theme.Accent.Render(r.Commit))
	sb.WriteString(" (" + r.Elapsed + ") ")
	used := lipgloss.Width(head + r.Commit + " (" + r.Elapsed + ") ")
	if rule := t.width - used; rule > 0 {
		sb.WriteString(strings.Repeat("─", rule))
	}
	sb.WriteString("\n")

	icon, style := t.theme.StatusStyle(r.Passed)
	sb.WriteString(style.Render(icon + " Status: " + r.Status))
	sb.WriteString("\n")

	box := NewBox(t.width).Border(lipgloss.NormalBorder()).Color(t.theme.Frame)
	box.AddLines(strings.Split(r.Body, "\n")...)
	sb.WriteString(box.String())
	sb.WriteString("\n")
	return sb.String()
}

func (t *Terminal) renderReport(s *pattern.Summary, tt *pattern.ResultTable) string {
	box := NewBox(t.width).Color(t.theme.Report)
	if s != nil {
		box.Title(s.Label, t.theme.Bold.Inherit(t.theme.Primary))
		box.AddLines(t.metricsLine(s.Metrics))
	}
	if tt != nil && len(tt.Results) > 0 {
		if s != nil {
			box.Divider()
		}
		for _, r := range tt.Results {
			box.AddLines(t.resultRow(r))
		}
	}
	return box.String() + "\n"
}

func (t *Terminal) metricsLine(metrics []pattern.SummaryItem) string {
	parts := make([]string, 0, len(metrics))
	for _, m := range metrics {
		icon, style := t.iconStyle(m.Kind)
		parts = append(parts, style.Render(icon+" "+m.Label+": "+m.Value))
	}
	return strings.Join(parts, "  ")
}

func (t *Terminal) resultRow(r pattern.ResultTableItem) string {
	icon, style := t.theme.StatusStyle(r.Passed)
	return strings.Join([]string{
		t.theme.Muted.Render(fmt.Sprintf("%03d", r.Index)),
		style.Render(icon),
		t.theme.Accent.Render(r.Commit),
		t.theme.Muted.Render(t.theme.Icons.Arrow),
		style.Render(padRight(r.Status, statusColumn)),
		t.theme.Warning.Render(padLeft(r.Elapsed, 6)),
	}, " ")
}

func (t *Terminal) iconStyle(kind string) (string, lipgloss.Style) {
	switch kind {
	case "success":
		return t.theme.Icons.Pass, t.theme.Success
	case "error":
		return t.theme.Icons.Fail, t.theme.Error
	case "warning":
		return t.theme.Icons.Warn, t.theme.Warning
	default:
		return t.theme.Icons.Info, t.theme.Primary
	}
}

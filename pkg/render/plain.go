package render

import (
	"fmt"
	"strings"

	"github.com/dkoosis/commitq/pkg/pattern"
)

// Plain renders patterns as unstyled text for pipes, logs and NO_COLOR
// terminals. Zero ANSI codes, no box drawing.
type Plain struct{}

// NewPlain creates a plain-text renderer.
func NewPlain() *Plain {
	return &Plain{}
}

// Render formats all patterns as plain text.
func (p *Plain) Render(patterns []pattern.Pattern) string {
	var sb strings.Builder
	for _, pat := range patterns {
		switch v := pat.(type) {
		case *pattern.Summary:
			sb.WriteString(v.Label + "\n")
			metrics := make([]string, 0, len(v.Metrics))
			for _, m := range v.Metrics {
				metrics = append(metrics, m.Label+": "+m.Value)
			}
			sb.WriteString(strings.Join(metrics, "  ") + "\n")
		case *pattern.ResultTable:
			for _, r := range v.Results {
				mark := "FAIL"
				if r.Passed {
					mark = "PASS"
				}
				fmt.Fprintf(&sb, "%03d %s %s -> %s %s\n",
					r.Index, mark, r.Commit, padRight(r.Status, statusColumn), padLeft(r.Elapsed, 6))
			}
		case *pattern.Response:
			fmt.Fprintf(&sb, "--- Response for %s (%s) ---\n", v.Commit, v.Elapsed)
			fmt.Fprintf(&sb, "Status: %s\n", v.Status)
			for _, line := range strings.Split(v.Body, "\n") {
				sb.WriteString("  " + line + "\n")
			}
		}
	}
	return sb.String()
}

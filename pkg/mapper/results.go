// Package mapper converts run data into visualization patterns.
package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dkoosis/commitq/pkg/job"
	"github.com/dkoosis/commitq/pkg/pattern"
)

// SummaryLabel heads the end-of-run report.
const SummaryLabel = "Test Summary Report"

var upper = cases.Upper(language.Und)

// FromResults converts the run's result log into a Summary and a ResultTable.
// Returns nil when there are no results.
func FromResults(results []job.Result) []pattern.Pattern {
	if len(results) == 0 {
		return nil
	}
	stats := job.ComputeStats(results)

	items := make([]pattern.ResultTableItem, 0, len(results))
	for i, r := range results {
		items = append(items, pattern.ResultTableItem{
			Index:   i + 1,
			Commit:  job.ShortHash(r.Commit),
			Status:  upper.String(r.Status),
			Elapsed: FormatSeconds(r.Elapsed),
			Passed:  r.Passed(),
		})
	}

	return []pattern.Pattern{
		resultSummary(stats),
		&pattern.ResultTable{Label: "Commits", Results: items},
	}
}

func resultSummary(s job.Stats) *pattern.Summary {
	failedKind := "success"
	if s.Failed > 0 {
		failedKind = "error"
	}
	return &pattern.Summary{
		Label: SummaryLabel,
		Metrics: []pattern.SummaryItem{
			{Label: "Total Tests", Value: fmt.Sprintf("%d", s.Total), Kind: "info"},
			{Label: "Passed", Value: fmt.Sprintf("%d", s.Passed), Kind: "success"},
			{Label: "Failed", Value: fmt.Sprintf("%d", s.Failed), Kind: failedKind},
			{Label: "Avg Time", Value: FormatSeconds(s.Average), Kind: "info"},
		},
	}
}

// FromResult converts one result into the pattern shown as the response arrives.
func FromResult(r job.Result) *pattern.Response {
	return &pattern.Response{
		Commit:  job.ShortHash(r.Commit),
		Elapsed: FormatSeconds(r.Elapsed),
		Status:  r.Status,
		Passed:  r.Passed(),
		Body:    indentJSON(r.Response),
	}
}

// FormatSeconds renders a duration as seconds with two decimals, e.g. "1.25s".
func FormatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// indentJSON pretty-prints raw JSON without reordering keys.
func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

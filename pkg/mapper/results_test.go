package mapper

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/commitq/pkg/job"
	"github.com/dkoosis/commitq/pkg/pattern"
)

func TestFromResults_BuildsSummaryAndTable(t *testing.T) {
	t.Parallel()

	results := []job.Result{
		{Commit: "aaaaaaaaaa", Status: "error", Elapsed: 1500 * time.Millisecond},
		{Commit: "bbbbbbbbbb", Status: job.StatusSuccess, Elapsed: 500 * time.Millisecond},
	}

	patterns := FromResults(results)
	require.Len(t, patterns, 2)

	summary, ok := patterns[0].(*pattern.Summary)
	require.True(t, ok)
	assert.Equal(t, SummaryLabel, summary.Label)
	assert.Equal(t, []pattern.SummaryItem{
		{Label: "Total Tests", Value: "2", Kind: "info"},
		{Label: "Passed", Value: "1", Kind: "success"},
		{Label: "Failed", Value: "1", Kind: "error"},
		{Label: "Avg Time", Value: "1.00s", Kind: "info"},
	}, summary.Metrics)

	table, ok := patterns[1].(*pattern.ResultTable)
	require.True(t, ok)
	assert.Equal(t, []pattern.ResultTableItem{
		{Index: 1, Commit: "aaaaaaa", Status: "ERROR", Elapsed: "1.50s", Passed: false},
		{Index: 2, Commit: "bbbbbbb", Status: "TEST_RESULTS", Elapsed: "0.50s", Passed: true},
	}, table.Results)
}

func TestFromResults_ReturnsNil_When_NoResults(t *testing.T) {
	t.Parallel()
	assert.Nil(t, FromResults(nil))
}

func TestFromResult_IndentsBodyInServerOrder(t *testing.T) {
	t.Parallel()

	r := job.Result{
		Commit:   "abc1234567",
		Status:   job.StatusSuccess,
		Elapsed:  1234 * time.Millisecond,
		Response: json.RawMessage(`{"type":"test_results","passed":3,"a":1}`),
	}

	p := FromResult(r)
	assert.Equal(t, "abc1234", p.Commit)
	assert.Equal(t, "1.23s", p.Elapsed)
	assert.True(t, p.Passed)
	assert.Equal(t, "{\n  \"type\": \"test_results\",\n  \"passed\": 3,\n  \"a\": 1\n}", p.Body)
}

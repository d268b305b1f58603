package dispatch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/commitq/pkg/job"
)

type fakeSender struct {
	sent      []job.Request
	closes    int
	responded *int
	maxAhead  int
	sendErr   error
}

func (f *fakeSender) Send(v any) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	req, ok := v.(job.Request)
	if !ok {
		return errors.New("unexpected payload type")
	}
	f.sent = append(f.sent, req)
	if ahead := len(f.sent) - *f.responded; ahead > f.maxAhead {
		f.maxAhead = ahead
	}
	return nil
}

func (f *fakeSender) Close() error {
	f.closes++
	return nil
}

type recordingReporter struct {
	connected, closed, completed, shutdowns int
	sent                                    []string
	responses                               []job.Result
	invalid                                 int
	transportErrs                           int
	summaries                               [][]job.Result
}

func (r *recordingReporter) Connected() { r.connected++ }
func (r *recordingReporter) Sent(commit string) { r.sent = append(r.sent, commit) }
func (r *recordingReporter) Response(res job.Result) { r.responses = append(r.responses, res) }
func (r *recordingReporter) InvalidPayload(_ []byte, _ error) { r.invalid++ }
func (r *recordingReporter) TransportError(error) { r.transportErrs++ }
func (r *recordingReporter) Closed() { r.closed++ }
func (r *recordingReporter) Completed() { r.completed++ }
func (r *recordingReporter) ShuttingDown() { r.shutdowns++ }
func (r *recordingReporter) Summary(results []job.Result) { r.summaries = append(r.summaries, results) }

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

type harness struct {
	d         *Dispatcher
	sender    *fakeSender
	report    *recordingReporter
	responded int
}

func newHarness(commits []string, opts ...Option) *harness {
	h := &harness{report: &recordingReporter{}}
	h.sender = &fakeSender{responded: &h.responded}
	tmpl := job.Template{UserID: job.NewID("u"), ChatID: job.NewID("c"), RepoURL: "r", ProjectType: "python", TestCommand: "pytest tests/"}
	opts = append([]Option{WithClock(stepClock(250 * time.Millisecond))}, opts...)
	h.d = New(tmpl, commits, h.report, opts...)
	return h
}

func (h *harness) reply(payload string) {
	h.responded++
	h.d.OnMessage([]byte(payload))
}

func TestDispatcher_SendsEveryCommitInOrder_OneAtATime(t *testing.T) {
	t.Parallel()

	commits := []string{"c1", "c2", "c3", "c4"}
	h := newHarness(commits)
	h.d.OnOpen(h.sender)
	for range commits {
		h.reply(`{"type":"test_results"}`)
	}

	require.Len(t, h.sender.sent, len(commits))
	for i, req := range h.sender.sent {
		assert.Equal(t, commits[i], req.CommitHash)
	}
	assert.Equal(t, 1, h.sender.maxAhead, "never more than one request outstanding")
	assert.Equal(t, commits, h.report.sent)
	assert.Equal(t, 1, h.report.completed)
	assert.Equal(t, 1, h.sender.closes)
	assert.Zero(t, h.d.Pending())

	select {
	case <-h.d.Done():
	default:
		t.Fatal("dispatcher should be done after the queue drains")
	}
}

func TestDispatcher_RecordsResponseAgainstOutstandingCommit(t *testing.T) {
	t.Parallel()

	h := newHarness([]string{"a", "b"})
	h.d.OnOpen(h.sender)
	h.reply(`{"type":"error","msg":"x"}`)
	h.reply(`{"type":"test_results"}`)

	results := h.d.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Commit)
	assert.Equal(t, "error", results[0].Status)
	assert.Equal(t, "b", results[1].Commit)
	assert.Equal(t, job.StatusSuccess, results[1].Status)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Elapsed, time.Duration(0))
	}

	h.d.Finalize()
	require.Len(t, h.report.summaries, 1)
	stats := job.ComputeStats(h.report.summaries[0])
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Passed)
	assert.Equal(t, 1, stats.Failed)
}

func TestDispatcher_SingleCommitPasses(t *testing.T) {
	t.Parallel()

	h := newHarness([]string{"abc1234567"})
	h.d.OnOpen(h.sender)
	h.reply(`{"type":"test_results","passed":3}`)
	h.d.Finalize()

	require.Len(t, h.report.summaries, 1)
	results := h.report.summaries[0]
	require.Len(t, results, 1)
	assert.Equal(t, job.StatusSuccess, results[0].Status)
	assert.Equal(t, 250*time.Millisecond, results[0].Elapsed)
	assert.JSONEq(t, `{"type":"test_results","passed":3}`, string(results[0].Response))

	stats := job.ComputeStats(results)
	assert.Equal(t, job.Stats{Total: 1, Passed: 1, Failed: 0, Elapsed: 250 * time.Millisecond, Average: 250 * time.Millisecond}, stats)
}

func TestDispatcher_EmptyQueue_CompletesWithoutSendingOrSummary(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	h.d.OnOpen(h.sender)
	h.d.Finalize()

	assert.Empty(t, h.sender.sent)
	assert.Equal(t, 1, h.report.completed)
	assert.Equal(t, 1, h.report.shutdowns)
	assert.Equal(t, 1, h.sender.closes)
	assert.Empty(t, h.report.summaries)
}

func TestDispatcher_MalformedPayload_StallsLoop(t *testing.T) {
	t.Parallel()

	h := newHarness([]string{"a", "b"})
	h.d.OnOpen(h.sender)
	h.reply(`not json`)

	assert.Empty(t, h.d.Results())
	assert.Equal(t, 1, h.report.invalid)
	assert.Len(t, h.sender.sent, 1, "no further dispatch after a bad payload")
	assert.Equal(t, 1, h.d.Pending())

	// A later well-formed message still belongs to the stalled commit.
	h.reply(`{"type":"test_results"}`)
	results := h.d.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Commit)
	assert.Len(t, h.sender.sent, 2)
}

func TestDispatcher_ShutdownTwice_HasOneEffect(t *testing.T) {
	t.Parallel()

	h := newHarness([]string{"a", "b"})
	h.d.OnOpen(h.sender)
	h.reply(`{"type":"test_results"}`)

	h.d.Shutdown()
	h.d.Shutdown()
	h.d.Finalize()
	h.d.Finalize()

	assert.Equal(t, 1, h.report.shutdowns)
	assert.Equal(t, 1, h.sender.closes)
	require.Len(t, h.report.summaries, 1)
	assert.Len(t, h.report.summaries[0], 1)
}

func TestDispatcher_NoDispatchAfterShutdown(t *testing.T) {
	t.Parallel()

	h := newHarness([]string{"a", "b"})
	h.d.OnOpen(h.sender)
	h.d.Shutdown()
	h.reply(`{"type":"test_results"}`)

	assert.Len(t, h.sender.sent, 1)
	assert.Len(t, h.d.Results(), 1)
	assert.Zero(t, h.report.completed)
}

func TestDispatcher_ShutdownBeforeOpen_ClosesWithoutSending(t *testing.T) {
	t.Parallel()

	h := newHarness([]string{"a"})
	h.d.Shutdown()
	h.d.OnOpen(h.sender)

	assert.Empty(t, h.sender.sent)
	assert.Zero(t, h.report.connected)
	assert.Equal(t, 1, h.sender.closes)
}

func TestDispatcher_IgnoresMessageBeforeFirstSend(t *testing.T) {
	t.Parallel()

	h := newHarness([]string{"a"})
	h.d.OnMessage([]byte(`{"type":"test_results"}`))

	assert.Empty(t, h.d.Results())
	assert.Empty(t, h.report.responses)
}

func TestDispatcher_ElapsedNeverNegative(t *testing.T) {
	t.Parallel()

	h := newHarness([]string{"a"}, WithClock(stepClock(-time.Second)))
	h.d.OnOpen(h.sender)
	h.reply(`{"type":"test_results"}`)

	results := h.d.Results()
	require.Len(t, results, 1)
	assert.Zero(t, results[0].Elapsed)
}

func TestDispatcher_TransportEventsLeaveQueueAlone(t *testing.T) {
	t.Parallel()

	h := newHarness([]string{"a", "b"})
	h.d.OnOpen(h.sender)
	h.d.OnError(errors.New("connection reset"))
	h.d.OnClose(1006, "")

	assert.Equal(t, 1, h.report.transportErrs)
	assert.Equal(t, 1, h.report.closed)
	assert.Equal(t, 1, h.d.Pending())
	assert.Zero(t, h.report.shutdowns)
}

func TestDispatcher_SendFailure_IsReported(t *testing.T) {
	t.Parallel()

	h := newHarness([]string{"a"})
	h.sender.sendErr = errors.New("broken pipe")
	h.d.OnOpen(h.sender)

	assert.Equal(t, 1, h.report.transportErrs)
	assert.Empty(t, h.report.sent)
}

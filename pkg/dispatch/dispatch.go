// Package dispatch drives a run: it sends one queued commit at a time over a
// transport connection, records each reply, and reports the outcome.
//
// The loop has two states. After a request is sent it awaits exactly one
// response; once the queue is empty, or Shutdown is called, it is done. A
// payload that cannot be decoded leaves the loop waiting on the same commit.
package dispatch

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkoosis/commitq/pkg/job"
	"github.com/dkoosis/commitq/pkg/transport"
)

// Reporter receives every user-visible event of a run.
type Reporter interface {
	Connected()
	Sent(commit string)
	Response(r job.Result)
	InvalidPayload(payload []byte, err error)
	TransportError(err error)
	Closed()
	Completed()
	ShuttingDown()
	Summary(results []job.Result)
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithClock replaces time.Now for elapsed-time measurement.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher implements transport.Handler for one run.
type Dispatcher struct {
	tmpl   job.Template
	report Reporter
	log    zerolog.Logger
	now    func() time.Time

	// mu guards the run state below; transport callbacks hold it.
	mu       sync.Mutex
	queue    []string
	current  string
	started  time.Time
	inFlight bool
	results  []job.Result

	connMu sync.Mutex
	sender transport.Sender

	stopOnce    sync.Once
	summaryOnce sync.Once
	done        chan struct{}
}

var _ transport.Handler = (*Dispatcher)(nil)

// New creates a dispatcher for commits, tested in the given order.
func New(tmpl job.Template, commits []string, report Reporter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		tmpl:   tmpl,
		report: report,
		log:    zerolog.Nop(),
		now:    time.Now,
		queue:  append([]string(nil), commits...),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnOpen starts the run by sending the first queued commit.
func (d *Dispatcher) OnOpen(s transport.Sender) {
	d.connMu.Lock()
	d.sender = s
	d.connMu.Unlock()

	if d.stopped() {
		// Shutdown raced the handshake.
		_ = s.Close()
		return
	}

	d.report.Connected()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatchNext()
}

// OnMessage records the reply to the outstanding request and sends the next one.
func (d *Dispatcher) OnMessage(payload []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == "" {
		d.log.Warn().Int("bytes", len(payload)).Msg("message received before any request was sent; ignoring")
		return
	}
	if !d.inFlight {
		d.log.Warn().Str("commit", d.current).Msg("message received with no request outstanding; ignoring")
		return
	}

	elapsed := d.now().Sub(d.started)
	if elapsed < 0 {
		elapsed = 0
	}

	resp, err := job.DecodeResponse(payload)
	if err != nil {
		// The request stays outstanding; a later message is attributed to it.
		d.log.Debug().Err(err).Str("commit", d.current).Msg("undecodable response")
		d.report.InvalidPayload(payload, err)
		return
	}

	result := job.Result{
		Commit:   d.current,
		Status:   resp.Type,
		Elapsed:  elapsed,
		Response: resp.Raw,
	}
	d.results = append(d.results, result)
	d.inFlight = false
	d.log.Debug().
		Str("commit", result.Commit).
		Str("status", result.Status).
		Dur("elapsed", result.Elapsed).
		Msg("response recorded")

	d.report.Response(result)
	d.dispatchNext()
}

// OnError reports a transport failure. It does not change the queue.
func (d *Dispatcher) OnError(err error) {
	d.log.Debug().Err(err).Msg("transport error")
	d.report.TransportError(err)
}

// OnClose reports that the connection ended.
func (d *Dispatcher) OnClose(code int, reason string) {
	d.log.Debug().Int("code", code).Str("reason", reason).Msg("connection closed")
	d.report.Closed()
}

// dispatchNext sends the front of the queue, or shuts down when it is empty.
// Callers hold d.mu.
func (d *Dispatcher) dispatchNext() {
	if d.stopped() {
		return
	}
	if len(d.queue) == 0 {
		d.report.Completed()
		d.Shutdown()
		return
	}

	commit := d.queue[0]
	d.queue = d.queue[1:]
	d.current = commit
	d.started = d.now()
	d.inFlight = true

	d.connMu.Lock()
	s := d.sender
	d.connMu.Unlock()

	if err := s.Send(d.tmpl.For(commit)); err != nil {
		d.log.Debug().Err(err).Str("commit", commit).Msg("send failed")
		d.report.TransportError(err)
		return
	}
	d.report.Sent(commit)
}

// Shutdown closes the connection and marks the run done. Only the first call
// has any effect.
func (d *Dispatcher) Shutdown() {
	d.stopOnce.Do(func() {
		d.report.ShuttingDown()
		d.connMu.Lock()
		s := d.sender
		d.connMu.Unlock()
		if s != nil {
			if err := s.Close(); err != nil {
				d.log.Debug().Err(err).Msg("close")
			}
		}
		close(d.done)
	})
}

// Done is closed once Shutdown has run.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

func (d *Dispatcher) stopped() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Finalize emits the summary report. It runs at most once and only when at
// least one result was recorded. Every exit path should defer it.
func (d *Dispatcher) Finalize() {
	d.summaryOnce.Do(func() {
		results := d.Results()
		if len(results) == 0 {
			return
		}
		d.report.Summary(results)
	})
}

// Results returns a copy of the result log in submission order.
func (d *Dispatcher) Results() []job.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]job.Result(nil), d.results...)
}

// Pending returns the number of commits not yet sent.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Package console prints run progress and reports for commitq.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-runewidth"

	"github.com/dkoosis/commitq/pkg/job"
	"github.com/dkoosis/commitq/pkg/mapper"
	"github.com/dkoosis/commitq/pkg/pattern"
	"github.com/dkoosis/commitq/pkg/render"
)

// maxPayloadEcho caps how much of an undecodable payload is echoed back.
const maxPayloadEcho = 512

// Options configures a Console. Zero values fall back to stdout, the default
// theme and a terminal renderer.
type Options struct {
	Out             io.Writer // progress lines and responses
	Report          io.Writer // end-of-run summary
	Theme           render.Theme
	Renderer        render.Renderer // responses
	SummaryRenderer render.Renderer
}

// Console writes progress lines as transport events arrive. It is safe for
// concurrent use; signal handling reports from its own goroutine.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	report   io.Writer
	theme    render.Theme
	renderer render.Renderer
	summary  render.Renderer
}

// New creates a console.
func New(opts Options) *Console {
	c := &Console{
		out:      opts.Out,
		report:   opts.Report,
		theme:    opts.Theme,
		renderer: opts.Renderer,
		summary:  opts.SummaryRenderer,
	}
	if c.out == nil {
		c.out = os.Stdout
	}
	if c.report == nil {
		c.report = c.out
	}
	if c.theme.Name == "" {
		c.theme = render.DefaultTheme()
	}
	if c.renderer == nil {
		c.renderer = render.NewTerminal(c.theme, 0)
	}
	if c.summary == nil {
		c.summary = c.renderer
	}
	return c
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// Header prints the run banner.
func (c *Console) Header(repo string, commits int, server string) {
	t := c.theme
	label := func(s string) string { return t.Warning.Render(t.Icons.Bullet + " " + s + ":") }
	c.println("\n" + t.Bold.Inherit(t.Primary).Render("commitq test client"))
	c.println(label("Repo") + " " + repo)
	c.println(label("Commits") + " " + fmt.Sprint(commits))
	c.println(label("Server") + " " + server)
	c.println("\n" + t.Muted.Render("Press Ctrl+C to exit") + "\n")
}

// Connected reports a successful handshake.
func (c *Console) Connected() {
	c.println(c.theme.Success.Render(c.theme.Icons.Connect + " Connected to server"))
}

// ConnectFailed reports a failed handshake.
func (c *Console) ConnectFailed(err error) {
	c.println(c.theme.Error.Render(c.theme.Icons.Fail + " Connection failed: " + err.Error()))
}

// Sent acknowledges a dispatched commit.
func (c *Console) Sent(commit string) {
	c.println(c.theme.Icons.Send + " Sent: " + c.theme.Accent.Render(job.ShortHash(commit)))
}

// Response prints a recorded reply.
func (c *Console) Response(r job.Result) {
	out := c.renderer.Render([]pattern.Pattern{mapper.FromResult(r)})
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, "\n"+out)
}

// InvalidPayload reports a reply that could not be decoded.
func (c *Console) InvalidPayload(payload []byte, err error) {
	echo := runewidth.Truncate(string(payload), maxPayloadEcho, "…")
	c.println(c.theme.Error.Render(c.theme.Icons.Fail+" Invalid JSON response:") + " " + echo)
	c.println(c.theme.Muted.Render("  " + err.Error()))
}

// TransportError reports a connection-level failure.
func (c *Console) TransportError(err error) {
	c.println("\n" + c.theme.Error.Render(c.theme.Icons.Warn+" WebSocket error: "+err.Error()))
}

// Closed reports the end of the connection.
func (c *Console) Closed() {
	c.println("\n" + c.theme.Primary.Render(c.theme.Icons.Close+" Connection closed"))
}

// Completed reports that every commit was processed.
func (c *Console) Completed() {
	c.println(c.theme.Success.Render(c.theme.Icons.Done + " All commits processed!"))
}

// ShuttingDown reports the start of shutdown.
func (c *Console) ShuttingDown() {
	c.println("\n" + c.theme.Error.Render(c.theme.Icons.Stop+" Graceful shutdown initiated..."))
}

// Summary prints the end-of-run report.
func (c *Console) Summary(results []job.Result) {
	patterns := mapper.FromResults(results)
	if len(patterns) == 0 {
		return
	}
	out := c.summary.Render(patterns)
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.report, "\n"+out)
}

// commitq sends a list of commits to a remote test server one at a time and
// reports how each run went.
//
// Usage:
//
//	commitq [--config config.json] [--theme default|orca|mono] [--format auto|terminal|plain|json] [--debug]
//	commitq serve [--addr :8765] [--fail-every N] [--delay 500ms]
//	commitq version
//
// The client opens one WebSocket to ws_url, sends a job request for the first
// commit, waits for its reply, then sends the next. When the list is exhausted,
// or on Ctrl+C, it closes the connection and prints a summary.
//
// Output modes (auto-detected):
//
//	terminal  styled Unicode output (default when TTY)
//	plain     unstyled text (default when piped)
//	json      summary as JSON on stdout, progress as plain text on stderr
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/dkoosis/commitq/internal/config"
	"github.com/dkoosis/commitq/internal/console"
	"github.com/dkoosis/commitq/internal/logging"
	"github.com/dkoosis/commitq/internal/stubserver"
	"github.com/dkoosis/commitq/internal/version"
	"github.com/dkoosis/commitq/pkg/dispatch"
	"github.com/dkoosis/commitq/pkg/render"
	"github.com/dkoosis/commitq/pkg/transport"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1 // config or connection failure
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// Check for subcommands before flag parsing
	if len(args) > 0 {
		switch args[0] {
		case "serve":
			return runServe(ctx, args[1:], stdout, stderr)
		case "version":
			fmt.Fprintln(stdout, version.String())
			return exitOK
		}
	}

	fs := flag.NewFlagSet("commitq", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFlag := fs.String("config", "", "Path to config file (JSON or YAML)")
	themeFlag := fs.String("theme", config.DefaultTheme, "Theme: default, orca, mono")
	formatFlag := fs.String("format", config.DefaultFormat, "Output format: auto, terminal, plain, json")
	debugFlag := fs.Bool("debug", false, "Log diagnostics to stderr")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "commitq: unexpected argument %q\n", fs.Arg(0))
		return exitUsage
	}

	flags := config.CliFlags{
		ConfigPath: *configFlag,
		Theme:      *themeFlag,
		Format:     *formatFlag,
		Debug:      *debugFlag,
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "theme":
			flags.ThemeSet = true
		case "format":
			flags.FormatSet = true
		case "debug":
			flags.DebugSet = true
		}
	})

	cfg, err := config.Resolve(flags)
	if err != nil {
		fmt.Fprintf(stderr, "commitq: error loading config: %v\n", err)
		return exitFailure
	}

	logger := logging.WithSession(logging.New(stderr, cfg.Debug), uuid.NewString())
	if !render.ValidTheme(cfg.Theme) {
		logger.Warn().Str("theme", cfg.Theme).Msg("unknown theme; using default")
	}
	logger.Debug().
		Str("config", cfg.Path).
		Str("server", cfg.WSURL).
		Int("commits", len(cfg.Commits)).
		Msg("config loaded")

	return session(ctx, cfg, newConsole(cfg, stdout, stderr), logger)
}

// session runs the dispatch loop over one connection. The summary is printed
// by the deferred Finalize on every way out of this function, panics included.
func session(ctx context.Context, cfg *config.Config, con *console.Console, logger zerolog.Logger) int {
	con.Header(cfg.RepoURL, len(cfg.Commits), cfg.WSURL)

	d := dispatch.New(cfg.Template(), cfg.Commits, con, dispatch.WithLogger(logger))
	defer d.Finalize()

	conn, err := transport.Dial(ctx, cfg.WSURL, transport.Options{HandshakeTimeout: cfg.HandshakeTimeout})
	if err != nil {
		if ctx.Err() != nil {
			d.Shutdown()
			return exitOK
		}
		con.ConnectFailed(err)
		return exitFailure
	}

	// Interrupts take the same path as normal completion.
	stopWatch := context.AfterFunc(ctx, d.Shutdown)
	defer stopWatch()

	if err := conn.Serve(d); err != nil {
		logger.Debug().Err(err).Msg("connection ended with error")
	}
	return exitOK
}

func newConsole(cfg *config.Config, stdout, stderr io.Writer) *console.Console {
	theme := render.ThemeByName(cfg.Theme)
	switch resolveFormat(cfg.Format, stdout) {
	case "json":
		return console.New(console.Options{
			Out:             stderr,
			Report:          stdout,
			Theme:           render.MonoTheme(),
			Renderer:        render.NewPlain(),
			SummaryRenderer: render.NewJSON(),
		})
	case "plain":
		return console.New(console.Options{
			Out:      stdout,
			Theme:    render.MonoTheme(),
			Renderer: render.NewPlain(),
		})
	default:
		return console.New(console.Options{
			Out:      stdout,
			Theme:    theme,
			Renderer: render.NewTerminal(theme, termWidth(stdout)),
		})
	}
}

func resolveFormat(format string, w io.Writer) string {
	if format != "auto" {
		return format
	}
	// Auto-detect: TTY = terminal, piped = plain
	if isTTYWriter(w) {
		return "terminal"
	}
	return "plain"
}

// isTTYWriter reports whether w is a terminal.
func isTTYWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// termWidth returns the terminal width for w, defaulting to 80.
func termWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
			return tw
		}
	}
	return 80
}

// --- commitq serve subcommand ---

func runServe(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("commitq serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", ":8765", "Listen address")
	failEvery := fs.Int("fail-every", 0, "Answer every Nth job with an error (0 = never)")
	delay := fs.Duration("delay", 0, "Delay before each reply")
	debug := fs.Bool("debug", false, "Log diagnostics to stderr")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *failEvery < 0 {
		fmt.Fprintf(stderr, "commitq serve: --fail-every must be >= 0\n")
		return exitUsage
	}

	logger := logging.New(stderr, *debug)
	if !*debug {
		logger = logger.Level(zerolog.InfoLevel)
	}

	srv := &http.Server{
		Addr: *addr,
		Handler: stubserver.New(stubserver.Options{
			FailEvery: *failEvery,
			Delay:     *delay,
			Logger:    logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	stopWatch := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stopWatch()

	fmt.Fprintf(stdout, "stub test server listening on %s (socket path %s)\n", *addr, stubserver.SocketPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(stderr, "commitq serve: %v\n", err)
		return exitFailure
	}
	return exitOK
}

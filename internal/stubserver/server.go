// Package stubserver is a stand-in test server for local dry runs. It accepts
// job requests over a WebSocket and answers each with a canned reply. It never
// runs anything.
package stubserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dkoosis/commitq/pkg/job"
)

// SocketPath is where the stub accepts WebSocket connections. "/" works too.
const SocketPath = "/ws"

// Options configures the stub's replies.
type Options struct {
	// FailEvery makes every Nth reply an error (0 disables).
	FailEvery int
	// Delay is applied before each reply.
	Delay time.Duration
	// Script, when set, supplies the raw replies in order; once exhausted the
	// canned replies resume. Entries need not be valid JSON.
	Script [][]byte
	Logger zerolog.Logger
}

// Server serves the stub socket and records every request it receives.
type Server struct {
	opts     Options
	router   chi.Router
	upgrader websocket.Upgrader

	mu       sync.Mutex
	requests []job.Request
	replies  int
}

// inbound mirrors job.Request for decoding; ids arrive as numbers or strings.
type inbound struct {
	UserID      json.RawMessage `json:"userId"`
	ChatID      json.RawMessage `json:"chatId"`
	RepoURL     string          `json:"repoURL"`
	CommitHash  string          `json:"commitHash"`
	ProjectType string          `json:"projectType"`
	TestCommand *string         `json:"testCommand"`
}

// New creates a stub server.
func New(opts Options) *Server {
	s := &Server{
		opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleSocket)
	r.Get(SocketPath, s.handleSocket)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Requests returns every job request received so far, in arrival order.
func (s *Server) Requests() []job.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]job.Request(nil), s.requests...)
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.Logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer ws.Close()
	s.opts.Logger.Info().Str("remote", r.RemoteAddr).Msg("client connected")

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.opts.Logger.Debug().Err(err).Msg("read")
			}
			s.opts.Logger.Info().Msg("client disconnected")
			return
		}

		reply := s.replyTo(data)
		if s.opts.Delay > 0 {
			select {
			case <-time.After(s.opts.Delay):
			case <-r.Context().Done():
				return
			}
		}
		if err := ws.WriteMessage(websocket.TextMessage, reply); err != nil {
			s.opts.Logger.Debug().Err(err).Msg("write")
			return
		}
	}
}

func (s *Server) replyTo(data []byte) []byte {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		s.opts.Logger.Warn().Err(err).Msg("undecodable job request")
		return mustJSON(map[string]any{"type": "error", "message": "invalid job request"})
	}

	s.mu.Lock()
	s.requests = append(s.requests, job.Request{
		UserID:      rawID(in.UserID),
		ChatID:      rawID(in.ChatID),
		RepoURL:     in.RepoURL,
		CommitHash:  in.CommitHash,
		ProjectType: in.ProjectType,
		TestCommand: in.TestCommand,
	})
	s.replies++
	n := s.replies
	s.mu.Unlock()

	s.opts.Logger.Info().Str("commit", job.ShortHash(in.CommitHash)).Int("n", n).Msg("job received")

	if n <= len(s.opts.Script) {
		return s.opts.Script[n-1]
	}
	if s.opts.FailEvery > 0 && n%s.opts.FailEvery == 0 {
		return mustJSON(map[string]any{
			"type":       "error",
			"commitHash": in.CommitHash,
			"message":    "simulated failure",
		})
	}
	return mustJSON(map[string]any{
		"type":        job.StatusSuccess,
		"commitHash":  in.CommitHash,
		"projectType": in.ProjectType,
		"testCommand": in.TestCommand,
		"passed":      1,
		"failed":      0,
	})
}

func rawID(raw json.RawMessage) job.ID {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return job.NewID(s)
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return job.NumericID(n)
	}
	return job.ID{}
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

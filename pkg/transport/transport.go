// Package transport wraps a single WebSocket connection and delivers its
// events to a Handler one at a time.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultHandshakeTimeout bounds the opening handshake when Options leaves it unset.
const DefaultHandshakeTimeout = 10 * time.Second

// closeGrace bounds how long Close waits to deliver the close frame.
const closeGrace = time.Second

// ErrClosed is returned by Send after the connection has been closed.
var ErrClosed = errors.New("transport: connection closed")

// Sender is the outbound half of a connection handed to Handler.OnOpen.
type Sender interface {
	Send(v any) error
	Close() error
}

// Handler receives connection events. Serve never invokes two methods
// concurrently.
type Handler interface {
	OnOpen(s Sender)
	OnMessage(payload []byte)
	OnError(err error)
	OnClose(code int, reason string)
}

// Options configures Dial.
type Options struct {
	HandshakeTimeout time.Duration
	Header           http.Header
}

// Conn is one client connection. It is never reused after it closes.
type Conn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Dial opens a connection to url. Cancelling ctx aborts the handshake.
func Dial(ctx context.Context, url string, opts Options) (*Conn, error) {
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	ws, resp, err := dialer.DialContext(ctx, url, opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Conn{ws: ws}, nil
}

// Send writes v as one JSON text message.
func (c *Conn) Send(v any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(v); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close sends a normal-closure frame and releases the socket. Safe to call
// more than once and from any goroutine.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// Serve calls OnOpen, then delivers inbound messages until the connection
// ends. Callbacks run on the calling goroutine.
//
// After a local Close, or when the peer closes normally, the handler sees only
// OnClose and Serve returns nil. Any other read failure is reported through
// OnError followed by OnClose, and returned.
func (c *Conn) Serve(h Handler) error {
	h.OnOpen(c)
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			code, reason := closeDetails(err)
			if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.OnClose(code, reason)
				_ = c.Close()
				return nil
			}
			h.OnError(err)
			h.OnClose(code, reason)
			_ = c.Close()
			return err
		}
		h.OnMessage(payload)
	}
}

func closeDetails(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return websocket.CloseAbnormalClosure, ""
}

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/rtmctl/internal/protocol/frame"
)

// Config controls dialing and per-frame IO.
type Config struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadChunkBytes   int
	Header           http.Header
}

func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadChunkBytes:   frame.DefaultLimits().ReadChunkBytes,
	}
}

func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReadChunkBytes <= 0 {
		c.ReadChunkBytes = d.ReadChunkBytes
	}
	return c
}

// WebSocket adapts a gorilla connection to Transport. Each websocket message
// is surfaced as one or more frames of at most ReadChunkBytes.
type WebSocket struct {
	conn *websocket.Conn
	cfg  Config

	reader io.Reader
	buf    []byte

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// Dial opens a websocket connection to url.
func Dial(ctx context.Context, url string, cfg Config) (*WebSocket, error) {
	cfg = cfg.WithDefaults()
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, cfg.Header)
	if resp != nil && resp.Body != nil {
		defer func() {
			if cerr := resp.Body.Close(); cerr != nil {
				log.Debug().Err(cerr).Msg("transport.Dial close handshake body")
			}
		}()
	}
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, fmt.Errorf("%w: url=%s status=%d: %v", ErrDial, url, status, err)
	}
	log.Debug().Str("url", url).Msg("transport.Dial connected")
	return NewWebSocket(conn, cfg), nil
}

// NewWebSocket wraps an already upgraded connection.
func NewWebSocket(conn *websocket.Conn, cfg Config) *WebSocket {
	cfg = cfg.WithDefaults()
	return &WebSocket{
		conn:   conn,
		cfg:    cfg,
		buf:    make([]byte, cfg.ReadChunkBytes),
		closed: make(chan struct{}),
	}
}

// ReadFrame returns the next chunk of the current message. The last chunk of
// each message has Final set; an empty message is a single empty final frame.
func (w *WebSocket) ReadFrame(ctx context.Context) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	select {
	case <-w.closed:
		return frame.Frame{}, ErrClosed
	default:
	}
	if w.reader == nil {
		_, r, err := w.conn.NextReader()
		if err != nil {
			return frame.Frame{}, w.readErr(err)
		}
		w.reader = r
	}
	n, err := io.ReadFull(w.reader, w.buf)
	switch {
	case err == nil:
		return frame.Frame{Payload: append([]byte(nil), w.buf[:n]...)}, nil
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		w.reader = nil
		return frame.Frame{Payload: append([]byte(nil), w.buf[:n]...), Final: true}, nil
	default:
		w.reader = nil
		return frame.Frame{}, w.readErr(err)
	}
}

func (w *WebSocket) readErr(err error) error {
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return fmt.Errorf("transport: read: %w", err)
}

// WriteMessage writes payload as one text message. The write deadline is the
// earlier of the context deadline and WriteTimeout.
func (w *WebSocket) WriteMessage(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-w.closed:
		return ErrWriteAfterClose
	default:
	}
	deadline := time.Now().Add(w.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// Close sends a normal close frame and closes the connection.
func (w *WebSocket) Close() error {
	w.closeOnce.Do(func() {
		close(w.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		deadline := time.Now().Add(w.cfg.WriteTimeout)
		if err := w.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil &&
			!errors.Is(err, websocket.ErrCloseSent) {
			log.Debug().Err(err).Msg("transport.WebSocket.Close close frame")
		}
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}

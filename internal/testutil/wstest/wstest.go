// Package wstest runs an in-process websocket server for tests.
package wstest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Handler serves one accepted connection. The connection is closed when it returns.
type Handler func(conn *websocket.Conn)

type Server struct {
	URL string

	srv      *httptest.Server
	upgrader websocket.Upgrader
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns []*websocket.Conn
}

// Start serves handler on a loopback listener and closes it on test cleanup.
func Start(t testing.TB, handler Handler) *Server {
	t.Helper()
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("wstest upgrade: %v", err)
			return
		}
		s.wg.Add(1)
		defer s.wg.Done()
		defer conn.Close()
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		handler(conn)
	}))
	s.URL = "ws" + strings.TrimPrefix(s.srv.URL, "http")
	t.Cleanup(s.Close)
	return s
}

// Close drops every upgraded connection and waits for handlers to return.
func (s *Server) Close() {
	s.mu.Lock()
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
	s.mu.Unlock()
	s.srv.Close()
	s.wg.Wait()
}

// Send writes a text message from the server side.
func Send(conn *websocket.Conn, payload string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

// ReadUntilClose returns every text message received until the peer closes.
func ReadUntilClose(conn *websocket.Conn) []string {
	var out []string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return out
		}
		out = append(out, string(data))
	}
}

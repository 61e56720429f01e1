// Package testserver provides a configurable WebSocket server for E2E tests.
package testserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Handler serves one upgraded connection.
type Handler func(conn *websocket.Conn)

// Route configures one path of the server.
type Route struct {
	Handler Handler

	// SetCookies are attached to the upgrade response.
	SetCookies []*http.Cookie

	// RequireCookie rejects handshakes without this cookie with 401.
	RequireCookie string
}

// Handshake stores upgrade request details for verification.
type Handshake struct {
	Path         string
	Headers      http.Header
	Cookies      []*http.Cookie
	Subprotocols []string
	Rejected     bool
	Time         time.Time
}

// Server wraps httptest.Server with handshake recording.
type Server struct {
	*httptest.Server
	mu         sync.Mutex
	handshakes []*Handshake
	upgrader   websocket.Upgrader
}

// New creates a test server with the given routes.
func New(routes map[string]Route) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	for pattern, route := range routes {
		mux.HandleFunc(pattern, s.serve(route))
	}
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *Server) serve(route Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hs := &Handshake{
			Path:         r.URL.Path,
			Headers:      r.Header.Clone(),
			Cookies:      r.Cookies(),
			Subprotocols: websocket.Subprotocols(r),
			Time:         time.Now(),
		}
		if route.RequireCookie != "" {
			if _, err := r.Cookie(route.RequireCookie); err != nil {
				hs.Rejected = true
			}
		}
		s.mu.Lock()
		s.handshakes = append(s.handshakes, hs)
		s.mu.Unlock()

		if hs.Rejected {
			http.Error(w, "missing cookie", http.StatusUnauthorized)
			return
		}

		header := http.Header{}
		for _, c := range route.SetCookies {
			header.Add("Set-Cookie", c.String())
		}
		if len(hs.Subprotocols) > 0 {
			header.Set("Sec-WebSocket-Protocol", hs.Subprotocols[0])
		}
		conn, err := s.upgrader.Upgrade(w, r, header)
		if err != nil {
			return
		}
		defer conn.Close()
		if route.Handler != nil {
			route.Handler(conn)
		}
	}
}

// URL returns the ws:// address of path.
func (s *Server) URL(path string) string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http") + path
}

// Addr returns host:port of the server.
func (s *Server) Addr() string {
	return s.Listener.Addr().String()
}

// Handshakes returns all recorded handshakes.
func (s *Server) Handshakes() []*Handshake {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*Handshake, len(s.handshakes))
	copy(result, s.handshakes)
	return result
}

// LastHandshake returns the last recorded handshake.
func (s *Server) LastHandshake() *Handshake {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.handshakes) == 0 {
		return nil
	}
	return s.handshakes[len(s.handshakes)-1]
}

// HandshakeCount returns the number of recorded handshakes.
func (s *Server) HandshakeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handshakes)
}

// Echo returns a handler that writes every message back.
func Echo() Handler {
	return func(conn *websocket.Conn) {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}
}

// Greet returns a handler that sends greeting first and then echoes.
func Greet(greeting string) Handler {
	echo := Echo()
	return func(conn *websocket.Conn) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(greeting)); err != nil {
			return
		}
		echo(conn)
	}
}

package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/corv87/lanCaller/pkg/signaling"
)

// Server is the signaling relay. Participants connect over a websocket and
// register under the id in the query string; every envelope they send is
// stamped with their id and forwarded to the participant named in To. The
// relay never inspects payloads.
type Server struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(env signaling.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// ServeHTTP upgrades the connection and pumps envelopes until the
// participant disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{id: id, conn: conn}
	s.register(c)
	slog.Info("participant connected", "id", id)

	defer func() {
		s.unregister(c)
		conn.Close()
		slog.Info("participant disconnected", "id", id)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env signaling.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("dropping malformed envelope", "from", id, "error", err)
			continue
		}
		env.From = id
		s.route(env)
	}
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	prev := s.clients[c.id]
	s.clients[c.id] = c
	s.mu.Unlock()

	// A reconnect under the same id supersedes the old connection.
	if prev != nil {
		prev.conn.Close()
	}
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[c.id] == c {
		delete(s.clients, c.id)
	}
}

func (s *Server) route(env signaling.Envelope) {
	s.mu.Lock()
	dst := s.clients[env.To]
	s.mu.Unlock()

	if dst == nil {
		// The caller's own deadline handles an unreachable callee; nothing
		// useful to tell the sender here.
		slog.Debug("dropping envelope for unknown participant",
			"type", env.Type, "from", env.From, "to", env.To)
		return
	}
	if err := dst.write(env); err != nil {
		slog.Warn("failed to forward envelope",
			"type", env.Type, "from", env.From, "to", env.To, "error", err)
	}
}

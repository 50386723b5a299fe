package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Single-user local dashboard.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks websocket clients for broadcasting. Each connection gets its own
// write mutex since gorilla connections allow one concurrent writer.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]*sync.Mutex
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]*sync.Mutex)}
}

func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = &sync.Mutex{}
}

func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Broadcast sends v to every client, dropping connections whose write fails.
func (h *Hub) Broadcast(v any) {
	h.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.conns))
	for c, mu := range h.conns {
		conns[c] = mu
	}
	h.mu.Unlock()

	for conn, mu := range conns {
		mu.Lock()
		err := conn.WriteJSON(v)
		mu.Unlock()
		if err != nil {
			h.Remove(conn)
			conn.Close()
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}
	s.hub.Add(conn)
	defer func() {
		s.hub.Remove(conn)
		conn.Close()
	}()

	// Clients only receive; drain until the connection drops.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("encode response")
	}
}

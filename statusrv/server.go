// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package statusrv is a small read-only observability surface: a websocket
// endpoint that pushes a JSON status snapshot (peer count, chain tip,
// window size, gap count) to every connected subscriber whenever the
// embedder calls Broadcast. It carries none of the stratum/miner-facing
// protocol a full pool server would; it exists purely so an operator or
// dashboard can watch the node's share-chain state change in real time,
// scoped down to a single fan-out channel.
package statusrv

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Snapshot is one point-in-time status push.
type Snapshot struct {
	PeerCount     int    `json:"peer_count"`
	ChainTip      string `json:"chain_tip"`
	WindowHeights int    `json:"window_heights"`
	Calculatable  bool   `json:"calculatable"`
	GapCount      int    `json:"gap_count"`
}

// Server upgrades incoming HTTP connections to websockets and fans out
// every Broadcast call to all currently connected clients.
type Server struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// New returns a Server accepting connections from any origin; this is a
// read-only status feed, not an authenticated control surface, so origin
// checking is left to whatever reverse proxy fronts it in production.
func New() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP implements http.Handler, upgrading the connection and
// registering it as a subscriber until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("statusrv: upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Drain and discard anything the client sends; this is purely to
	// notice the connection closing, since gorilla/websocket requires a
	// read loop to surface close frames.
	go func() {
		defer s.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) remove(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// Broadcast pushes snap to every connected subscriber, dropping any client
// whose write fails.
func (s *Server) Broadcast(snap Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Errorf("statusrv: marshal snapshot: %v", err)
		return
	}

	s.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Debugf("statusrv: write failed, dropping client: %v", err)
			s.remove(c)
		}
	}
}

// ClientCount reports how many subscribers are currently connected.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

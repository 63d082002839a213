// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package statusrv

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestBroadcastReachesConnectedClient(t *testing.T) {
	s := New()
	ts := httptest.NewServer(s)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give ServeHTTP's goroutine a moment to register the client before
	// broadcasting; Broadcast only reaches clients registered by the time
	// it snapshots the client set.
	deadline := time.Now().Add(time.Second)
	for s.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", s.ClientCount())
	}

	s.Broadcast(Snapshot{PeerCount: 3, ChainTip: "deadbeef", WindowHeights: 100, Calculatable: true, GapCount: 0})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !strings.Contains(string(msg), `"peer_count":3`) {
		t.Fatalf("message = %s, want it to contain peer_count:3", msg)
	}
}

func TestBroadcastDropsClientOnWriteFailure(t *testing.T) {
	s := New()
	ts := httptest.NewServer(s)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for s.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	conn.Close()
	ts.Close()

	// The next broadcast should notice the dead connection and drop it
	// rather than blocking or panicking.
	s.Broadcast(Snapshot{PeerCount: 0})

	deadline = time.Now().Add(time.Second)
	for s.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.ClientCount() != 0 {
		t.Fatalf("ClientCount = %d, want 0 after dead client is dropped", s.ClientCount())
	}
}

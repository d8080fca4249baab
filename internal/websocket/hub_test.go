// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hackbase/airmirror/internal/metrics"
)

// startHub runs the hub and returns it with a stop func that blocks until
// the Run goroutine has exited, so no test leaks a goroutine into the next.
func startHub(t *testing.T) (*Hub, func()) {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return hub, stop
}

func receiveOrFail(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never delivered")
		return nil
	}
}

func TestHubBroadcast(t *testing.T) {
	hub, _ := startHub(t)

	client := &Client{hub: hub, send: make(chan []byte, 4)}
	hub.register <- client

	hub.BroadcastJSON(MessageTypeSyncCompleted, map[string]interface{}{"table": "events"})

	payload := receiveOrFail(t, client.send)
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal broadcast: %v", err)
	}
	if msg.Type != MessageTypeSyncCompleted {
		t.Errorf("type = %q, want %q", msg.Type, MessageTypeSyncCompleted)
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub, _ := startHub(t)

	fast := &Client{hub: hub, send: make(chan []byte, 4)}
	slow := &Client{hub: hub, send: make(chan []byte)} // unbuffered, never read
	hub.register <- fast
	hub.register <- slow

	// First broadcast: the hub's non-blocking send finds no receiver on the
	// slow channel and drops the client. The second broadcast is a barrier:
	// once fast has seen it, the first broadcast is fully processed.
	hub.BroadcastJSON(MessageTypeSyncCompleted, "one")
	receiveOrFail(t, fast.send)
	hub.BroadcastJSON(MessageTypeSyncCompleted, "two")
	receiveOrFail(t, fast.send)

	select {
	case _, open := <-slow.send:
		if open {
			t.Error("slow client received instead of being dropped")
		}
	default:
		t.Error("slow client send channel not closed")
	}

	if got := testutil.ToFloat64(metrics.WebSocketClients); got != 1 {
		t.Errorf("websocket clients gauge = %v, want 1 after drop", got)
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub, stop := startHub(t)

	client := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- client

	stop()

	if _, open := <-client.send; open {
		t.Error("client send channel still open after shutdown")
	}
}

func TestBroadcastJSONNeverBlocks(t *testing.T) {
	hub := NewHub() // Run never started; buffer fills up
	for i := 0; i < 1000; i++ {
		hub.BroadcastJSON(MessageTypePing, i)
	}
}

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func readUntil(t *testing.T, sc *bufio.Scanner, prefix string) string {
	t.Helper()
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, prefix) {
			return line
		}
	}
	t.Fatalf("stream ended before %q: %v", prefix, sc.Err())
	return ""
}

func TestStreamHandler(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Middleware(http.HandlerFunc(s.StreamHandler)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/dispatch/stream?date="+testDate, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	sc := bufio.NewScanner(resp.Body)
	readUntil(t, sc, "event: heartbeat")

	// the heartbeat is written after subscribing, so this publish is seen
	s.Broker.Publish(streamKey(defaultTenant, testDate), SSEEvent{Type: EventEvaluated, Data: map[string]any{"date": testDate}})
	readUntil(t, sc, "event: "+EventEvaluated)
	data := readUntil(t, sc, "data: ")
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimPrefix(data, "data: ")), &payload); err != nil || payload["date"] != testDate {
		t.Fatalf("data line %q: %v", data, err)
	}
}

func TestStreamHandlerRejects(t *testing.T) {
	s := newTestServer(t)
	rr := do(s.StreamHandler, http.MethodGet, "/v1/dispatch/stream", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing date: %d", rr.Code)
	}
	rr = do(s.StreamHandler, http.MethodGet, "/v1/dispatch/stream?date="+testDate, "", "X-Role", "technician")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("technician: %d", rr.Code)
	}
}

func TestDispatchWS(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Middleware(http.HandlerFunc(s.DispatchWSHandler)))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() wsMessage {
		t.Helper()
		var m wsMessage
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		return m
	}

	_ = conn.WriteJSON(wsMessage{Type: "connection_init"})
	if m := read(); m.Type != "connection_ack" {
		t.Fatalf("want ack, got %+v", m)
	}

	_ = conn.WriteJSON(wsMessage{Type: "subscribe", ID: "bad", Payload: json.RawMessage(`{"query":"subscription { dispatchEvents }"}`)})
	if m := read(); m.Type != "error" || m.ID != "bad" {
		t.Fatalf("want error for missing date, got %+v", m)
	}
	if m := read(); m.Type != "complete" || m.ID != "bad" {
		t.Fatalf("want complete, got %+v", m)
	}

	_ = conn.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: json.RawMessage(`{"query":"subscription { conflicts }","variables":{"date":"` + testDate + `"}}`)})
	// messages are handled in order, so the pong proves the subscription exists
	_ = conn.WriteJSON(wsMessage{Type: "ping"})
	if m := read(); m.Type != "pong" {
		t.Fatalf("want pong, got %+v", m)
	}

	key := streamKey(defaultTenant, testDate)
	s.Broker.Publish(key, SSEEvent{Type: EventEvaluated, Data: map[string]any{"date": testDate}})
	s.Broker.Publish(key, SSEEvent{Type: EventConflictDetected, Data: map[string]any{"id": "c1"}})

	m := read()
	if m.Type != "next" || m.ID != "1" {
		t.Fatalf("want next, got %+v", m)
	}
	var payload struct {
		Data struct {
			Conflicts struct {
				Type string         `json:"type"`
				Data map[string]any `json:"data"`
			} `json:"conflicts"`
		} `json:"data"`
	}
	if err := json.Unmarshal(m.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Data.Conflicts.Type != EventConflictDetected || payload.Data.Conflicts.Data["id"] != "c1" {
		t.Fatalf("conflicts filter let through %s", m.Payload)
	}

	_ = conn.WriteJSON(wsMessage{Type: "complete", ID: "1"})
	if m := read(); m.Type != "complete" || m.ID != "1" {
		t.Fatalf("want complete after unsubscribe, got %+v", m)
	}
}

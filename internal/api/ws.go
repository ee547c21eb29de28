package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Minimal graphql-transport-ws style protocol for streaming dispatch events.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// DispatchWSHandler handles /v1/dispatch/ws. A subscribe message carries
// variables.date; queries naming "conflicts" only receive conflict events.
func (s *Server) DispatchWSHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	type sub struct {
		key string
		ch  chan SSEEvent
	}
	subs := map[string]sub{}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// gorilla allows one concurrent writer
	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}
	fail := func(id, msg string) {
		payload, _ := json.Marshal(map[string]string{"message": msg})
		_ = write(wsMessage{Type: "error", ID: id, Payload: payload})
		_ = write(wsMessage{Type: "complete", ID: id})
	}
	done := make(chan struct{})
	defer close(done)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if err := write(wsMessage{Type: "ping"}); err != nil {
							return
						}
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl subscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			date, _ := pl.Variables["date"].(string)
			if !validDate(date) {
				fail(msg.ID, "variables.date (YYYY-MM-DD) required")
				continue
			}
			if !p.CanDispatch() {
				fail(msg.ID, "forbidden")
				continue
			}
			if _, dup := subs[msg.ID]; dup {
				fail(msg.ID, "subscription id already in use")
				continue
			}
			field := "dispatchEvents"
			if strings.Contains(strings.ToLower(pl.Query), "conflicts") {
				field = "conflicts"
			}
			key := streamKey(p.Tenant, date)
			ch := s.Broker.Subscribe(key)
			subs[msg.ID] = sub{key: key, ch: ch}
			go func(id string, c chan SSEEvent, field string) {
				for evt := range c {
					if field == "conflicts" && evt.Type != EventConflictDetected {
						continue
					}
					data := map[string]any{field: map[string]any{"type": evt.Type, "data": evt.Data}}
					payload, _ := json.Marshal(map[string]any{"data": data})
					_ = write(wsMessage{Type: "next", ID: id, Payload: payload})
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch, field)
		case "complete":
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(s0.key, s0.ch)
				delete(subs, msg.ID)
			}
		}
	}
	for id, s0 := range subs {
		s.Broker.Unsubscribe(s0.key, s0.ch)
		delete(subs, id)
	}
}

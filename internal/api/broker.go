package api

import (
    "sync"
)

// Event types fanned out to stream and websocket subscribers.
const (
    EventEvaluated        = "dispatch.evaluated"
    EventConflictDetected = "conflict.detected"
)

type SSEEvent struct {
    Type string
    Data map[string]any
}

type EventBroker interface {
    Subscribe(key string) chan SSEEvent
    Unsubscribe(key string, ch chan SSEEvent)
    Publish(key string, evt SSEEvent)
}

// streamKey scopes events to one tenant's dispatch day.
func streamKey(tenant, date string) string { return tenant + "|" + date }

type Broker struct {
    mu   sync.Mutex
    subs map[string]map[chan SSEEvent]struct{} // tenant|date -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(key string) chan SSEEvent {
    ch := make(chan SSEEvent, 8)
    b.mu.Lock()
    if b.subs[key] == nil { b.subs[key] = map[chan SSEEvent]struct{}{} }
    b.subs[key][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(key string, ch chan SSEEvent) {
    b.mu.Lock()
    defer b.mu.Unlock()
    m := b.subs[key]
    if _, ok := m[ch]; !ok { return }
    delete(m, ch)
    if len(m) == 0 { delete(b.subs, key) }
    close(ch)
}

// Publish never blocks; slow subscribers miss events.
func (b *Broker) Publish(key string, evt SSEEvent) {
    b.mu.Lock()
    m := b.subs[key]
    for ch := range m {
        select { case ch <- evt: default: }
    }
    b.mu.Unlock()
}

package api

import (
    "context"
    "encoding/json"
    "log"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so every API replica
// sees evaluations published by the others.
type RedisBroker struct {
    rdb  *redis.Client
    mu   sync.Mutex
    subs map[chan SSEEvent]*redis.PubSub
}

func NewRedisBroker(rdb *redis.Client) *RedisBroker {
    return &RedisBroker{rdb: rdb, subs: map[chan SSEEvent]*redis.PubSub{}}
}

func (b *RedisBroker) Subscribe(key string) chan SSEEvent {
    ch := make(chan SSEEvent, 16)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(key))
    // wait for the subscription to be confirmed before returning
    if _, err := ps.Receive(ctx); err != nil {
        log.Printf("op=broker.redis.subscribe key=%s err=%v", key, err)
    }
    b.mu.Lock()
    b.subs[ch] = ps
    b.mu.Unlock()
    msgs := ps.Channel()
    go func() {
        defer close(ch)
        for msg := range msgs {
            var evt SSEEvent
            if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
                select { case ch <- evt: default: }
            }
        }
    }()
    return ch
}

// Unsubscribe closes the Pub/Sub connection; the reader goroutine then closes ch.
func (b *RedisBroker) Unsubscribe(key string, ch chan SSEEvent) {
    b.mu.Lock()
    ps, ok := b.subs[ch]
    delete(b.subs, ch)
    b.mu.Unlock()
    if ok { _ = ps.Close() }
}

func (b *RedisBroker) Publish(key string, evt SSEEvent) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, err := json.Marshal(evt)
    if err != nil { log.Printf("op=broker.redis.publish key=%s err=%v", key, err); return }
    if err := b.rdb.Publish(ctx, b.chanName(key), data).Err(); err != nil {
        log.Printf("op=broker.redis.publish key=%s err=%v", key, err)
    }
}

func (b *RedisBroker) chanName(key string) string { return "dispatch:" + key }

package webhooks

import (
    "bytes"
    "context"
    "fmt"
    "log"
    "net/http"
    "strconv"
    "time"

    "techdispatch/internal/metrics"
    "techdispatch/internal/store"
)

type Worker struct {
    Store store.Store
    HTTP  *http.Client
    Stop  chan struct{}
    MaxAttempts int
}

func NewWorker(s store.Store, maxAttempts int) *Worker {
    if maxAttempts <= 0 { maxAttempts = 10 }
    return &Worker{Store: s, HTTP: &http.Client{Timeout: 5 * time.Second}, Stop: make(chan struct{}), MaxAttempts: maxAttempts}
}

func (w *Worker) Start() {
    go func() {
        ticker := time.NewTicker(1 * time.Second)
        defer ticker.Stop()
        for {
            select {
            case <-w.Stop:
                return
            case <-ticker.C:
                w.processOnce()
            }
        }
    }()
}

func (w *Worker) processOnce() {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
    if err != nil {
        log.Printf("op=webhooks.fetch err=%v", err)
        return
    }
    for _, it := range items {
        w.deliver(ctx, it)
    }
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
    success := false
    next := time.Now().Add(nextBackoff(it.Attempts))
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
    if err != nil {
        // a malformed URL never heals; dead-letter right away
        _ = w.Store.FailWebhookDelivery(ctx, it.ID, err.Error(), 0, 0)
        metrics.WebhookDeliveries.WithLabelValues(it.EventType, store.DeliveryFailed).Inc()
        return
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set(HeaderEventType, it.EventType)
    req.Header.Set(HeaderDelivery, it.ID)
    req.Header.Set(HeaderAttempt, strconv.Itoa(it.Attempts+1))
    if it.Secret != "" {
        req.Header.Set(HeaderSignature, SignHMAC(it.Secret, it.Payload))
    }
    start := time.Now()
    resp, err := w.HTTP.Do(req)
    latency := int(time.Since(start).Milliseconds())
    code := 0
    lastErr := ""
    if err != nil {
        lastErr = err.Error()
    } else {
        code = resp.StatusCode
        _ = resp.Body.Close()
        if code >= 200 && code < 300 { success = true } else { lastErr = fmt.Sprintf("unexpected status %d", code) }
    }
    status := store.DeliveryDelivered
    if !success { status = store.DeliveryRetry }
    if !success && it.Attempts+1 >= w.MaxAttempts {
        status = store.DeliveryFailed
        if err := w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency); err != nil {
            log.Printf("op=webhooks.fail id=%s err=%v", it.ID, err)
        }
    } else if err := w.Store.MarkWebhookDelivery(ctx, it.ID, success, &next, lastErr, code, latency); err != nil {
        log.Printf("op=webhooks.mark id=%s err=%v", it.ID, err)
    }
    metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
    metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))
    if !success {
        log.Printf("op=webhooks.deliver id=%s type=%s attempt=%d status=%s code=%d err=%q", it.ID, it.EventType, it.Attempts+1, status, code, lastErr)
    }
}

func nextBackoff(attempts int) time.Duration {
    if attempts < 0 { attempts = 0 }
    if attempts > 10 { attempts = 10 }
    base := time.Second * time.Duration(1<<attempts)
    if base > time.Hour { base = time.Hour }
    return base
}

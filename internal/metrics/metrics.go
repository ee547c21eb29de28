package metrics

import (
    "sync"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    // WebhookLatency tracks webhook delivery latencies in milliseconds
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )

    // Evaluations counts dispatch evaluations by where the snapshot came from (body, store, cli)
    Evaluations = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "dispatch_evaluations_total", Help: "Dispatch evaluations by snapshot source."},
        []string{"source"},
    )
    EvaluationDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "dispatch_evaluation_duration_seconds", Help: "Time spent in the dispatch engine.", Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}},
    )
    // Conflicts counts detected conflicts by type and severity
    Conflicts = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "dispatch_conflicts_total", Help: "Detected scheduling conflicts."},
        []string{"type", "severity"},
    )
    // AutoDispatchReady is the recommendation count of the latest evaluation
    AutoDispatchReady = prometheus.NewGauge(
        prometheus.GaugeOpts{Name: "dispatch_auto_dispatch_ready", Help: "Auto-dispatch recommendations in the latest evaluation."},
    )
    // GeocodeRequests counts geocoder lookups by result (hit, miss, cache_hit, cache_miss, error)
    GeocodeRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "geocode_requests_total", Help: "Geocoder lookups by result."},
        []string{"result"},
    )
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(WebhookDeliveries)
        Registry.MustRegister(WebhookLatency)
        Registry.MustRegister(Evaluations)
        Registry.MustRegister(EvaluationDuration)
        Registry.MustRegister(Conflicts)
        Registry.MustRegister(AutoDispatchReady)
        Registry.MustRegister(GeocodeRequests)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
